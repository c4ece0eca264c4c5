package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker handles snapshot tasks in the background process.
type Worker struct {
	store *Store
}

func NewWorker(store *Store) *Worker {
	return &Worker{store: store}
}

func (w *Worker) ProcessJobWrite(ctx context.Context, t *asynq.Task) error {
	var payload JobWritePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := w.store.Write(payload.Record); err != nil {
		return err
	}

	slog.Info("snapshot written", "job_id", payload.Record.ID)
	return nil
}

func (w *Worker) ProcessJobRemove(ctx context.Context, t *asynq.Task) error {
	var payload JobRemovePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := w.store.Remove(payload.JobID); err != nil {
		return err
	}

	slog.Info("snapshot removed", "job_id", payload.JobID)
	return nil
}
