package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rkstudio/podcastai/internal/config"
	"github.com/rkstudio/podcastai/internal/job"
)

// Client enqueues snapshot work for the background worker. Persistence stays
// off the request path; the API process only marshals and enqueues.
type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueJobWrite(rec job.Record) error {
	return c.enqueue(TypeJobWrite, JobWritePayload{Record: rec}, asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
}

func (c *Client) EnqueueJobRemove(jobID string) error {
	return c.enqueue(TypeJobRemove, JobRemovePayload{JobID: jobID}, asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
