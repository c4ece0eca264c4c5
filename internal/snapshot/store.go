package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rkstudio/podcastai/internal/job"
	"github.com/rkstudio/podcastai/internal/saved"
	"github.com/rkstudio/podcastai/internal/stream"
)

// envelope wraps a snapshotted record with the time it was written so that
// restore can replay snapshots in their original save order.
type envelope struct {
	SavedAt time.Time  `json:"saved_at"`
	Record  job.Record `json:"record"`
}

// Store persists saved job records as one JSON file per job. Audio payloads
// carry no JSON tags, so snapshots hold only the transcript and metadata;
// audio is re-synthesized on demand after a restart.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Write persists the record atomically via a temp file rename.
func (s *Store) Write(rec job.Record) error {
	data, err := json.MarshalIndent(envelope{SavedAt: time.Now().UTC(), Record: rec}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	final := s.path(rec.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Remove deletes the snapshot for the job. Missing files are not an error;
// remove tasks may retry after a successful delete.
func (s *Store) Remove(jobID string) error {
	err := os.Remove(s.path(jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// LoadAll reads every snapshot in the directory, ordered by save time.
// Corrupt files are skipped rather than failing the whole restore.
func (s *Store) LoadAll() ([]job.Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var envs []envelope
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, rerr := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if rerr != nil {
			continue
		}
		var env envelope
		if jerr := json.Unmarshal(data, &env); jerr != nil || env.Record.ID == "" {
			continue
		}
		envs = append(envs, env)
	}

	sort.Slice(envs, func(i, j int) bool { return envs[i].SavedAt.Before(envs[j].SavedAt) })

	out := make([]job.Record, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.Record)
	}
	return out, nil
}

func (s *Store) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

// Restore loads every snapshot back into the registry, the saved index and
// the event hub. Feeds are rebuilt by replaying each transcript segment and
// closing with the done event, so late subscribers of a restored job see the
// same stream a live subscriber would have.
func Restore(store *Store, registry *job.Registry, index *saved.Index, hub *stream.Hub) (int, error) {
	records, err := store.LoadAll()
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, rec := range records {
		if err := registry.Restore(rec); err != nil {
			continue
		}
		index.Restore(rec.ID)

		feed := hub.Open(rec.ID)
		if rec.ImprovedPrompt != "" {
			feed.Publish(stream.Event{Type: stream.EventMeta, ImprovedPrompt: rec.ImprovedPrompt})
		}
		full := ""
		for _, seg := range rec.Segments {
			full += seg
			feed.Publish(stream.Event{Type: stream.EventChunk, Delta: seg, Full: full})
		}
		feed.Publish(stream.Event{
			Type:      stream.EventDone,
			Full:      rec.FullText,
			Title:     rec.Title,
			Truncated: rec.Truncated,
		})
		restored++
	}
	return restored, nil
}
