package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Spec carries the validated inputs for a new job.
type Spec struct {
	Mode           Mode
	Prompt         string
	AudioInput     []byte
	AudioInputMime string
	UseSearch      bool
	SpeakerCount   int
	Voices         []string
	Category       Category
	Theme          string
	GeoLocation    string
	Language       string
}

type entry struct {
	mu     sync.Mutex
	rec    Record
	cancel context.CancelFunc
}

// Registry holds every live job record. The outer lock guards only the map;
// each entry carries its own mutex, so updates to different jobs never
// contend and updates to the same job are serialized.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Create allocates an id and stores a pending record. It returns before any
// generation work starts.
func (g *Registry) Create(spec Spec) Record {
	rec := Record{
		ID:             uuid.NewString(),
		Status:         StatusPending,
		Mode:           spec.Mode,
		Prompt:         spec.Prompt,
		AudioInput:     spec.AudioInput,
		AudioInputMime: spec.AudioInputMime,
		UseSearch:      spec.UseSearch,
		SpeakerCount:   spec.SpeakerCount,
		Voices:         append([]string(nil), spec.Voices...),
		Category:       spec.Category,
		Theme:          spec.Theme,
		GeoLocation:    spec.GeoLocation,
		Language:       spec.Language,
		CreatedAt:      time.Now().UTC(),
	}

	g.mu.Lock()
	g.entries[rec.ID] = &entry{rec: rec}
	g.mu.Unlock()

	return rec.Clone()
}

// Restore re-inserts a previously snapshotted record under its original id.
func (g *Registry) Restore(rec Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entries[rec.ID]; ok {
		return ErrExists
	}
	g.entries[rec.ID] = &entry{rec: rec.Clone()}
	return nil
}

// Get returns a snapshot of the record at call time.
func (g *Registry) Get(id string) (Record, error) {
	e, ok := g.lookup(id)
	if !ok {
		return Record{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Clone(), nil
}

// Update applies one atomic read-modify-write to the record and returns the
// resulting snapshot. If the mutator errors the record is left untouched.
func (g *Registry) Update(id string, mutate func(*Record) error) (Record, error) {
	e, ok := g.lookup(id)
	if !ok {
		return Record{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	staged := e.rec.Clone()
	if err := mutate(&staged); err != nil {
		return Record{}, err
	}
	e.rec = staged
	return staged.Clone(), nil
}

// Transition moves the job to next, validating against the state machine.
func (g *Registry) Transition(id string, next Status) (Record, error) {
	return g.Update(id, func(rec *Record) error {
		if !rec.Status.CanTransition(next) {
			return ErrInvalidTransition
		}
		rec.Status = next
		return nil
	})
}

// SetCancel registers the cancellation hook for the job's in-flight pipeline
// task. Delete invokes it before removing the record.
func (g *Registry) SetCancel(id string, cancel context.CancelFunc) error {
	e, ok := g.lookup(id)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	return nil
}

// Delete removes the record and cooperatively cancels any in-flight pipeline
// task for that id.
func (g *Registry) Delete(id string) error {
	g.mu.Lock()
	e, ok := g.entries[id]
	delete(g.entries, id)
	g.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// List returns snapshots of every record ordered by creation time.
func (g *Registry) List() []Record {
	g.mu.RLock()
	entries := make([]*entry, 0, len(g.entries))
	for _, e := range g.entries {
		entries = append(entries, e)
	}
	g.mu.RUnlock()

	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.rec.Clone())
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (g *Registry) lookup(id string) (*entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entries[id]
	return e, ok
}

