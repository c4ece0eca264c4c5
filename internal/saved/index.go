package saved

import (
	"sync"

	"github.com/rkstudio/podcastai/internal/job"
)

// Index tracks which finished jobs the user kept, in first-save order. The
// records themselves stay in the registry; the index only owns ordering and
// membership.
type Index struct {
	registry *job.Registry

	mu    sync.Mutex
	order []string
}

func NewIndex(registry *job.Registry) *Index {
	return &Index{registry: registry}
}

// Save marks a done job as saved. The saved category defaults to the job's
// own category unless a non-empty override is given. Saving an already-saved
// job is a no-op that keeps both its position and its saved category; the
// override only applies on the save that flips the mark. Jobs that have not
// finished cannot be saved.
func (i *Index) Save(id string, category job.Category) (job.Record, error) {
	rec, err := i.registry.Update(id, func(rec *job.Record) error {
		if rec.Status != job.StatusDone {
			return job.ErrNotReady
		}
		if rec.Saved {
			return nil
		}
		rec.Saved = true
		rec.SavedCategory = rec.Category
		if category != "" {
			rec.SavedCategory = category
		}
		return nil
	})
	if err != nil {
		return job.Record{}, err
	}

	i.mu.Lock()
	if !i.contains(id) {
		i.order = append(i.order, id)
	}
	i.mu.Unlock()

	return rec, nil
}

// Unsave clears the saved mark. Unsaving a job that was never saved is a
// no-op.
func (i *Index) Unsave(id string) (job.Record, error) {
	rec, err := i.registry.Update(id, func(rec *job.Record) error {
		rec.Saved = false
		rec.SavedCategory = ""
		return nil
	})
	if err != nil {
		return job.Record{}, err
	}

	i.remove(id)
	return rec, nil
}

// List returns saved records in first-save order, optionally filtered to one
// category. Ids whose records are gone are pruned as they are encountered.
func (i *Index) List(category job.Category) []job.Record {
	i.mu.Lock()
	ids := append([]string(nil), i.order...)
	i.mu.Unlock()

	out := make([]job.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := i.registry.Get(id)
		if err != nil {
			i.remove(id)
			continue
		}
		if !rec.Saved {
			continue
		}
		if category != "" && rec.SavedCategory != category {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Forget drops the id from the ordering after the job itself was deleted.
func (i *Index) Forget(id string) {
	i.remove(id)
}

// Restore re-registers a snapshotted saved job at the end of the ordering.
// Snapshots are replayed in their original save order on boot.
func (i *Index) Restore(id string) {
	i.mu.Lock()
	if !i.contains(id) {
		i.order = append(i.order, id)
	}
	i.mu.Unlock()
}

func (i *Index) contains(id string) bool {
	for _, existing := range i.order {
		if existing == id {
			return true
		}
	}
	return false
}

func (i *Index) remove(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, existing := range i.order {
		if existing == id {
			i.order = append(i.order[:idx], i.order[idx+1:]...)
			return
		}
	}
}
