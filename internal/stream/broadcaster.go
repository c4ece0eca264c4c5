package stream

import (
	"context"
	"sync"
)

// EventType classifies the messages on a job's event stream.
type EventType string

const (
	EventMeta  EventType = "meta"
	EventChunk EventType = "chunk"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one entry in a job's append-only event log.
type Event struct {
	Type           EventType
	ImprovedPrompt string // meta
	Delta          string // chunk
	Full           string // chunk, done
	Truncated      bool   // chunk, done
	Title          string // done
	Message        string // error
}

// Terminal reports whether the event closes the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Feed is the event log for one job. Producers append; each subscriber reads
// through a private cursor, so history replays in original order and a slow
// or stalled observer never holds up the producer.
type Feed struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []Event
	closed bool
}

func newFeed() *Feed {
	f := &Feed{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Publish appends one event and wakes waiting subscribers. Once a terminal
// event has been appended further publishes are dropped, so a stream can
// never carry two terminal events.
func (f *Feed) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.events = append(f.events, ev)
	if ev.Terminal() {
		f.closed = true
	}
	f.cond.Broadcast()
}

// Closed reports whether the feed carries a terminal event.
func (f *Feed) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// History returns a copy of every event published so far.
func (f *Feed) History() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

// Subscribe returns a channel that first replays every event published so
// far, in original order, and then follows the live tail. The channel closes
// after the terminal event is delivered or once ctx is cancelled; callers
// must cancel ctx when done to release the subscription.
func (f *Feed) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	// Wake the cursor loop out of cond.Wait when the subscriber goes away.
	go func() {
		<-ctx.Done()
		f.cond.Broadcast()
	}()

	go func() {
		defer close(ch)
		cursor := 0
		for {
			f.mu.Lock()
			for cursor >= len(f.events) && !f.closed && ctx.Err() == nil {
				f.cond.Wait()
			}
			if ctx.Err() != nil {
				f.mu.Unlock()
				return
			}
			done := f.closed && cursor >= len(f.events)
			batch := f.events[cursor:len(f.events):len(f.events)]
			cursor = len(f.events)
			f.mu.Unlock()

			if done {
				return
			}
			for _, ev := range batch {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch
}

// Hub tracks one feed per job id. Feeds retain their full history for the
// lifetime of the job so late subscribers can replay from the start.
type Hub struct {
	mu    sync.RWMutex
	feeds map[string]*Feed
}

func NewHub() *Hub {
	return &Hub{feeds: make(map[string]*Feed)}
}

// Open returns the feed for the job, creating it if absent.
func (h *Hub) Open(jobID string) *Feed {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.feeds[jobID]
	if !ok {
		f = newFeed()
		h.feeds[jobID] = f
	}
	return f
}

// Get returns the feed for the job if one exists.
func (h *Hub) Get(jobID string) (*Feed, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	f, ok := h.feeds[jobID]
	return f, ok
}

// Drop publishes a terminal event to any remaining observers and removes the
// feed. Observers that never saw a terminal event receive this one instead
// of hanging.
func (h *Hub) Drop(jobID string, terminal Event) {
	h.mu.Lock()
	f, ok := h.feeds[jobID]
	delete(h.feeds, jobID)
	h.mu.Unlock()

	if ok {
		f.Publish(terminal)
	}
}
