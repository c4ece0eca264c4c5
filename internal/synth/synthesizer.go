package synth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rkstudio/podcastai/internal/job"
	"github.com/rkstudio/podcastai/internal/multimodal/tts"
	"github.com/rkstudio/podcastai/internal/voices"
)

// synthesisTimeout bounds one backend call. Waiters keep their own deadlines
// through their request contexts.
const synthesisTimeout = 2 * time.Minute

type call struct {
	done        chan struct{}
	audio       []byte
	contentType string
	fallback    bool
}

// Synthesizer produces episode audio lazily, on the first audio request for a
// finished job. Concurrent requests for the same job share one backend call;
// the result is cached on the job record so later requests skip synthesis
// entirely.
type Synthesizer struct {
	registry *job.Registry
	provider tts.Provider
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]*call
}

func New(registry *job.Registry, provider tts.Provider, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		registry: registry,
		provider: provider,
		logger:   logger,
		inflight: make(map[string]*call),
	}
}

// Audio returns the audio bytes and content type for the job. It returns
// job.ErrNotFound for unknown ids and job.ErrNotReady while the job has not
// finished streaming.
func (s *Synthesizer) Audio(ctx context.Context, id string) ([]byte, string, error) {
	rec, err := s.registry.Get(id)
	if err != nil {
		return nil, "", err
	}
	if rec.Status != job.StatusDone {
		return nil, "", job.ErrNotReady
	}
	if len(rec.Audio) > 0 {
		return rec.Audio, rec.AudioType, nil
	}

	s.mu.Lock()
	c, found := s.inflight[id]
	if !found {
		c = &call{done: make(chan struct{})}
		s.inflight[id] = c
	}
	s.mu.Unlock()

	if !found {
		// Leader path. Detached from the caller's context so an impatient
		// first requester does not waste the synthesis for everyone else.
		c.audio, c.contentType, c.fallback = s.synthesize(context.WithoutCancel(ctx), rec)
		s.store(id, c)

		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()

		close(c.done)
		return c.audio, c.contentType, nil
	}

	select {
	case <-c.done:
		return c.audio, c.contentType, nil
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

func (s *Synthesizer) synthesize(ctx context.Context, rec job.Record) ([]byte, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	resolved := make([]string, 0, len(rec.Voices))
	for _, marker := range rec.Voices {
		resolved = append(resolved, voices.Resolve(marker))
	}

	res, err := s.provider.Synthesize(ctx, tts.SynthesisRequest{
		Input:        rec.FullText,
		Voices:       resolved,
		SpeakerCount: rec.SpeakerCount,
		Language:     rec.Language,
	})
	if err != nil {
		s.logger.Warn("synthesis backend failed, serving placeholder audio",
			"job_id", rec.ID,
			"provider", s.provider.Name(),
			"error", err,
		)
		return placeholderWAV(), "audio/wav", true
	}

	return res.Audio, res.ContentType, false
}

// store caches the result on the record. A job deleted mid-synthesis has no
// record left; waiters still get the bytes from the in-flight call.
func (s *Synthesizer) store(id string, c *call) {
	_, err := s.registry.Update(id, func(rec *job.Record) error {
		rec.Audio = c.audio
		rec.AudioType = c.contentType
		rec.AudioFallback = c.fallback
		return nil
	})
	if err != nil {
		s.logger.Debug("skipping audio cache for removed job", "job_id", id)
	}
}
