package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rkstudio/podcastai/internal/config"
	"github.com/rkstudio/podcastai/internal/job"
	"github.com/rkstudio/podcastai/internal/llm"
	"github.com/rkstudio/podcastai/internal/multimodal/stt"
	"github.com/rkstudio/podcastai/internal/stream"
)

// SearchGrounder supplies fresh web context for prompts that opt into search
// grounding. A nil grounder disables the step.
type SearchGrounder interface {
	Ground(ctx context.Context, topic string) (string, error)
}

// Runner drives one generation job from pending to a terminal state:
// transcribe (audio mode), augment the prompt, stream the transcript into the
// registry and the event feed, then finalize with a title.
type Runner struct {
	registry *job.Registry
	hub      *stream.Hub
	gateway  llm.Gateway
	stt      stt.Provider
	grounder SearchGrounder
	cfg      config.GenerationConfig
	logger   *slog.Logger
}

func NewRunner(registry *job.Registry, hub *stream.Hub, gateway llm.Gateway, sttProvider stt.Provider, grounder SearchGrounder, cfg config.GenerationConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry: registry,
		hub:      hub,
		gateway:  gateway,
		stt:      sttProvider,
		grounder: grounder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start launches the generation run in its own goroutine. The run is bounded
// by the configured wall clock; the cancel hook is registered with the
// registry so deleting the job aborts the run cooperatively.
func (r *Runner) Start(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WallClock)
	if err := r.registry.SetCancel(id, cancel); err != nil {
		cancel()
		r.logger.Warn("job vanished before pipeline start", "job_id", id)
		return
	}

	feed := r.hub.Open(id)

	go func() {
		defer cancel()
		r.run(ctx, id, feed)
	}()
}

func (r *Runner) run(ctx context.Context, id string, feed *stream.Feed) {
	rec, err := r.registry.Get(id)
	if err != nil {
		return
	}

	idea := rec.Prompt
	if rec.Mode == job.ModeAudio {
		idea, err = r.transcribe(ctx, rec)
		if err != nil {
			r.fail(ctx, id, feed, fmt.Errorf("transcribe prompt: %w", err))
			return
		}
	}

	if rec.UseSearch && r.grounder != nil {
		grounding, gerr := r.grounder.Ground(ctx, idea)
		switch {
		case gerr != nil && ctx.Err() != nil:
			r.fail(ctx, id, feed, gerr)
			return
		case gerr != nil:
			// Grounding is best-effort; generation proceeds on the raw idea.
			r.logger.Warn("search grounding failed", "job_id", id, "error", gerr)
		case grounding != "":
			idea = idea + "\n\nUse the following up-to-date context where relevant:\n" + grounding
		}
	}

	improved, err := r.augment(ctx, rec, idea)
	if err != nil {
		r.fail(ctx, id, feed, fmt.Errorf("augment prompt: %w", err))
		return
	}

	if _, err = r.registry.Update(id, func(rec *job.Record) error {
		rec.ImprovedPrompt = improved
		return nil
	}); err != nil {
		// Deleted while augmenting; the registry already fired our cancel.
		return
	}

	feed.Publish(stream.Event{Type: stream.EventMeta, ImprovedPrompt: improved})

	if _, err = r.registry.Transition(id, job.StatusStreaming); err != nil {
		return
	}

	truncated, err := r.streamTranscript(ctx, id, feed, improved, rec)
	if err != nil {
		r.fail(ctx, id, feed, err)
		return
	}

	final, err := r.registry.Update(id, func(rec *job.Record) error {
		rec.FullText = strings.TrimSpace(rec.FullText)
		rec.Truncated = truncated
		return nil
	})
	if err != nil {
		return
	}
	if final.FullText == "" {
		r.fail(ctx, id, feed, errors.New("model produced an empty transcript"))
		return
	}

	title := r.title(ctx, final.FullText)

	final, err = r.registry.Update(id, func(rec *job.Record) error {
		if !rec.Status.CanTransition(job.StatusDone) {
			return job.ErrInvalidTransition
		}
		rec.Title = title
		rec.Status = job.StatusDone
		return nil
	})
	if err != nil {
		return
	}

	feed.Publish(stream.Event{
		Type:      stream.EventDone,
		Full:      final.FullText,
		Title:     final.Title,
		Truncated: final.Truncated,
	})

	r.logger.Info("generation finished",
		"job_id", id,
		"title", final.Title,
		"truncated", final.Truncated,
		"segments", len(final.Segments),
	)
}

// streamTranscript consumes the provider stream, appending each fragment to
// the record and publishing a chunk event per fragment. It returns whether
// the transcript was cut at a cap.
func (r *Runner) streamTranscript(ctx context.Context, id string, feed *stream.Feed, improved string, rec job.Record) (bool, error) {
	caps := Caps{
		MaxWords:       r.cfg.MaxWords,
		MaxDuration:    r.cfg.MaxDuration,
		WordsPerMinute: r.cfg.WordsPerMinute,
	}

	// A child context lets truncation stop the provider without aborting the
	// rest of the run (finalization still needs ctx).
	streamCtx, stop := context.WithCancel(ctx)
	defer stop()

	ch, err := r.gateway.Stream(streamCtx, llm.Request{
		Model: r.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: speakerInstructions(rec.SpeakerCount, rec.Voices)},
			{Role: "user", Content: improved},
		},
		Temperature: 0.8,
	})
	if err != nil {
		return false, fmt.Errorf("open transcript stream: %w", err)
	}

	truncated := false
	for chunk := range ch {
		if truncated {
			continue // drain so the provider goroutine can exit
		}
		if chunk.Err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, fmt.Errorf("transcript stream: %w", chunk.Err)
		}
		if chunk.Done {
			break
		}
		if chunk.Content == "" {
			continue
		}

		updated, uerr := r.registry.Update(id, func(rec *job.Record) error {
			rec.AppendSegment(chunk.Content)
			return nil
		})
		if uerr != nil {
			// Deleted mid-stream. Stop the provider and bail out quietly.
			stop()
			for range ch {
			}
			return false, context.Canceled
		}

		if caps.Exceeded(updated.FullText) {
			truncated = true
			if _, uerr = r.registry.Update(id, func(rec *job.Record) error {
				rec.Truncated = true
				return nil
			}); uerr != nil {
				stop()
				for range ch {
				}
				return false, context.Canceled
			}
			feed.Publish(stream.Event{
				Type:      stream.EventChunk,
				Delta:     chunk.Content,
				Full:      updated.FullText,
				Truncated: true,
			})
			stop()
			continue
		}

		feed.Publish(stream.Event{
			Type:  stream.EventChunk,
			Delta: chunk.Content,
			Full:  updated.FullText,
		})
	}

	if !truncated && ctx.Err() != nil {
		return false, ctx.Err()
	}
	return truncated, nil
}

func (r *Runner) transcribe(ctx context.Context, rec job.Record) (string, error) {
	resp, err := r.stt.Transcribe(ctx, stt.TranscriptionRequest{
		Audio:    rec.AudioInput,
		Mime:     rec.AudioInputMime,
		Language: rec.Language,
		Prompt:   transcriptionInstruction,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.New("recording transcribed to empty text")
	}
	return text, nil
}

func (r *Runner) augment(ctx context.Context, rec job.Record, idea string) (string, error) {
	input := idea
	if extra := contextInstructions(rec.Theme, rec.GeoLocation, rec.Language); extra != "" {
		input += "\n\n" + extra
	}
	input += "\n\n" + speakerInstructions(rec.SpeakerCount, rec.Voices)

	resp, err := r.gateway.Complete(ctx, llm.Request{
		Model: r.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: augmentInstruction},
			{Role: "user", Content: input},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	improved := strings.TrimSpace(resp.Content)
	if improved == "" {
		return "", errors.New("prompt augmentation returned empty text")
	}
	return improved, nil
}

// title asks the follow-up model for an episode title and falls back to a
// transcript-derived one so finalization never fails on this step.
func (r *Runner) title(ctx context.Context, fullText string) string {
	resp, err := r.gateway.Complete(ctx, llm.Request{
		Model: r.cfg.TitleModel,
		Messages: []llm.Message{
			{Role: "user", Content: titlePrompt(fullText)},
		},
		Temperature: 0.5,
		MaxTokens:   32,
	})
	if err != nil {
		r.logger.Warn("title generation failed, using heuristic", "error", err)
		return heuristicTitle(fullText)
	}

	title := strings.Trim(strings.TrimSpace(resp.Content), `"'`)
	if title == "" {
		return heuristicTitle(fullText)
	}
	return title
}

// fail records the terminal error state and publishes the error event. A job
// deleted mid-run has no record left; its feed terminal comes from the hub
// drop instead.
func (r *Runner) fail(ctx context.Context, id string, feed *stream.Feed, cause error) {
	if errors.Is(cause, context.Canceled) && ctx.Err() == context.Canceled {
		return
	}

	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = "generation timed out"
	}

	_, err := r.registry.Update(id, func(rec *job.Record) error {
		if rec.Status.Terminal() {
			return job.ErrInvalidTransition
		}
		rec.Status = job.StatusError
		rec.ErrMessage = msg
		return nil
	})
	if err != nil {
		return
	}

	feed.Publish(stream.Event{Type: stream.EventError, Message: msg})
	r.logger.Error("generation failed", "job_id", id, "error", cause)
}
