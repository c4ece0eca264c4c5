package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rkstudio/podcastai/internal/config"
	"github.com/rkstudio/podcastai/internal/job"
	"github.com/rkstudio/podcastai/internal/llm"
	"github.com/rkstudio/podcastai/internal/multimodal/stt"
	"github.com/rkstudio/podcastai/internal/stream"
)

type fakeGateway struct {
	augmented   string
	title       string
	completeErr error
	chunks      []llm.Chunk
	streamErr   error
	blockStream bool
}

func (f *fakeGateway) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	// The augmentation call carries a system message; the title call does not.
	content := f.title
	if len(req.Messages) > 0 && req.Messages[0].Role == "system" {
		content = f.augmented
	}
	return &llm.Response{Content: content}, nil
}

func (f *fakeGateway) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		if f.blockStream {
			<-ctx.Done()
			return
		}
		for _, c := range f.chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeGateway) Provider(name string) (llm.Provider, error) {
	return nil, errors.New("not configured")
}

func (f *fakeGateway) ListModels() []llm.ModelInfo { return nil }

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(ctx context.Context, req stt.TranscriptionRequest) (*stt.TranscriptionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stt.TranscriptionResponse{Text: f.text}, nil
}

func (f *fakeSTT) Name() string { return "fake" }

func testConfig() config.GenerationConfig {
	return config.GenerationConfig{
		Model:          "test-model",
		TitleModel:     "test-model",
		MaxWords:       225,
		MaxDuration:    90 * time.Second,
		WordsPerMinute: 150,
		WallClock:      5 * time.Second,
	}
}

func waitTerminal(t *testing.T, feed *stream.Feed) []stream.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var events []stream.Event
	for ev := range feed.Subscribe(ctx) {
		events = append(events, ev)
		if ev.Terminal() {
			return events
		}
	}
	t.Fatal("stream ended without a terminal event")
	return nil
}

func wordChunks(n int) []llm.Chunk {
	out := make([]llm.Chunk, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, llm.Chunk{Content: "word "})
	}
	return append(out, llm.Chunk{Done: true})
}

func TestRunnerHappyPath(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{
		augmented: "a detailed dialogue prompt",
		title:     "Coffee Wars",
		chunks: []llm.Chunk{
			{Content: "Speaker 1: Hello there.\n"},
			{Content: "Speaker 2: Hi!"},
			{Done: true},
		},
	}
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "two friends", SpeakerCount: 2, Voices: []string{"F", "M"}})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))

	require.Equal(t, stream.EventMeta, events[0].Type)
	require.Equal(t, "a detailed dialogue prompt", events[0].ImprovedPrompt)

	last := events[len(events)-1]
	require.Equal(t, stream.EventDone, last.Type)
	require.Equal(t, "Coffee Wars", last.Title)
	require.False(t, last.Truncated)

	final, err := reg.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusDone, final.Status)
	require.Equal(t, "Speaker 1: Hello there.\nSpeaker 2: Hi!", final.FullText)
	require.Equal(t, "Coffee Wars", final.Title)
	require.Len(t, final.Segments, 2)
}

func TestRunnerChunkEventsCarryRunningTranscript(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{
		augmented: "prompt",
		title:     "T",
		chunks:    []llm.Chunk{{Content: "a"}, {Content: "b"}, {Content: "c"}, {Done: true}},
	}
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1, Voices: []string{"F"}})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))

	full := ""
	for _, ev := range events {
		if ev.Type != stream.EventChunk {
			continue
		}
		full += ev.Delta
		require.Equal(t, full, ev.Full)
	}
	require.Equal(t, "abc", full)
}

func TestRunnerDoneTranscriptIsTrimmedChunkConcat(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{
		augmented: "prompt",
		title:     "T",
		chunks: []llm.Chunk{
			{Content: "  Speaker 1: Hello.\n"},
			{Content: "Speaker 2: Hi!\n\n"},
			{Done: true},
		},
	}
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 2, Voices: []string{"F", "M"}})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))

	var deltas strings.Builder
	for _, ev := range events {
		if ev.Type == stream.EventChunk {
			deltas.WriteString(ev.Delta)
		}
	}

	// Finalization trims the transcript exactly once; the done event differs
	// from the concatenated deltas only by that surrounding whitespace.
	last := events[len(events)-1]
	require.Equal(t, stream.EventDone, last.Type)
	require.Equal(t, strings.TrimSpace(deltas.String()), last.Full)
	require.NotEqual(t, deltas.String(), last.Full)

	final, err := reg.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, last.Full, final.FullText)
}

func TestRunnerWordCapTruncates(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{
		augmented: "prompt",
		title:     "T",
		chunks:    wordChunks(50),
	}
	cfg := testConfig()
	cfg.MaxWords = 5
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, cfg, nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1, Voices: []string{"F"}})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))

	last := events[len(events)-1]
	require.Equal(t, stream.EventDone, last.Type)
	require.True(t, last.Truncated)

	final, err := reg.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusDone, final.Status)
	require.True(t, final.Truncated)
	require.Equal(t, 5, len(strings.Fields(final.FullText)), "stream stops on the fragment that reaches the cap")
}

func TestRunnerDurationCapTruncates(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{
		augmented: "prompt",
		title:     "T",
		chunks:    wordChunks(30),
	}
	cfg := testConfig()
	// At 10 words per minute the one-minute ceiling is reached at 10 words.
	cfg.WordsPerMinute = 10
	cfg.MaxDuration = time.Minute
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, cfg, nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1, Voices: []string{"F"}})
	runner.Start(rec.ID)

	waitTerminal(t, hub.Open(rec.ID))

	final, err := reg.Get(rec.ID)
	require.NoError(t, err)
	require.True(t, final.Truncated)
	require.Equal(t, 10, len(strings.Fields(final.FullText)))
}

func TestRunnerAudioModeTranscribesFirst(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{
		augmented: "from speech",
		title:     "T",
		chunks:    []llm.Chunk{{Content: "hi"}, {Done: true}},
	}
	runner := NewRunner(reg, hub, gw, &fakeSTT{text: "spoken idea"}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{
		Mode:         job.ModeAudio,
		AudioInput:   []byte{1, 2, 3},
		SpeakerCount: 1,
		Voices:       []string{"M"},
	})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))
	require.Equal(t, stream.EventDone, events[len(events)-1].Type)
}

func TestRunnerTranscriptionFailureErrorsJob(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{augmented: "x", title: "T", chunks: []llm.Chunk{{Done: true}}}
	runner := NewRunner(reg, hub, gw, &fakeSTT{err: errors.New("no speech")}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeAudio, AudioInput: []byte{1}, SpeakerCount: 1})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))
	require.Equal(t, stream.EventError, events[len(events)-1].Type)

	final, err := reg.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusError, final.Status)
	require.Contains(t, final.ErrMessage, "no speech")
}

func TestRunnerAugmentFailureErrorsJob(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{completeErr: errors.New("llm down")}
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))
	last := events[len(events)-1]
	require.Equal(t, stream.EventError, last.Type)
	require.Contains(t, last.Message, "augment prompt")

	final, err := reg.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusError, final.Status)
}

func TestRunnerStreamOpenFailureErrorsJob(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{augmented: "prompt", title: "T", streamErr: errors.New("no provider")}
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))
	last := events[len(events)-1]
	require.Equal(t, stream.EventError, last.Type)
	require.Contains(t, last.Message, "open transcript stream")
}

func TestRunnerStreamErrorErrorsJob(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{
		augmented: "prompt",
		title:     "T",
		chunks:    []llm.Chunk{{Content: "a"}, {Err: errors.New("provider hiccup")}},
	}
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))
	last := events[len(events)-1]
	require.Equal(t, stream.EventError, last.Type)
	require.Contains(t, last.Message, "provider hiccup")

	final, err := reg.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusError, final.Status)
}

func TestRunnerEmptyTranscriptErrorsJob(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{
		augmented: "prompt",
		title:     "T",
		chunks:    []llm.Chunk{{Content: "   "}, {Done: true}},
	}
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))
	require.Equal(t, stream.EventError, events[len(events)-1].Type)
}

func TestRunnerWallClockWatchdog(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{augmented: "prompt", title: "T", blockStream: true}
	cfg := testConfig()
	cfg.WallClock = 100 * time.Millisecond
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, cfg, nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))
	last := events[len(events)-1]
	require.Equal(t, stream.EventError, last.Type)
	require.Equal(t, "generation timed out", last.Message)

	final, err := reg.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusError, final.Status)
}

func TestRunnerTitleFallsBackToHeuristic(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{
		augmented: "prompt",
		title:     "",
		chunks:    []llm.Chunk{{Content: "Speaker 1: Budget travel tips for southern Italy and beyond."}, {Done: true}},
	}
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1})
	runner.Start(rec.ID)

	events := waitTerminal(t, hub.Open(rec.ID))
	last := events[len(events)-1]
	require.Equal(t, stream.EventDone, last.Type)
	require.Equal(t, "Budget travel tips for southern Italy and beyond", last.Title)
}

func TestRunnerDeleteMidStreamExitsQuietly(t *testing.T) {
	reg := job.NewRegistry()
	hub := stream.NewHub()
	gw := &fakeGateway{augmented: "prompt", title: "T", blockStream: true}
	runner := NewRunner(reg, hub, gw, &fakeSTT{}, nil, testConfig(), nil)

	rec := reg.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1})
	runner.Start(rec.ID)

	feed := hub.Open(rec.ID)

	// Wait for the pipeline to reach streaming before deleting.
	require.Eventually(t, func() bool {
		got, err := reg.Get(rec.ID)
		return err == nil && got.Status == job.StatusStreaming
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, reg.Delete(rec.ID))

	// The runner exits without a terminal event; the hub drop supplies one.
	time.Sleep(100 * time.Millisecond)
	require.False(t, feed.Closed())

	hub.Drop(rec.ID, stream.Event{Type: stream.EventError, Message: "job deleted"})
	require.True(t, feed.Closed())
}
