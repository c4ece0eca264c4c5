package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/rkstudio/podcastai/internal/config"
	"github.com/rkstudio/podcastai/internal/job"
	"github.com/rkstudio/podcastai/internal/llm"
	"github.com/rkstudio/podcastai/internal/multimodal/stt"
	"github.com/rkstudio/podcastai/internal/multimodal/tts"
	"github.com/rkstudio/podcastai/internal/pipeline"
	"github.com/rkstudio/podcastai/internal/saved"
	"github.com/rkstudio/podcastai/internal/snapshot"
	"github.com/rkstudio/podcastai/internal/stream"
	"github.com/rkstudio/podcastai/internal/synth"
)

type fakeGateway struct {
	chunks []llm.Chunk
	block  bool // hold the stream open after the chunks until cancelled
}

func (f *fakeGateway) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if len(req.Messages) > 0 && req.Messages[0].Role == "system" {
		return &llm.Response{Content: "improved prompt"}, nil
	}
	return &llm.Response{Content: "Test Title"}, nil
}

func (f *fakeGateway) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, c := range f.chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
		if f.block {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (f *fakeGateway) Provider(name string) (llm.Provider, error) {
	return nil, errors.New("not configured")
}

func (f *fakeGateway) ListModels() []llm.ModelInfo { return nil }

type fakeSTT struct{}

func (fakeSTT) Transcribe(ctx context.Context, req stt.TranscriptionRequest) (*stt.TranscriptionResponse, error) {
	return &stt.TranscriptionResponse{Text: "spoken idea"}, nil
}

func (fakeSTT) Name() string { return "fake" }

type fakeTTS struct{}

func (fakeTTS) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	return &tts.SynthesisResult{Audio: []byte("mp3"), ContentType: "audio/mpeg"}, nil
}

func (fakeTTS) Name() string { return "fake" }

func newTestServer(t *testing.T) (*httptest.Server, *job.Registry) {
	t.Helper()
	return newTestServerWith(t, &fakeGateway{chunks: []llm.Chunk{
		{Content: "Speaker 1: Hello.\n"},
		{Content: "Speaker 2: Hi!"},
		{Done: true},
	}})
}

func newTestServerWith(t *testing.T, gw *fakeGateway) (*httptest.Server, *job.Registry) {
	t.Helper()

	registry := job.NewRegistry()
	hub := stream.NewHub()
	index := saved.NewIndex(registry)
	cfg := config.GenerationConfig{
		Model:          "test",
		TitleModel:     "test",
		MaxWords:       225,
		MaxDuration:    90 * time.Second,
		WordsPerMinute: 150,
		WallClock:      5 * time.Second,
	}
	runner := pipeline.NewRunner(registry, hub, gw, fakeSTT{}, nil, cfg, nil)
	synthesizer := synth.New(registry, fakeTTS{}, nil)
	// Redis is not running in tests; enqueue failures are logged, not fatal.
	snapClient := snapshot.NewClient(config.RedisConfig{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { snapClient.Close() })

	h := NewJobsHandler(registry, hub, runner, synthesizer, index, snapClient)

	r := chi.NewRouter()
	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/saved", h.ListSaved)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
		r.Get("/{id}/events", h.Events)
		r.Get("/{id}/audio", h.Audio)
		r.Post("/{id}/save", h.Save)
		r.Delete("/{id}/save", h.Unsave)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, registry
}

func postJob(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/jobs/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

type sseEvent struct {
	name string
	data map[string]interface{}
}

// readEvents consumes the SSE stream until a terminal event arrives.
func readEvents(t *testing.T, url string) []sseEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = sseEvent{name: strings.TrimPrefix(line, "event: ")}
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.data))
			events = append(events, current)
			if current.name == "done" || current.name == "error" {
				return events
			}
		}
	}
	t.Fatalf("stream ended without terminal event (got %d events)", len(events))
	return nil
}

func TestCreateValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing prompt", `{}`},
		{"bad speaker count", `{"prompt":"x","speaker_count":3}`},
		{"too many voices", `{"prompt":"x","speaker_count":1,"voices":["F","M"]}`},
		{"bad category", `{"prompt":"x","category":"weird"}`},
		{"bad audio encoding", `{"audio_base64":"!!!not-base64!!!"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := postJob(t, srv, tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.NotEmpty(t, body["error"])
		})
	}
}

func TestCreateReturnsPendingImmediately(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJob(t, srv, `{"prompt":"two friends argue about coffee"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, body["id"])
	require.Equal(t, "pending", body["status"])
	require.Equal(t, float64(2), body["speaker_count"])
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	_, created := postJob(t, srv, `{"prompt":"two friends argue about coffee","speaker_count":2,"voices":["F","M"]}`)
	id := created["id"].(string)

	events := readEvents(t, srv.URL+"/api/v1/jobs/"+id+"/events")

	require.Equal(t, "meta", events[0].name)
	require.Equal(t, "improved prompt", events[0].data["improved_prompt"])

	last := events[len(events)-1]
	require.Equal(t, "done", last.name)
	require.Equal(t, "Test Title", last.data["title"])
	require.Equal(t, "Speaker 1: Hello.\nSpeaker 2: Hi!", last.data["full"])

	// Chunks carry delta plus the running transcript.
	require.Equal(t, "chunk", events[1].name)
	require.Equal(t, events[1].data["delta"], events[1].data["full"])

	// Reconnecting replays the identical history.
	replay := readEvents(t, srv.URL+"/api/v1/jobs/"+id+"/events")
	require.Equal(t, len(events), len(replay))
	require.Equal(t, events[0].data, replay[0].data)

	// Job record reflects the terminal state.
	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + id)
	require.NoError(t, err)
	var rec map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()
	require.Equal(t, "done", rec["status"])
	require.Equal(t, "Test Title", rec["title"])

	// Audio synthesis on first fetch.
	resp, err = http.Get(srv.URL + "/api/v1/jobs/" + id + "/audio")
	require.NoError(t, err)
	audio, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	require.Equal(t, []byte("mp3"), audio)

	// Save, list saved, unsave.
	resp, err = http.Post(srv.URL+"/api/v1/jobs/"+id+"/save", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/jobs/saved")
	require.NoError(t, err)
	var savedBody map[string][]map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&savedBody))
	resp.Body.Close()
	require.Len(t, savedBody["saved"], 1)
	require.Equal(t, id, savedBody["saved"][0]["id"])

	req, err := http.NewRequest("DELETE", srv.URL+"/api/v1/jobs/"+id+"/save", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Delete removes the job.
	req, err = http.NewRequest("DELETE", srv.URL+"/api/v1/jobs/"+id, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/jobs/" + id)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAudioConflictBeforeDone(t *testing.T) {
	srv, registry := newTestServer(t)

	// A pending record that no runner is driving stays pending.
	rec := registry.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1, Voices: []string{"F"}})

	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + rec.ID + "/audio")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSaveConflictBeforeDone(t *testing.T) {
	srv, registry := newTestServer(t)
	rec := registry.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1})

	resp, err := http.Post(srv.URL+"/api/v1/jobs/"+rec.ID+"/save", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUnknownJobIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/v1/jobs/nope", "/api/v1/jobs/nope/events", "/api/v1/jobs/nope/audio"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	req, err := http.NewRequest("DELETE", srv.URL+"/api/v1/jobs/nope", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventsWithoutFeedIs404(t *testing.T) {
	srv, registry := newTestServer(t)

	// A registry record whose feed is gone is the window a delete leaves
	// behind; subscribing must return 404 rather than open an empty stream.
	rec := registry.Create(job.Spec{Mode: job.ModeText, Prompt: "p", SpeakerCount: 1, Voices: []string{"F"}})

	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + rec.ID + "/events")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteWhileStreamingTerminatesSubscribers(t *testing.T) {
	gw := &fakeGateway{
		chunks: []llm.Chunk{{Content: "Speaker 1: Hello."}},
		block:  true,
	}
	srv, registry := newTestServerWith(t, gw)

	_, created := postJob(t, srv, `{"prompt":"two friends argue about coffee"}`)
	id := created["id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/v1/jobs/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		rec, err := registry.Get(id)
		return err == nil && rec.Status == job.StatusStreaming
	}, 2*time.Second, 10*time.Millisecond)

	del, err := http.NewRequest("DELETE", srv.URL+"/api/v1/jobs/"+id, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(del)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)

	// The already-connected subscriber gets a terminal error, not a hang.
	var last sseEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			last = sseEvent{name: strings.TrimPrefix(line, "event: ")}
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last.data))
		}
		if last.name == "error" && last.data != nil {
			break
		}
	}
	require.Equal(t, "error", last.name)
	require.Equal(t, "job deleted", last.data["message"])

	// The feed went with the job; later subscribers get 404.
	resp2, err := http.Get(srv.URL + "/api/v1/jobs/" + id + "/events")
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestListSavedBadCategory(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/jobs/saved?category=weird")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventPayloadShapes(t *testing.T) {
	meta := eventPayload(stream.Event{Type: stream.EventMeta, ImprovedPrompt: "ip"})
	require.JSONEq(t, `{"improved_prompt":"ip"}`, string(meta))

	chunk := eventPayload(stream.Event{Type: stream.EventChunk, Delta: "d", Full: "fd"})
	require.JSONEq(t, `{"delta":"d","full":"fd","truncated":false}`, string(chunk))

	done := eventPayload(stream.Event{Type: stream.EventDone, Title: "T", Full: "f", Truncated: true})
	require.JSONEq(t, `{"title":"T","full":"f","truncated":true}`, string(done))

	errEv := eventPayload(stream.Event{Type: stream.EventError, Message: "boom"})
	require.JSONEq(t, `{"message":"boom"}`, string(errEv))
}
