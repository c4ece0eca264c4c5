package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rkstudio/podcastai/internal/job"
	"github.com/rkstudio/podcastai/internal/pipeline"
	"github.com/rkstudio/podcastai/internal/saved"
	"github.com/rkstudio/podcastai/internal/snapshot"
	"github.com/rkstudio/podcastai/internal/stream"
	"github.com/rkstudio/podcastai/internal/synth"
)

type JobsHandler struct {
	registry    *job.Registry
	hub         *stream.Hub
	runner      *pipeline.Runner
	synthesizer *synth.Synthesizer
	index       *saved.Index
	snapshots   *snapshot.Client
}

func NewJobsHandler(registry *job.Registry, hub *stream.Hub, runner *pipeline.Runner, synthesizer *synth.Synthesizer, index *saved.Index, snapshots *snapshot.Client) *JobsHandler {
	return &JobsHandler{
		registry:    registry,
		hub:         hub,
		runner:      runner,
		synthesizer: synthesizer,
		index:       index,
		snapshots:   snapshots,
	}
}

type createJobRequest struct {
	Prompt       string   `json:"prompt"`
	AudioBase64  string   `json:"audio_base64,omitempty"`
	AudioMime    string   `json:"audio_mime,omitempty"`
	UseSearch    bool     `json:"use_search"`
	SpeakerCount int      `json:"speaker_count"`
	Voices       []string `json:"voices"`
	Category     string   `json:"category"`
	Theme        string   `json:"theme"`
	GeoLocation  string   `json:"geo_location"`
	Language     string   `json:"language"`
}

// Create validates the request, registers a pending job and starts the
// pipeline. It responds before any generation work happens; callers follow
// progress on the events stream.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	spec, err := h.buildSpec(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rec := h.registry.Create(spec)
	h.runner.Start(rec.ID)

	writeJSON(w, http.StatusAccepted, rec)
}

func (h *JobsHandler) buildSpec(req createJobRequest) (job.Spec, error) {
	spec := job.Spec{
		Prompt:       req.Prompt,
		UseSearch:    req.UseSearch,
		SpeakerCount: req.SpeakerCount,
		Voices:       req.Voices,
		Theme:        req.Theme,
		GeoLocation:  req.GeoLocation,
		Language:     req.Language,
	}

	if req.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			return job.Spec{}, errors.New("audio_base64 is not valid base64")
		}
		spec.Mode = job.ModeAudio
		spec.AudioInput = audio
		spec.AudioInputMime = req.AudioMime
	} else {
		spec.Mode = job.ModeText
		if spec.Prompt == "" {
			return job.Spec{}, errors.New("prompt is required")
		}
	}

	if spec.SpeakerCount == 0 {
		spec.SpeakerCount = 2
	}
	if spec.SpeakerCount < 1 || spec.SpeakerCount > 2 {
		return job.Spec{}, errors.New("speaker_count must be 1 or 2")
	}
	if len(spec.Voices) > spec.SpeakerCount {
		return job.Spec{}, fmt.Errorf("at most %d voices for %d speaker(s)", spec.SpeakerCount, spec.SpeakerCount)
	}
	if len(spec.Voices) == 0 {
		if spec.SpeakerCount == 1 {
			spec.Voices = []string{"F"}
		} else {
			spec.Voices = []string{"F", "M"}
		}
	}

	switch job.Category(req.Category) {
	case "":
		spec.Category = job.CategoryGenerated
	case job.CategoryGenerated, job.CategoryLocalisation:
		spec.Category = job.Category(req.Category)
	default:
		return job.Spec{}, errors.New("category must be 'generated' or 'localisation'")
	}

	return spec, nil
}

func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": h.registry.List()})
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Events streams the job's event log as server-sent events: full history
// first, then the live tail, ending with the terminal event. Reconnecting
// clients replay from the start.
func (h *JobsHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// The feed is the existence check here, not the registry record. Every
	// live or restored job has a feed from pipeline start or snapshot restore,
	// and deletion removes it; checking the registry first and opening the
	// feed afterwards would let a concurrent delete slip between the two and
	// leave the subscriber on a recreated, never-terminated feed.
	feed, ok := h.hub.Get(id)
	if !ok {
		writeJobError(w, job.ErrNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range feed.Subscribe(r.Context()) {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, eventPayload(ev))
		flusher.Flush()
		if ev.Terminal() {
			return
		}
	}
}

// eventPayload keeps each event type's wire shape minimal: meta carries the
// improved prompt, chunk the delta and running transcript, done the final
// transcript and title, error the message.
func eventPayload(ev stream.Event) []byte {
	var body interface{}
	switch ev.Type {
	case stream.EventMeta:
		body = map[string]string{"improved_prompt": ev.ImprovedPrompt}
	case stream.EventChunk:
		body = map[string]interface{}{"delta": ev.Delta, "full": ev.Full, "truncated": ev.Truncated}
	case stream.EventDone:
		body = map[string]interface{}{"title": ev.Title, "full": ev.Full, "truncated": ev.Truncated}
	case stream.EventError:
		body = map[string]string{"message": ev.Message}
	}
	data, _ := json.Marshal(body)
	return data
}

// Audio serves the synthesized episode, triggering synthesis on first
// request. Jobs still streaming return 409.
func (h *JobsHandler) Audio(w http.ResponseWriter, r *http.Request) {
	audio, contentType, err := h.synthesizer.Audio(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJobError(w, err)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

func (h *JobsHandler) Save(w http.ResponseWriter, r *http.Request) {
	// Body is optional; it may carry a saved-category override.
	var req struct {
		Category string `json:"category"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	switch job.Category(req.Category) {
	case "", job.CategoryGenerated, job.CategoryLocalisation:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category must be 'generated' or 'localisation'"})
		return
	}

	rec, err := h.index.Save(chi.URLParam(r, "id"), job.Category(req.Category))
	if err != nil {
		writeJobError(w, err)
		return
	}

	if err := h.snapshots.EnqueueJobWrite(rec); err != nil {
		slog.Error("failed to enqueue snapshot write", "job_id", rec.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *JobsHandler) Unsave(w http.ResponseWriter, r *http.Request) {
	rec, err := h.index.Unsave(chi.URLParam(r, "id"))
	if err != nil {
		writeJobError(w, err)
		return
	}

	if err := h.snapshots.EnqueueJobRemove(rec.ID); err != nil {
		slog.Error("failed to enqueue snapshot removal", "job_id", rec.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *JobsHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	category := job.Category(r.URL.Query().Get("category"))
	switch category {
	case "", job.CategoryGenerated, job.CategoryLocalisation:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category must be 'generated' or 'localisation'"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"saved": h.index.List(category)})
}

// Delete removes the job, cancelling any in-flight generation. Remaining
// event subscribers receive a terminal error instead of hanging.
func (h *JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.registry.Delete(id); err != nil {
		writeJobError(w, err)
		return
	}

	h.index.Forget(id)
	h.hub.Drop(id, stream.Event{Type: stream.EventError, Message: "job deleted"})

	if err := h.snapshots.EnqueueJobRemove(id); err != nil {
		slog.Error("failed to enqueue snapshot removal", "job_id", id, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
	case errors.Is(err, job.ErrNotReady):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job is not finished"})
	case errors.Is(err, job.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job is in the wrong state"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
