package stt

import "context"

// TranscriptionRequest holds an in-memory audio clip to transcribe.
type TranscriptionRequest struct {
	Audio    []byte `json:"-"`
	Mime     string `json:"mime,omitempty"` // e.g. "audio/webm"; defaults to audio/webm
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// TranscriptionResponse holds the transcription result.
type TranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
	Name() string
}
