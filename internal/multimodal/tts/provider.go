package tts

import "context"

// SynthesisRequest carries the transcript and voice plan for one job.
type SynthesisRequest struct {
	Input        string   `json:"input"`
	Voices       []string `json:"voices,omitempty"` // resolved catalog voice names, one per speaker
	SpeakerCount int      `json:"speaker_count,omitempty"`
	Language     string   `json:"language,omitempty"`
	Speed        float64  `json:"speed,omitempty"`
}

// SynthesisResult holds the generated audio and its content type.
type SynthesisResult struct {
	Audio       []byte
	ContentType string // "audio/mpeg" (OpenAI) or "audio/wav" (Piper)
}

// Provider is the interface for text-to-speech backends.
type Provider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}
