package job

import "time"

// Mode describes how the prompt was supplied.
type Mode string

const (
	ModeText  Mode = "text"
	ModeAudio Mode = "audio"
)

// Category buckets a job for the saved listing.
type Category string

const (
	CategoryGenerated    Category = "generated"
	CategoryLocalisation Category = "localisation"
)

// Record is the full state of one generation request. Records are owned by
// the Registry: callers receive copies and mutate exclusively through
// Registry.Update. Audio payloads carry no JSON tags on purpose so that
// snapshots stay small; audio is re-synthesizable after a restart.
type Record struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Mode   Mode   `json:"mode"`

	Prompt         string `json:"prompt,omitempty"`
	ImprovedPrompt string `json:"improved_prompt,omitempty"`
	AudioInput     []byte `json:"-"`
	AudioInputMime string `json:"-"`
	UseSearch      bool   `json:"use_search,omitempty"`

	SpeakerCount int      `json:"speaker_count"`
	Voices       []string `json:"voices"`
	Category     Category `json:"category"`
	Theme        string   `json:"theme,omitempty"`
	GeoLocation  string   `json:"geo_location,omitempty"`
	Language     string   `json:"language,omitempty"`

	// Segments holds every transcript fragment in arrival order; FullText is
	// their concatenation. Both are append-only until the finalization
	// normalization pass.
	Segments  []string `json:"segments,omitempty"`
	FullText  string   `json:"full_text,omitempty"`
	Title     string   `json:"title,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`

	Audio         []byte `json:"-"`
	AudioType     string `json:"audio_type,omitempty"`
	AudioFallback bool   `json:"audio_fallback,omitempty"`

	Saved         bool     `json:"saved,omitempty"`
	SavedCategory Category `json:"saved_category,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ErrMessage string    `json:"error,omitempty"`
}

// AppendSegment extends the transcript with one fragment.
func (r *Record) AppendSegment(delta string) {
	r.Segments = append(r.Segments, delta)
	r.FullText += delta
}

// Clone returns a deep copy safe to hand outside the registry.
func (r *Record) Clone() Record {
	out := *r
	if r.Voices != nil {
		out.Voices = append([]string(nil), r.Voices...)
	}
	if r.Segments != nil {
		out.Segments = append([]string(nil), r.Segments...)
	}
	if r.Audio != nil {
		out.Audio = append([]byte(nil), r.Audio...)
	}
	if r.AudioInput != nil {
		out.AudioInput = append([]byte(nil), r.AudioInput...)
	}
	return out
}
