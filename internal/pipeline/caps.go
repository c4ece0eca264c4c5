package pipeline

import (
	"time"

	"github.com/rkstudio/podcastai/pkg/textmetrics"
)

// Caps are the transcript ceilings enforced during streaming. Word count and
// estimated spoken duration are independent limits; the word cap is checked
// first.
type Caps struct {
	MaxWords       int
	MaxDuration    time.Duration
	WordsPerMinute int
}

// Exceeded reports whether the transcript has reached either ceiling.
func (c Caps) Exceeded(text string) bool {
	words := textmetrics.CountWords(text)
	if c.MaxWords > 0 && words >= c.MaxWords {
		return true
	}
	if c.MaxDuration > 0 && textmetrics.EstimateSpokenDuration(words, c.WordsPerMinute) >= c.MaxDuration {
		return true
	}
	return false
}
