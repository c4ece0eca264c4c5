package textmetrics

import (
	"strings"
	"time"
)

// DefaultWordsPerMinute is a conversational speech rate used when no rate is
// configured.
const DefaultWordsPerMinute = 150

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// EstimateSpokenDuration estimates how long a transcript of the given word
// count takes to read aloud at the given rate. Non-positive rates fall back
// to DefaultWordsPerMinute.
func EstimateSpokenDuration(words, wordsPerMinute int) time.Duration {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	return time.Duration(float64(words) / float64(wordsPerMinute) * float64(time.Minute))
}
