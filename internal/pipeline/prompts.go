package pipeline

import (
	"fmt"
	"strings"

	"github.com/rkstudio/podcastai/internal/voices"
)

// augmentInstruction is the system prompt for the one-shot call that turns a
// raw user idea into a detailed dialogue-generation prompt.
const augmentInstruction = `Your task:
You are a prompt generator that takes a user idea (either spoken or written) and converts it into a detailed, high-quality prompt to be used for a text-to-speech dialogue model.
Analyze the user's input and extract the following information:
- Characters: Who are the speakers? What are their personalities?
- Scenario / Topic: What is the conversation about?
- Tone / Style: What is the mood (e.g., casual, professional, educational)?
- Language mix: Are multiple languages or specific accents mentioned?
- Special rules: Are there any other instructions like correcting mistakes?
Use the extracted data to build the final prompt. If any field is missing, use generic but sensible assumptions.
Your output should:
- Describe the roles, personalities, and speaking styles of each character.
- Clearly explain the scenario and context of the conversation.
- Specify the tone and style.
- Include clear instructions for language usage.
- Describe how to handle corrections, vocabulary explanations, and mistakes (if applicable).
- Provide clear output formatting instructions (e.g., "Only output dialogue, labeled with character names").
- Avoid adding any extra narration, sound effects, or non-dialogue text.
Output ONLY the improved prompt itself, not any commentary or explanation.
Be explicit, professional, and detailed to ensure the TTS model fully understands the task.`

// transcriptionInstruction steers the STT step for recorded prompt ideas.
const transcriptionInstruction = "Transcribe the spoken audio accurately. Output only the plain text transcript without speaker labels. Do not invent content beyond what is clearly heard."

// speakerInstructions derives the monologue/dialogue framing from the job's
// speaker plan.
func speakerInstructions(speakerCount int, voiceMarkers []string) string {
	if speakerCount <= 1 {
		gender := "unspecified"
		if len(voiceMarkers) > 0 {
			gender = voices.Describe(voiceMarkers[0])
		}
		return fmt.Sprintf(
			"There is exactly one speaker. It is a %s host speaking alone. Write the output as a monologue (no other voices).",
			gender,
		)
	}

	v1, v2 := "unspecified", "unspecified"
	if len(voiceMarkers) > 0 {
		v1 = voices.Describe(voiceMarkers[0])
	}
	if len(voiceMarkers) > 1 {
		v2 = voices.Describe(voiceMarkers[1])
	}
	return fmt.Sprintf(
		"There are exactly two speakers. Speaker 1 is %s. Speaker 2 is %s. "+
			"Alternate their dialogue naturally. Label each line with 'Speaker 1:' or 'Speaker 2:' only. "+
			"Do not invent extra characters.",
		v1, v2,
	)
}

// contextInstructions folds the optional theme, location and language hints
// into the augmentation input.
func contextInstructions(theme, geoLocation, language string) string {
	var parts []string
	if theme != "" {
		parts = append(parts, "Theme: "+theme+".")
	}
	if geoLocation != "" {
		parts = append(parts, "The content should be localised for "+geoLocation+".")
	}
	if language != "" {
		parts = append(parts, "Write the dialogue in "+language+".")
	}
	return strings.Join(parts, " ")
}

// titlePrompt asks for a short episode title; the transcript is clipped so
// the follow-up call stays cheap.
func titlePrompt(fullText string) string {
	const maxTranscript = 6000
	if len(fullText) > maxTranscript {
		fullText = fullText[:maxTranscript]
	}
	return "Generate a concise, compelling podcast episode title (max 8 words) based ONLY on this transcript." +
		" No quotes, no extra punctuation. Transcript:\n" + fullText
}

// heuristicTitle extracts a title from the transcript when the follow-up
// title call fails: the first eight words of the first non-empty line, with
// speaker labels stripped.
func heuristicTitle(fullText string) string {
	for _, line := range strings.Split(fullText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.Index(line, ":"); idx > 0 && idx < 20 {
			line = strings.TrimSpace(line[idx+1:])
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		if len(words) > 8 {
			words = words[:8]
		}
		return strings.TrimRight(strings.Join(words, " "), ".,;!?")
	}
	return "Untitled Episode"
}
