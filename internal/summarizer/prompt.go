package summarizer

import (
	"strconv"
	"strings"
)

// SummaryPrompt captures the default instructions sent with every transcript.
// Keep updates centralized here so it is easy to tweak without hunting through
// call sites. Operators can replace it at runtime via the prompt_template
// setting.
const SummaryPrompt = `You are an assistant that summarizes YouTube video transcripts.

Write a concise summary of the transcript you are given. Structure it as:

- One short paragraph stating what the video is about and its main conclusion.
- 3 to 7 bullet points covering the key arguments, facts, or steps, in the order they appear.
- If the video makes concrete recommendations, end with a short "Takeaways" line.

Rules:

- Use only information from the transcript. Do not invent details.
- Write in plain prose, no markdown headings.
- If the transcript is too garbled or short to summarize, say so in one sentence instead of guessing.`

// DefaultSummaryWords is the word budget appended to the prompt when the
// summary_words setting is unset.
const DefaultSummaryWords = 300

// maxTranscriptChars bounds the transcript sent upstream; longer inputs are
// truncated from the tail, which drops outros rather than content.
const maxTranscriptChars = 48000

func buildPrompt(override string, maxWords int) string {
	prompt := strings.TrimSpace(override)
	if prompt == "" {
		prompt = SummaryPrompt
	}
	if maxWords <= 0 {
		maxWords = DefaultSummaryWords
	}
	return prompt +
		"\n\nKeep the whole summary under " + strconv.Itoa(maxWords) + " words." +
		"\n\nThe transcript follows:"
}
