// Package summarizer turns transcripts into email-ready summaries through
// an OpenAI-compatible chat completions endpoint.
package summarizer
