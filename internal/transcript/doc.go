// Package transcript extracts video transcripts through an ordered cascade
// of strategies. Failed attempts are cached per (video, strategy) so repeat
// runs skip known-bad sources until a cooldown elapses.
package transcript
