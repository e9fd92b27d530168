// Package pipeline orchestrates one processing run: discovery from channel
// feeds, then walking every due item through metadata, transcript, summary,
// and email steps under the single-writer run lock.
//
// Items move through a closed state machine persisted by the store. Each
// step commits its outcome before the next starts, so a crash never loses
// more than the step in flight; stale in-flight items are reclaimed by the
// next run via heartbeats.
package pipeline
