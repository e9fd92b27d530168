// Package daemon wires the store, transcript cascade, summarizer, email
// sender, pipeline runner, and scheduler into one long-running process with
// an HTTP control surface.
package daemon
