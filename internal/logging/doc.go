// Package logging centralizes slog construction and the structured field
// vocabulary shared by the daemon, pipeline, and CLI.
package logging
