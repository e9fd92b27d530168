// Package store manages recap persistence backed by SQLite: pipeline items,
// cached transcript failures, monitored channels, and runtime settings.
//
// The store is the sole owner of persistent state. Item status transitions
// are validated against the pipeline state machine; callers cannot write an
// undefined transition.
package store
