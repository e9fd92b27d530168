// Package scheduler triggers pipeline runs on an interval that is re-read
// from the settings table after every run, plus on-demand triggers from the
// HTTP API.
package scheduler
