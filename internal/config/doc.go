// Package config loads and validates the recap TOML configuration.
//
// The file holds static deployment settings: paths, credentials, endpoints,
// and timing constants. Knobs an operator changes at runtime (scheduler
// interval, email toggle, prompt template) live in the store's settings table
// and are re-read at the start of every pipeline run.
package config
