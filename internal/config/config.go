package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// YouTube contains configuration for video discovery and metadata.
type YouTube struct {
	FeedBaseURL         string `toml:"feed_base_url"`
	YtDlpBinary         string `toml:"ytdlp_binary"`
	MaxVideosPerChannel int    `toml:"max_videos_per_channel"`
	RequestTimeout      int    `toml:"request_timeout"`
}

// Transcript contains configuration for the extraction cascade.
type Transcript struct {
	CaptionsEnabled  bool   `toml:"captions_enabled"`
	TimedtextEnabled bool   `toml:"timedtext_enabled"`
	YtDlpEnabled     bool   `toml:"ytdlp_enabled"`
	SupadataEnabled  bool   `toml:"supadata_enabled"`
	SupadataAPIKey   string `toml:"supadata_api_key"`
	SupadataBaseURL  string `toml:"supadata_base_url"`
	TimedtextBaseURL string `toml:"timedtext_base_url"`
	CooldownHours    int    `toml:"cooldown_hours"`
	RequestTimeout   int    `toml:"request_timeout"`
	Language         string `toml:"language"`
}

// Summarizer contains configuration for the chat-completions service.
type Summarizer struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Email contains configuration for SMTP delivery.
type Email struct {
	SMTPHost       string `toml:"smtp_host"`
	SMTPPort       int    `toml:"smtp_port"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	From           string `toml:"from"`
	To             string `toml:"to"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains configuration for orchestrator timing and retry limits.
type Pipeline struct {
	MaxRetries        int `toml:"max_retries"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
}

// Scheduler contains the fallback run interval used when the settings table
// has no value yet.
type Scheduler struct {
	DefaultIntervalMinutes int `toml:"default_interval_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config aggregates every recap configuration section.
type Config struct {
	Paths      Paths      `toml:"paths"`
	YouTube    YouTube    `toml:"youtube"`
	Transcript Transcript `toml:"transcript"`
	Summarizer Summarizer `toml:"summarizer"`
	Email      Email      `toml:"email"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Scheduler  Scheduler  `toml:"scheduler"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath is the location used when no explicit path is provided.
const DefaultConfigPath = "~/.config/recap/config.toml"

// Load reads the configuration file at path (or the default location when
// path is empty), applies defaults for missing values, expands home-relative
// paths, and validates the result. The returned string is the path actually
// used; ok reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath
	}
	expanded, err := ExpandPath(resolved)
	if err != nil {
		return nil, resolved, false, err
	}

	cfg := Default()
	data, readErr := os.ReadFile(expanded)
	switch {
	case readErr == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, expanded, true, fmt.Errorf("parse config %s: %w", expanded, err)
		}
	case errors.Is(readErr, fs.ErrNotExist):
		// Missing file means defaults; validation still applies.
	default:
		return nil, expanded, false, fmt.Errorf("read config %s: %w", expanded, readErr)
	}

	if err := cfg.normalize(); err != nil {
		return nil, expanded, readErr == nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, expanded, readErr == nil, err
	}
	return &cfg, expanded, readErr == nil, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(expanded); statErr == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o600)
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "recap.db")
}

// LockPath returns the run lock location under the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "recapd.lock")
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return trimmed, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if c.Pipeline.MaxRetries <= 0 {
		c.Pipeline.MaxRetries = defaultMaxRetries
	}
	if c.Pipeline.HeartbeatInterval <= 0 {
		c.Pipeline.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Pipeline.HeartbeatTimeout <= 0 {
		c.Pipeline.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Scheduler.DefaultIntervalMinutes <= 0 {
		c.Scheduler.DefaultIntervalMinutes = defaultIntervalMinutes
	}
	if c.Transcript.CooldownHours <= 0 {
		c.Transcript.CooldownHours = defaultCooldownHours
	}
	if c.YouTube.MaxVideosPerChannel <= 0 {
		c.YouTube.MaxVideosPerChannel = defaultMaxVideosPerChannel
	}
	return nil
}
