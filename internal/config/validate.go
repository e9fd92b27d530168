package config

import (
	"fmt"
	"net/mail"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
// Credentials are checked for shape only; reachability is a runtime concern.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}

	if c.Transcript.SupadataEnabled && strings.TrimSpace(c.Transcript.SupadataAPIKey) == "" {
		problems = append(problems, "transcript.supadata_api_key is required when transcript.supadata_enabled is true")
	}
	if !c.Transcript.CaptionsEnabled && !c.Transcript.TimedtextEnabled && !c.Transcript.YtDlpEnabled && !c.Transcript.SupadataEnabled {
		problems = append(problems, "at least one transcript strategy must be enabled")
	}

	if to := strings.TrimSpace(c.Email.To); to != "" {
		if _, err := mail.ParseAddress(to); err != nil {
			problems = append(problems, fmt.Sprintf("email.to is not a valid address: %v", err))
		}
	}
	if from := strings.TrimSpace(c.Email.From); from != "" {
		if _, err := mail.ParseAddress(from); err != nil {
			problems = append(problems, fmt.Sprintf("email.from is not a valid address: %v", err))
		}
	}
	if c.Email.SMTPPort < 0 || c.Email.SMTPPort > 65535 {
		problems = append(problems, "email.smtp_port must be between 0 and 65535")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// DeliveryConfigured reports whether SMTP delivery has the settings required
// to send mail. The pipeline skips the delivery step when this is false and
// the send_email setting is off.
func (c *Config) DeliveryConfigured() bool {
	return strings.TrimSpace(c.Email.SMTPHost) != "" &&
		strings.TrimSpace(c.Email.From) != "" &&
		strings.TrimSpace(c.Email.To) != ""
}
