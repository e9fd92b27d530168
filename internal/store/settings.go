package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Setting keys the pipeline re-reads at the start of every run.
const (
	SettingCheckInterval  = "check_interval_minutes"
	SettingMaxVideoAge    = "max_video_age_days"
	SettingSkipShorts     = "skip_shorts"
	SettingMinDurationSec = "min_duration_seconds"
	SettingSendEmail      = "send_email"
	SettingPromptTemplate = "prompt_template"
	SettingSummaryWords   = "summary_words"
)

// GetSetting returns a runtime setting value, or fallback when unset.
func (s *Store) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting writes a runtime setting. Takes effect at the next run.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("setting key is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// AllSettings returns every stored runtime setting.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// DeleteSetting removes a runtime setting so its default applies again.
func (s *Store) DeleteSetting(ctx context.Context, key string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete setting %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
