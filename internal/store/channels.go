package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddChannel registers a channel for feed discovery. added_at marks the
// watermark: only videos uploaded after it are picked up. Re-adding an
// existing channel updates its name but keeps the watermark.
func (s *Store) AddChannel(ctx context.Context, channelID, name string) (*Channel, bool, error) {
	if channelID == "" {
		return nil, false, errors.New("channel id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO channels (channel_id, name, added_at, enabled) VALUES (?, ?, ?, 1)
         ON CONFLICT(channel_id) DO UPDATE SET name = excluded.name`,
		channelID, nullableString(name), now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("add channel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return nil, false, err
	}
	if channel == nil {
		return nil, false, fmt.Errorf("channel %s missing after insert", channelID)
	}
	return channel, affected > 0 && channel.AddedAt.Format(time.RFC3339Nano) == now, nil
}

// GetChannel fetches one channel, or nil when unknown.
func (s *Store) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT channel_id, name, added_at, enabled FROM channels WHERE channel_id = ?`, channelID)
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return channel, nil
}

// ListChannels returns all registered channels, oldest first.
func (s *Store) ListChannels(ctx context.Context) ([]*Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, name, added_at, enabled FROM channels ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}

// EnabledChannels returns the channels discovery should poll.
func (s *Store) EnabledChannels(ctx context.Context) ([]*Channel, error) {
	channels, err := s.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	enabled := channels[:0]
	for _, channel := range channels {
		if channel.Enabled {
			enabled = append(enabled, channel)
		}
	}
	return enabled, nil
}

// SetChannelEnabled toggles discovery for a channel without losing its watermark.
func (s *Store) SetChannelEnabled(ctx context.Context, channelID string, enabled bool) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE channels SET enabled = ? WHERE channel_id = ?`, boolToInt(enabled), channelID)
	if err != nil {
		return false, fmt.Errorf("set channel enabled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RemoveChannel unregisters a channel. Items already queued from it are kept.
func (s *Store) RemoveChannel(ctx context.Context, channelID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM channels WHERE channel_id = ?`, channelID)
	if err != nil {
		return false, fmt.Errorf("remove channel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanChannel(scanner interface{ Scan(dest ...any) error }) (*Channel, error) {
	var (
		channelID string
		name      sql.NullString
		addedRaw  string
		enabled   int
	)
	if err := scanner.Scan(&channelID, &name, &addedRaw, &enabled); err != nil {
		return nil, err
	}
	channel := &Channel{
		ChannelID: channelID,
		Name:      name.String,
		Enabled:   enabled != 0,
	}
	if added, err := parseTimeString(addedRaw); err == nil {
		channel.AddedAt = added
	}
	return channel, nil
}
