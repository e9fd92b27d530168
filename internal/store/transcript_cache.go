package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CacheTranscriptFailure records that a strategy failed for a video so the
// cascade can skip it during the cooldown window. Repeat failures refresh
// the timestamp.
func (s *Store) CacheTranscriptFailure(ctx context.Context, videoID, strategy, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO transcript_cache (video_id, strategy, reason, checked_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(video_id, strategy) DO UPDATE SET reason = excluded.reason, checked_at = excluded.checked_at`,
		videoID, strategy, nullableString(reason), now,
	); err != nil {
		return fmt.Errorf("cache transcript failure: %w", err)
	}
	return nil
}

// FreshTranscriptFailures returns the strategies that failed for a video
// after the cutoff, keyed by strategy name.
func (s *Store) FreshTranscriptFailures(ctx context.Context, videoID string, cutoff time.Time) (map[string]TranscriptFailure, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT video_id, strategy, reason, checked_at FROM transcript_cache
         WHERE video_id = ? AND checked_at >= ?`,
		videoID, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query transcript cache: %w", err)
	}
	defer rows.Close()

	failures := make(map[string]TranscriptFailure)
	for rows.Next() {
		var failure TranscriptFailure
		var reason sql.NullString
		var checkedRaw string
		if err := rows.Scan(&failure.VideoID, &failure.Strategy, &reason, &checkedRaw); err != nil {
			return nil, err
		}
		failure.Reason = reason.String
		if checked, err := parseTimeString(checkedRaw); err == nil {
			failure.CheckedAt = checked
		}
		failures[failure.Strategy] = failure
	}
	return failures, rows.Err()
}

// ClearTranscriptFailures drops all cached failures for a video. Used by
// forced retries so the full cascade runs again immediately.
func (s *Store) ClearTranscriptFailures(ctx context.Context, videoID string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM transcript_cache WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("clear transcript cache: %w", err)
	}
	return nil
}
