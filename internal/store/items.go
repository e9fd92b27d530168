package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrConflict indicates a status transition lost a race with a concurrent
// writer: the row's persisted status no longer matches the in-memory item.
var ErrConflict = errors.New("item status changed concurrently")

// ErrIllegalTransition indicates the state machine does not define the
// requested (from, to) pair.
var ErrIllegalTransition = errors.New("illegal status transition")

// NewVideo describes a video to insert.
type NewVideo struct {
	VideoID         string
	Title           string
	ChannelID       string
	ChannelName     string
	DurationSeconds int64
	UploadedAt      *time.Time
	SourceKind      SourceKind
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	Statuses   []Status
	ChannelID  string
	SourceKind SourceKind
	Limit      int
	Offset     int
}

// AddVideo inserts a new pending item. Submitting an already-known video id
// is a no-op that returns the existing item with created=false.
func (s *Store) AddVideo(ctx context.Context, nv NewVideo) (*Item, bool, error) {
	if nv.VideoID == "" {
		return nil, false, errors.New("video id is required")
	}
	if nv.SourceKind == "" {
		nv.SourceKind = SourceManual
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT OR IGNORE INTO videos (
            video_id, title, channel_id, channel_name, duration_seconds,
            uploaded_at, source_kind, status, retry_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		nv.VideoID,
		nullableString(nv.Title),
		nullableString(nv.ChannelID),
		nullableString(nv.ChannelName),
		nv.DurationSeconds,
		nullableTime(nv.UploadedAt),
		nv.SourceKind,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert video: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	item, err := s.GetByVideoID(ctx, nv.VideoID)
	if err != nil {
		return nil, false, err
	}
	if item == nil {
		return nil, false, fmt.Errorf("video %s missing after insert", nv.VideoID)
	}
	return item, inserted > 0, nil
}

// GetByVideoID fetches an item by its external video identifier.
func (s *Store) GetByVideoID(ctx context.Context, videoID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM videos WHERE video_id = ?`, videoID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return item, nil
}

// List returns items matching the filter, ordered by creation time.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM videos`
	var clauses []string
	var args []any

	if len(filter.Statuses) > 0 {
		clauses = append(clauses, `status IN (`+makePlaceholders(len(filter.Statuses))+`)`)
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.ChannelID != "" {
		clauses = append(clauses, `channel_id = ?`)
		args = append(args, filter.ChannelID)
	}
	if filter.SourceKind != "" {
		clauses = append(clauses, `source_kind = ?`)
		args = append(args, filter.SourceKind)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY created_at`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Due returns the items a pipeline run should process: pending items plus
// non-permanent failures awaiting their deferred automatic retry, oldest
// first.
func (s *Store) Due(ctx context.Context) ([]*Item, error) {
	statuses := append([]Status{StatusPending}, AutoRetryStatuses...)
	return s.List(ctx, ListFilter{Statuses: statuses})
}

// Update persists all mutable fields of an item without changing its status.
// Status changes must go through Transition.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET title = ?, channel_id = ?, channel_name = ?, duration_seconds = ?,
             uploaded_at = ?, retry_count = ?, error_message = ?, transcript = ?,
             transcript_source = ?, summary = ?, email_sent = ?, stop_requested = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE video_id = ?`,
		nullableString(item.Title),
		nullableString(item.ChannelID),
		nullableString(item.ChannelName),
		item.DurationSeconds,
		nullableTime(item.UploadedAt),
		item.RetryCount,
		nullableString(item.ErrorMessage),
		nullableString(item.Transcript),
		nullableString(item.TranscriptSource),
		nullableString(item.Summary),
		boolToInt(item.EmailSent),
		boolToInt(item.StopRequested),
		nullableTime(item.LastHeartbeat),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.VideoID,
	)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	return nil
}

// Transition commits a status change together with the item's current field
// values. The change is validated against the state machine and guarded
// against concurrent writers: if the persisted status no longer matches the
// in-memory one, ErrConflict is returned and nothing is written.
func (s *Store) Transition(ctx context.Context, item *Item, to Status) error {
	if item == nil {
		return errors.New("item is nil")
	}
	from := item.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET status = ?, title = ?, channel_id = ?, channel_name = ?,
             duration_seconds = ?, uploaded_at = ?, retry_count = ?,
             error_message = ?, transcript = ?, transcript_source = ?,
             summary = ?, email_sent = ?, stop_requested = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE video_id = ? AND status = ?`,
		to,
		nullableString(item.Title),
		nullableString(item.ChannelID),
		nullableString(item.ChannelName),
		item.DurationSeconds,
		nullableTime(item.UploadedAt),
		item.RetryCount,
		nullableString(item.ErrorMessage),
		nullableString(item.Transcript),
		nullableString(item.TranscriptSource),
		nullableString(item.Summary),
		boolToInt(item.EmailSent),
		boolToInt(item.StopRequested),
		nullableTime(item.LastHeartbeat),
		now.Format(time.RFC3339Nano),
		item.VideoID,
		from,
	)
	if err != nil {
		return fmt.Errorf("transition video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrConflict, item.VideoID)
	}
	item.Status = to
	item.UpdatedAt = now
	return nil
}

// UpdateHeartbeat refreshes the in-flight heartbeat timestamp for an item.
func (s *Store) UpdateHeartbeat(ctx context.Context, videoID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE videos SET last_heartbeat = ?, updated_at = ? WHERE video_id = ?`,
		now, now, videoID,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM videos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("video stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Remove deletes an item. The pipeline never calls this; it backs the
// user-facing delete action only.
func (s *Store) Remove(ctx context.Context, videoID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM videos WHERE video_id = ?`, videoID)
	if err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const itemColumns = "video_id, title, channel_id, channel_name, duration_seconds, uploaded_at, source_kind, status, retry_count, error_message, transcript, transcript_source, summary, email_sent, stop_requested, last_heartbeat, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		videoID          string
		title            sql.NullString
		channelID        sql.NullString
		channelName      sql.NullString
		durationSeconds  sql.NullInt64
		uploadedRaw      sql.NullString
		sourceKind       string
		statusStr        string
		retryCount       sql.NullInt64
		errorMessage     sql.NullString
		transcript       sql.NullString
		transcriptSource sql.NullString
		summary          sql.NullString
		emailSent        sql.NullInt64
		stopRequested    sql.NullInt64
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&videoID,
		&title,
		&channelID,
		&channelName,
		&durationSeconds,
		&uploadedRaw,
		&sourceKind,
		&statusStr,
		&retryCount,
		&errorMessage,
		&transcript,
		&transcriptSource,
		&summary,
		&emailSent,
		&stopRequested,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		VideoID:          videoID,
		Title:            title.String,
		ChannelID:        channelID.String,
		ChannelName:      channelName.String,
		DurationSeconds:  durationSeconds.Int64,
		SourceKind:       SourceKind(sourceKind),
		Status:           Status(statusStr),
		RetryCount:       int(retryCount.Int64),
		ErrorMessage:     errorMessage.String,
		Transcript:       transcript.String,
		TranscriptSource: transcriptSource.String,
		Summary:          summary.String,
		EmailSent:        emailSent.Int64 != 0,
		StopRequested:    stopRequested.Int64 != 0,
	}
	if uploadedRaw.Valid {
		if uploaded, err := parseTimeString(uploadedRaw.String); err == nil {
			item.UploadedAt = &uploaded
		}
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}
