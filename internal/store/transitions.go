package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotRetryable indicates a plain retry was requested for an item whose
// status does not allow it.
var ErrNotRetryable = errors.New("item is not retryable")

// ErrNotFound indicates the requested item does not exist.
var ErrNotFound = errors.New("item not found")

// Retry moves a failed item back to pending. Plain retries are allowed from
// the non-permanent failure states and count against the retry budget.
// Forced retries additionally rescue failed_permanent items and reset the
// budget to a single consumed attempt.
func (s *Store) Retry(ctx context.Context, videoID string, force bool) (*Item, error) {
	item, err := s.GetByVideoID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, videoID)
	}

	switch {
	case item.ManuallyRetryable():
		item.RetryCount++
	case item.Status == StatusFailedPermanent && force:
		item.RetryCount = 1
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRetryable, videoID, item.Status)
	}

	item.ErrorMessage = ""
	item.StopRequested = false
	item.LastHeartbeat = nil
	if err := s.Transition(ctx, item, StatusPending); err != nil {
		return nil, err
	}
	return item, nil
}

// RequestStop asks for an item to be taken out of processing. Pending items
// are failed immediately; in-flight items are flagged and the pipeline stops
// them at the next step boundary. Terminal items are left untouched and
// reported as not stopped.
func (s *Store) RequestStop(ctx context.Context, videoID string) (*Item, bool, error) {
	item, err := s.GetByVideoID(ctx, videoID)
	if err != nil {
		return nil, false, err
	}
	if item == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, videoID)
	}

	switch {
	case item.Status == StatusPending:
		item.ErrorMessage = UserStopReason
		item.StopRequested = false
		if err := s.Transition(ctx, item, StatusFailedStopped); err != nil {
			return nil, false, err
		}
		return item, true, nil
	case item.IsInFlight():
		item.StopRequested = true
		if err := s.Update(ctx, item); err != nil {
			return nil, false, err
		}
		return item, true, nil
	default:
		return item, false, nil
	}
}

// ReclaimStale resets in-flight items whose heartbeat is older than the
// cutoff. A reclaim counts as a failed attempt: items still inside the retry
// budget return to pending, the rest go to failed_permanent. It returns the
// items that were reclaimed.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time, maxRetries int) ([]*Item, error) {
	stale, err := s.staleInFlight(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var reclaimed []*Item
	for _, item := range stale {
		item.RetryCount++
		item.LastHeartbeat = nil
		item.StopRequested = false

		target := StatusPending
		item.ErrorMessage = StuckReclaimReason
		if item.RetryCount >= maxRetries {
			target = StatusFailedPermanent
			item.ErrorMessage = MaxRetriesReason
		}
		if err := s.Transition(ctx, item, target); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return reclaimed, err
		}
		reclaimed = append(reclaimed, item)
	}
	return reclaimed, nil
}

func (s *Store) staleInFlight(ctx context.Context, cutoff time.Time) ([]*Item, error) {
	inFlight := []Status{
		StatusFetchingMetadata,
		StatusFetchingTranscript,
		StatusGeneratingSummary,
		StatusSendingEmail,
	}
	query := `SELECT ` + itemColumns + ` FROM videos
        WHERE status IN (` + makePlaceholders(len(inFlight)) + `)
          AND (last_heartbeat IS NULL OR last_heartbeat < ?)
        ORDER BY created_at`
	args := make([]any, 0, len(inFlight)+1)
	for _, status := range inFlight {
		args = append(args, status)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stale items: %w", err)
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
