package pipeline

import (
	"context"
	"log/slog"
	"time"

	"recap/internal/email"
	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/store"
	"recap/internal/summarizer"
	"recap/internal/textutil"
)

// processItem walks one item through the step sequence, committing status
// after every step. It returns the outcome for run statistics; every path
// leaves the item in a persisted, well-defined state.
func (r *Runner) processItem(ctx context.Context, logger *slog.Logger, item *store.Item, settings runSettings) itemOutcome {
	ctx = services.WithVideoID(ctx, item.VideoID)
	logger = logger.With(logging.String(logging.FieldVideoID, item.VideoID))

	if err := r.deps.Store.Transition(ctx, item, store.StatusFetchingMetadata); err != nil {
		logger.Error("failed to start item", logging.Error(err))
		return outcomeError
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go r.heartbeatLoop(hbCtx, item.VideoID)

	// Metadata is best effort: feed data already carries enough to
	// proceed, so enrichment failures never fail the item.
	short := false
	if r.deps.Metadata != nil {
		if meta, err := r.deps.Metadata.Fetch(ctx, item.VideoID); err != nil {
			logger.Warn("metadata fetch failed, continuing with feed data", logging.Error(err))
		} else {
			short = meta.IsShort
			if meta.Title != "" {
				item.Title = meta.Title
			}
			if meta.ChannelID != "" {
				item.ChannelID = meta.ChannelID
			}
			if meta.ChannelName != "" {
				item.ChannelName = meta.ChannelName
			}
			if meta.DurationSeconds > 0 {
				item.DurationSeconds = meta.DurationSeconds
			}
			if meta.UploadedAt != nil {
				item.UploadedAt = meta.UploadedAt
			}
		}
	}

	if settings.SkipShorts && short {
		return r.skipItem(ctx, logger, item, "Skipped: YouTube short")
	}
	if settings.MinDurationSeconds > 0 && item.DurationSeconds > 0 && item.DurationSeconds < settings.MinDurationSeconds {
		return r.skipItem(ctx, logger, item, "Skipped: below minimum duration")
	}

	if stopped := r.checkStop(ctx, logger, item); stopped {
		return outcomeStopped
	}
	if err := r.deps.Store.Transition(ctx, item, store.StatusFetchingTranscript); err != nil {
		logger.Error("transition failed", logging.Error(err))
		return outcomeError
	}

	// A transcript kept from an earlier attempt is reused so retries of
	// later steps do not repeat the cascade.
	if item.Transcript == "" {
		stepCtx := services.WithStep(ctx, "transcript")
		result, err := r.deps.Transcripts.Resolve(stepCtx, item.VideoID)
		if err != nil {
			return r.failStep(ctx, logger, item, store.StatusFailedTranscript, err)
		}
		item.Transcript = result.Text
		item.TranscriptSource = result.Source
	}

	if stopped := r.checkStop(ctx, logger, item); stopped {
		return outcomeStopped
	}
	if err := r.deps.Store.Transition(ctx, item, store.StatusGeneratingSummary); err != nil {
		logger.Error("transition failed", logging.Error(err))
		return outcomeError
	}

	if item.Summary == "" {
		stepCtx := services.WithStep(ctx, "summary")
		summary, err := r.deps.Summarizer.Summarize(stepCtx, summarizer.Request{
			Title:      item.Title,
			Transcript: item.Transcript,
			Prompt:     settings.PromptTemplate,
			MaxWords:   settings.SummaryWords,
		})
		if err != nil {
			return r.failStep(ctx, logger, item, store.StatusFailedAI, err)
		}
		item.Summary = textutil.Clean(summary)
	}

	if stopped := r.checkStop(ctx, logger, item); stopped {
		return outcomeStopped
	}

	// Without a configured sender, or with delivery switched off in the
	// settings table, the pipeline is summary-only and the item finishes
	// here.
	if r.deps.Email == nil || !settings.SendEmail {
		if err := r.finish(ctx, item); err != nil {
			logger.Error("failed to finish item", logging.Error(err))
			return outcomeError
		}
		logger.Info("item succeeded without delivery",
			logging.String("transcript_source", item.TranscriptSource))
		return outcomeSucceeded
	}

	if err := r.deps.Store.Transition(ctx, item, store.StatusSendingEmail); err != nil {
		logger.Error("transition failed", logging.Error(err))
		return outcomeError
	}

	stepCtx := services.WithStep(ctx, "email")
	err := r.deps.Email.Send(stepCtx, email.Summary{
		VideoID:     item.VideoID,
		Title:       item.Title,
		ChannelName: item.ChannelName,
		Body:        item.Summary,
	})
	if err != nil {
		// The summary is kept; a later retry only repeats delivery.
		return r.failStep(ctx, logger, item, store.StatusFailedEmail, err)
	}
	item.EmailSent = true

	if err := r.finish(ctx, item); err != nil {
		logger.Error("failed to finish item", logging.Error(err))
		return outcomeError
	}
	logger.Info("item succeeded",
		logging.String("transcript_source", item.TranscriptSource),
		logging.Int("retry_count", item.RetryCount))
	return outcomeSucceeded
}

func (r *Runner) finish(ctx context.Context, item *store.Item) error {
	item.ErrorMessage = ""
	item.StopRequested = false
	item.LastHeartbeat = nil
	return r.deps.Store.Transition(ctx, item, store.StatusSuccess)
}

// failStep records a step failure. The attempt counts against the retry
// budget; once the budget is spent the item is failed permanently instead
// of parking in a retryable failure state.
func (r *Runner) failStep(ctx context.Context, logger *slog.Logger, item *store.Item, failStatus store.Status, cause error) itemOutcome {
	if item.RetryCount < r.maxRetries {
		item.RetryCount++
	}
	item.LastHeartbeat = nil
	item.StopRequested = false

	target := failStatus
	item.ErrorMessage = cause.Error()
	if item.RetryCount >= r.maxRetries {
		target = store.StatusFailedPermanent
		item.ErrorMessage = store.MaxRetriesReason + ": " + cause.Error()
	}

	if err := r.deps.Store.Transition(ctx, item, target); err != nil {
		logger.Error("failed to record step failure", logging.Error(err))
		return outcomeError
	}
	logger.Warn("step failed",
		logging.String("status", string(target)),
		logging.Int("retry_count", item.RetryCount),
		logging.Error(cause))
	return outcomeFailed
}

// checkStop re-reads the item and honors a stop request at the step
// boundary. The in-memory item keeps its accumulated fields; only the flag
// is taken from the fresh row.
func (r *Runner) checkStop(ctx context.Context, logger *slog.Logger, item *store.Item) bool {
	fresh, err := r.deps.Store.GetByVideoID(ctx, item.VideoID)
	if err != nil || fresh == nil {
		if err != nil {
			logger.Warn("stop check failed", logging.Error(err))
		}
		return false
	}
	if !fresh.StopRequested {
		return false
	}

	item.StopRequested = false
	item.ErrorMessage = store.UserStopReason
	item.LastHeartbeat = nil
	if err := r.deps.Store.Transition(ctx, item, store.StatusFailedStopped); err != nil {
		logger.Error("failed to stop item", logging.Error(err))
		return false
	}
	logger.Info("item stopped at step boundary")
	return true
}

func (r *Runner) skipItem(ctx context.Context, logger *slog.Logger, item *store.Item, reason string) itemOutcome {
	item.ErrorMessage = reason
	item.LastHeartbeat = nil
	item.StopRequested = false
	if err := r.deps.Store.Transition(ctx, item, store.StatusFailedPermanent); err != nil {
		logger.Error("failed to skip item", logging.Error(err))
		return outcomeError
	}
	logger.Info("item skipped", logging.String("reason", reason))
	return outcomeSkipped
}

func (r *Runner) heartbeatLoop(ctx context.Context, videoID string) {
	if r.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.deps.Store.UpdateHeartbeat(ctx, videoID); err != nil && ctx.Err() == nil {
				r.logger.Warn("heartbeat update failed",
					logging.String(logging.FieldVideoID, videoID),
					logging.Error(err))
			}
		}
	}
}
