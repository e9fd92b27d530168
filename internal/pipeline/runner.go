package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recap/internal/config"
	"recap/internal/email"
	"recap/internal/logging"
	"recap/internal/runlock"
	"recap/internal/services"
	"recap/internal/store"
	"recap/internal/summarizer"
	"recap/internal/transcript"
	"recap/internal/youtube"
)

// FeedLister enumerates recent uploads for a channel.
type FeedLister interface {
	Fetch(ctx context.Context, channelID string) ([]youtube.FeedVideo, error)
}

// MetadataFetcher resolves full metadata for a single video.
type MetadataFetcher interface {
	Fetch(ctx context.Context, videoID string) (*youtube.Metadata, error)
}

// TranscriptResolver runs the extraction cascade for a video.
type TranscriptResolver interface {
	Resolve(ctx context.Context, videoID string) (*transcript.Result, error)
}

// Deps collects the services a Runner needs. Email may be nil; the pipeline
// then finishes items after the summary step.
type Deps struct {
	Store       *store.Store
	Lock        *runlock.Lock
	Feeds       FeedLister
	Metadata    MetadataFetcher
	Transcripts TranscriptResolver
	Summarizer  summarizer.Summarizer
	Email       email.Sender
	Logger      *slog.Logger
}

// Runner executes processing runs one at a time.
type Runner struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger

	maxRetries        int
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// RunStats summarizes one completed run.
type RunStats struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Reclaimed  int       `json:"reclaimed"`
	Discovered int       `json:"discovered"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Stopped    int       `json:"stopped"`
	Skipped    int       `json:"skipped"`
}

type itemOutcome int

const (
	outcomeSucceeded itemOutcome = iota
	outcomeFailed
	outcomeStopped
	outcomeSkipped
	outcomeError
)

// New builds a Runner. Store, Lock, Transcripts, and Summarizer are
// required; Feeds and Metadata may be nil to disable discovery and
// enrichment respectively.
func New(cfg *config.Config, deps Deps) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires config")
	}
	if deps.Store == nil || deps.Lock == nil {
		return nil, errors.New("pipeline requires store and run lock")
	}
	if deps.Transcripts == nil || deps.Summarizer == nil {
		return nil, errors.New("pipeline requires transcript resolver and summarizer")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:               cfg,
		deps:              deps,
		logger:            logger.With(logging.String(logging.FieldComponent, "pipeline")),
		maxRetries:        cfg.Pipeline.MaxRetries,
		heartbeatInterval: time.Duration(cfg.Pipeline.HeartbeatInterval) * time.Second,
		heartbeatTimeout:  time.Duration(cfg.Pipeline.HeartbeatTimeout) * time.Second,
	}, nil
}

// RunOnce executes a full run: acquire the lock, reclaim stale items,
// discover new uploads, then process every due item in arrival order.
// A second caller gets runlock.ErrHeld instead of a queued run.
func (r *Runner) RunOnce(ctx context.Context) (*RunStats, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := r.logger.With(logging.String(logging.FieldRunID, runID))

	if err := r.deps.Lock.Acquire(ctx, runID, r.heartbeatTimeout); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.deps.Lock.Release(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	lockCtx, stopKeepAlive := context.WithCancel(ctx)
	defer stopKeepAlive()
	go r.deps.Lock.KeepAlive(lockCtx, r.heartbeatInterval)

	stats := &RunStats{RunID: runID, StartedAt: time.Now().UTC()}
	logger.Info("run started")

	reclaimed, err := r.deps.Store.ReclaimStale(ctx, time.Now().Add(-r.heartbeatTimeout), r.maxRetries)
	if err != nil {
		return stats, err
	}
	stats.Reclaimed = len(reclaimed)
	for _, item := range reclaimed {
		logger.Warn("reclaimed stale item",
			logging.String(logging.FieldVideoID, item.VideoID),
			logging.String("status", string(item.Status)),
			logging.Int("retry_count", item.RetryCount))
	}

	settings, err := loadRunSettings(ctx, r.deps.Store)
	if err != nil {
		return stats, err
	}

	if r.deps.Feeds != nil {
		discovered, err := r.discover(ctx, logger, settings)
		if err != nil {
			// Discovery failure must not block processing of items
			// already queued.
			logger.Warn("discovery failed", logging.Error(err))
		}
		stats.Discovered = discovered
	}

	due, err := r.deps.Store.Due(ctx)
	if err != nil {
		return stats, err
	}
	logger.Info("processing due items", logging.Int("count", len(due)))

	for _, item := range due {
		if ctx.Err() != nil {
			break
		}
		stats.Processed++
		switch r.processItem(ctx, logger, item, settings) {
		case outcomeSucceeded:
			stats.Succeeded++
		case outcomeFailed, outcomeError:
			stats.Failed++
		case outcomeStopped:
			stats.Stopped++
		case outcomeSkipped:
			stats.Skipped++
		}
	}

	stats.FinishedAt = time.Now().UTC()
	logger.Info("run finished",
		logging.Int("reclaimed", stats.Reclaimed),
		logging.Int("discovered", stats.Discovered),
		logging.Int("processed", stats.Processed),
		logging.Int("succeeded", stats.Succeeded),
		logging.Int("failed", stats.Failed),
		logging.Int("stopped", stats.Stopped),
		logging.Int("skipped", stats.Skipped),
		logging.Duration("elapsed", stats.FinishedAt.Sub(stats.StartedAt)))
	return stats, nil
}

// discover pulls channel feeds and queues unseen videos. A video published
// before its channel was registered is never queued; the watermark keeps
// backfills from flooding the queue.
func (r *Runner) discover(ctx context.Context, logger *slog.Logger, settings runSettings) (int, error) {
	channels, err := r.deps.Store.EnabledChannels(ctx)
	if err != nil {
		return 0, err
	}

	var oldestAllowed time.Time
	if settings.MaxVideoAgeDays > 0 {
		oldestAllowed = time.Now().AddDate(0, 0, -settings.MaxVideoAgeDays)
	}

	discovered := 0
	for _, channel := range channels {
		if ctx.Err() != nil {
			return discovered, ctx.Err()
		}
		videos, err := r.deps.Feeds.Fetch(ctx, channel.ChannelID)
		if err != nil {
			logger.Warn("feed fetch failed",
				logging.String(logging.FieldChannelID, channel.ChannelID),
				logging.Error(err))
			continue
		}

		queued := 0
		for _, video := range videos {
			if r.cfg.YouTube.MaxVideosPerChannel > 0 && queued >= r.cfg.YouTube.MaxVideosPerChannel {
				break
			}
			if !video.Published.IsZero() && video.Published.Before(channel.AddedAt) {
				continue
			}
			if !oldestAllowed.IsZero() && !video.Published.IsZero() && video.Published.Before(oldestAllowed) {
				continue
			}
			published := video.Published
			nv := store.NewVideo{
				VideoID:     video.VideoID,
				Title:       video.Title,
				ChannelID:   video.ChannelID,
				ChannelName: video.ChannelName,
				SourceKind:  store.SourceDiscovery,
			}
			if !published.IsZero() {
				nv.UploadedAt = &published
			}
			_, created, err := r.deps.Store.AddVideo(ctx, nv)
			if err != nil {
				logger.Warn("failed to queue discovered video",
					logging.String(logging.FieldVideoID, video.VideoID),
					logging.Error(err))
				continue
			}
			if created {
				discovered++
				queued++
				logger.Info("queued discovered video",
					logging.String(logging.FieldVideoID, video.VideoID),
					logging.String(logging.FieldChannelID, channel.ChannelID),
					logging.String("title", video.Title))
			}
		}
	}
	return discovered, nil
}
