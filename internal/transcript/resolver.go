package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/store"
	"recap/internal/textutil"
)

// ErrNoTranscript indicates every strategy in the cascade failed or was
// skipped for a video.
var ErrNoTranscript = errors.New("no transcript available")

// Strategy is one source of transcripts. Fetch returns the raw transcript
// text; a blank result is treated as a failure by the resolver.
type Strategy interface {
	Name() string
	Enabled() bool
	Fetch(ctx context.Context, videoID string) (string, error)
}

// FailureCache remembers failed extraction attempts across runs.
type FailureCache interface {
	CacheTranscriptFailure(ctx context.Context, videoID, strategy, reason string) error
	FreshTranscriptFailures(ctx context.Context, videoID string, cutoff time.Time) (map[string]store.TranscriptFailure, error)
}

// Result is a successful extraction.
type Result struct {
	Text   string
	Source string
}

// Resolver walks the strategy cascade in priority order.
type Resolver struct {
	strategies []Strategy
	cache      FailureCache
	cooldown   time.Duration
	logger     *slog.Logger
}

// NewResolver builds a resolver over the given strategies. Order matters:
// earlier strategies are tried first.
func NewResolver(strategies []Strategy, cache FailureCache, cooldown time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		strategies: strategies,
		cache:      cache,
		cooldown:   cooldown,
		logger:     logger.With(logging.String(logging.FieldComponent, "transcript")),
	}
}

// Resolve tries each enabled strategy until one yields a non-blank
// transcript. Strategies with a cached failure inside the cooldown window
// are skipped without contacting the source. When the cascade is exhausted
// the returned error wraps ErrNoTranscript.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (*Result, error) {
	if videoID == "" {
		return nil, services.Wrap(services.ErrValidation, "transcript", "resolve", "video id is required", nil)
	}

	var skipped map[string]store.TranscriptFailure
	if r.cache != nil {
		fresh, err := r.cache.FreshTranscriptFailures(ctx, videoID, time.Now().Add(-r.cooldown))
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "transcript", "resolve", "load failure cache", err)
		}
		skipped = fresh
	}

	attempted := 0
	for _, strategy := range r.strategies {
		if !strategy.Enabled() {
			continue
		}
		if failure, ok := skipped[strategy.Name()]; ok {
			r.logger.Debug("skipping strategy in cooldown",
				logging.String(logging.FieldVideoID, videoID),
				logging.String(logging.FieldStrategy, strategy.Name()),
				logging.Time("last_failure", failure.CheckedAt))
			continue
		}
		attempted++

		text, err := strategy.Fetch(ctx, videoID)
		if err == nil && textutil.IsBlank(text) {
			err = errors.New("strategy returned empty transcript")
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("strategy failed",
				logging.String(logging.FieldVideoID, videoID),
				logging.String(logging.FieldStrategy, strategy.Name()),
				logging.Error(err))
			if r.cache != nil {
				if cacheErr := r.cache.CacheTranscriptFailure(ctx, videoID, strategy.Name(), err.Error()); cacheErr != nil {
					r.logger.Warn("failed to cache strategy failure",
						logging.String(logging.FieldVideoID, videoID),
						logging.String(logging.FieldStrategy, strategy.Name()),
						logging.Error(cacheErr))
				}
			}
			continue
		}

		cleaned := textutil.Clean(text)
		r.logger.Info("transcript resolved",
			logging.String(logging.FieldVideoID, videoID),
			logging.String(logging.FieldStrategy, strategy.Name()),
			logging.Int("length", len(cleaned)))
		return &Result{Text: cleaned, Source: strategy.Name()}, nil
	}

	detail := fmt.Sprintf("%d strategies attempted, %d skipped by cooldown", attempted, len(skipped))
	return nil, services.Wrap(ErrNoTranscript, "transcript", "resolve", detail, nil)
}
