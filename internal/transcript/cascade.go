package transcript

import (
	"log/slog"
	"net/http"
	"time"

	"recap/internal/config"
)

// NewCascade assembles the resolver from configuration, in fixed priority
// order: caption track listing, yt-dlp, direct timedtext, hosted API.
func NewCascade(cfg *config.Config, cache FailureCache, logger *slog.Logger) *Resolver {
	timeout := time.Duration(cfg.Transcript.RequestTimeout) * time.Second
	httpClient := &http.Client{Timeout: timeout}
	tc := cfg.Transcript

	strategies := []Strategy{
		NewCaptions(tc.TimedtextBaseURL, tc.Language, tc.CaptionsEnabled, timeout, httpClient),
		NewYtDlp(cfg.YouTube.YtDlpBinary, tc.Language, tc.YtDlpEnabled, timeout, httpClient),
		NewTimedtext(tc.TimedtextBaseURL, tc.Language, tc.TimedtextEnabled, timeout, httpClient),
		NewSupadata(tc.SupadataAPIKey, tc.SupadataBaseURL, tc.Language, tc.SupadataEnabled, timeout, httpClient),
	}
	cooldown := time.Duration(tc.CooldownHours) * time.Hour
	return NewResolver(strategies, cache, cooldown, logger)
}
