package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// YtDlpStrategy shells out to yt-dlp for the subtitle manifest and downloads
// the track body itself. It reaches videos the public endpoints refuse to
// serve, at the cost of spawning a process.
type YtDlpStrategy struct {
	binary        string
	language      string
	enabled       bool
	httpClient    *http.Client
	commandOutput func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewYtDlp builds the yt-dlp strategy around the configured binary.
func NewYtDlp(binary, language string, enabled bool, timeout time.Duration, httpClient *http.Client) *YtDlpStrategy {
	if binary == "" {
		binary = "yt-dlp"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &YtDlpStrategy{
		binary:     binary,
		language:   language,
		enabled:    enabled,
		httpClient: httpClient,
	}
}

func (s *YtDlpStrategy) Name() string  { return "ytdlp" }
func (s *YtDlpStrategy) Enabled() bool { return s.enabled }

// WithCommandOutput sets a custom command runner (for testing).
func (s *YtDlpStrategy) WithCommandOutput(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandOutput = runner
}

type subtitleFormat struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

type ytDlpDump struct {
	Subtitles         map[string][]subtitleFormat `json:"subtitles"`
	AutomaticCaptions map[string][]subtitleFormat `json:"automatic_captions"`
}

// Fetch asks yt-dlp for the video manifest, picks a json3 subtitle URL for
// the configured language (uploaded tracks first, auto-generated second),
// downloads it, and flattens the events into plain text.
func (s *YtDlpStrategy) Fetch(ctx context.Context, videoID string) (string, error) {
	output, err := s.dump(ctx, videoID)
	if err != nil {
		return "", err
	}

	var dump ytDlpDump
	if err := json.Unmarshal(output, &dump); err != nil {
		return "", fmt.Errorf("parse yt-dlp output: %w", err)
	}

	trackURL := pickSubtitleURL(dump.Subtitles, s.language)
	if trackURL == "" {
		trackURL = pickSubtitleURL(dump.AutomaticCaptions, s.language)
	}
	if trackURL == "" {
		return "", errors.New("yt-dlp listed no json3 subtitles for language " + s.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return "", fmt.Errorf("build subtitle request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("subtitle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("subtitle download returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read subtitle body: %w", err)
	}
	return parseJSON3(body)
}

func (s *YtDlpStrategy) dump(ctx context.Context, videoID string) ([]byte, error) {
	args := []string{"--skip-download", "-J", "https://www.youtube.com/watch?v=" + videoID}
	if s.commandOutput != nil {
		return s.commandOutput(ctx, s.binary, args...)
	}

	cmd := exec.CommandContext(ctx, s.binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("yt-dlp: %s", detail)
	}
	return stdout.Bytes(), nil
}

func pickSubtitleURL(tracks map[string][]subtitleFormat, language string) string {
	candidates := tracks[language]
	if len(candidates) == 0 {
		prefix := strings.ToLower(language) + "-"
		for code, formats := range tracks {
			if strings.HasPrefix(strings.ToLower(code), prefix) {
				candidates = formats
				break
			}
		}
	}
	for _, format := range candidates {
		if format.Ext == "json3" && format.URL != "" {
			return format.URL
		}
	}
	return ""
}

type json3Document struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func parseJSON3(data []byte) (string, error) {
	var doc json3Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse json3 subtitles: %w", err)
	}
	var b strings.Builder
	for _, event := range doc.Events {
		for _, seg := range event.Segs {
			b.WriteString(seg.UTF8)
		}
	}
	return b.String(), nil
}
