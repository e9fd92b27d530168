package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Metadata holds the yt-dlp fields the pipeline cares about.
type Metadata struct {
	VideoID         string
	Title           string
	ChannelID       string
	ChannelName     string
	DurationSeconds int64
	UploadedAt      *time.Time
	IsShort         bool
}

// MetadataClient resolves full video metadata through yt-dlp.
type MetadataClient struct {
	binary        string
	timeout       time.Duration
	commandOutput func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewMetadataClient builds a metadata client around the configured binary.
func NewMetadataClient(binary string, timeout time.Duration) *MetadataClient {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &MetadataClient{binary: binary, timeout: timeout}
}

// WithCommandOutput sets a custom command runner (for testing).
func (c *MetadataClient) WithCommandOutput(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	c.commandOutput = runner
}

type ytDlpMetadata struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	ChannelID    string  `json:"channel_id"`
	Channel      string  `json:"channel"`
	Uploader     string  `json:"uploader"`
	Duration     float64 `json:"duration"`
	UploadDate   string  `json:"upload_date"`
	Timestamp    int64   `json:"timestamp"`
	WebpageURL   string  `json:"webpage_url"`
	LiveStatus   string  `json:"live_status"`
	Availability string  `json:"availability"`
}

// Fetch runs yt-dlp against the video and maps its JSON dump.
func (c *MetadataClient) Fetch(ctx context.Context, videoID string) (*Metadata, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"--skip-download", "-J", "https://www.youtube.com/watch?v=" + videoID}
	output, err := c.run(ctx, args)
	if err != nil {
		return nil, err
	}

	var raw ytDlpMetadata
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}

	meta := &Metadata{
		VideoID:         raw.ID,
		Title:           raw.Title,
		ChannelID:       raw.ChannelID,
		ChannelName:     raw.Channel,
		DurationSeconds: int64(raw.Duration),
		IsShort:         strings.Contains(raw.WebpageURL, "/shorts/"),
	}
	if meta.VideoID == "" {
		meta.VideoID = videoID
	}
	if meta.ChannelName == "" {
		meta.ChannelName = raw.Uploader
	}
	if raw.Timestamp > 0 {
		uploaded := time.Unix(raw.Timestamp, 0).UTC()
		meta.UploadedAt = &uploaded
	} else if raw.UploadDate != "" {
		if uploaded, err := time.Parse("20060102", raw.UploadDate); err == nil {
			meta.UploadedAt = &uploaded
		}
	}
	return meta, nil
}

func (c *MetadataClient) run(ctx context.Context, args []string) ([]byte, error) {
	if c.commandOutput != nil {
		return c.commandOutput(ctx, c.binary, args...)
	}

	cmd := exec.CommandContext(ctx, c.binary, args...) //nolint:gosec
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
