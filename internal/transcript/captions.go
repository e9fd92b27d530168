package transcript

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CaptionsStrategy enumerates the caption tracks published for a video and
// fetches the best language match. Unlike TimedtextStrategy it discovers
// named tracks, which direct fetches miss.
type CaptionsStrategy struct {
	baseURL    string
	language   string
	enabled    bool
	httpClient *http.Client
}

// NewCaptions builds the track-listing strategy.
func NewCaptions(baseURL, language string, enabled bool, timeout time.Duration, httpClient *http.Client) *CaptionsStrategy {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &CaptionsStrategy{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		enabled:    enabled,
		httpClient: httpClient,
	}
}

func (s *CaptionsStrategy) Name() string  { return "captions" }
func (s *CaptionsStrategy) Enabled() bool { return s.enabled }

// Fetch lists available tracks and downloads the first one matching the
// configured language, falling back to the track marked as default.
func (s *CaptionsStrategy) Fetch(ctx context.Context, videoID string) (string, error) {
	tracks, err := s.listTracks(ctx, videoID)
	if err != nil {
		return "", err
	}
	if len(tracks) == 0 {
		return "", errors.New("no caption tracks listed")
	}

	track := pickTrack(tracks, s.language)
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", track.LangCode)
	if track.Name != "" {
		params.Set("name", track.Name)
	}
	if track.Kind != "" {
		params.Set("kind", track.Kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build captions request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("captions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("captions returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read captions body: %w", err)
	}
	return parseTimedtextXML(body)
}

type captionTrack struct {
	LangCode string `xml:"lang_code,attr"`
	Name     string `xml:"name,attr"`
	Kind     string `xml:"kind,attr"`
	Default  string `xml:"lang_default,attr"`
}

type trackList struct {
	XMLName xml.Name       `xml:"transcript_list"`
	Tracks  []captionTrack `xml:"track"`
}

func (s *CaptionsStrategy) listTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	params := url.Values{}
	params.Set("type", "list")
	params.Set("v", videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build track list request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("track list request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("track list returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read track list body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var list trackList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parse track list: %w", err)
	}
	return list.Tracks, nil
}

func pickTrack(tracks []captionTrack, language string) captionTrack {
	for _, track := range tracks {
		if strings.EqualFold(track.LangCode, language) {
			return track
		}
	}
	for _, track := range tracks {
		if strings.HasPrefix(strings.ToLower(track.LangCode), strings.ToLower(language)+"-") {
			return track
		}
	}
	for _, track := range tracks {
		if track.Default == "true" {
			return track
		}
	}
	return tracks[0]
}
