package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recap/internal/services"
)

// SupadataStrategy is the paid last resort of the cascade: a hosted
// transcript API that handles videos every free source fails on.
type SupadataStrategy struct {
	apiKey     string
	baseURL    string
	language   string
	enabled    bool
	httpClient *http.Client
}

// NewSupadata builds the hosted API strategy.
func NewSupadata(apiKey, baseURL, language string, enabled bool, timeout time.Duration, httpClient *http.Client) *SupadataStrategy {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &SupadataStrategy{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		enabled:    enabled,
		httpClient: httpClient,
	}
}

func (s *SupadataStrategy) Name() string  { return "supadata" }
func (s *SupadataStrategy) Enabled() bool { return s.enabled && s.apiKey != "" }

type supadataResponse struct {
	Content string `json:"content"`
	Lang    string `json:"lang"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Fetch requests a plain-text transcript from the hosted API.
func (s *SupadataStrategy) Fetch(ctx context.Context, videoID string) (string, error) {
	params := url.Values{}
	params.Set("videoId", videoID)
	params.Set("lang", s.language)
	params.Set("text", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/youtube/transcript?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build supadata request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("supadata request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read supadata body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", services.Wrap(services.ErrAuth, "transcript", "supadata", "api key rejected", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", services.Wrap(services.ErrQuota, "transcript", "supadata", "quota exhausted", nil)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("supadata returned status %d", resp.StatusCode)
	}

	var payload supadataResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parse supadata response: %w", err)
	}
	if payload.Error != "" {
		return "", errors.New("supadata: " + payload.Error)
	}
	if payload.Message != "" && payload.Content == "" {
		return "", errors.New("supadata: " + payload.Message)
	}
	return payload.Content, nil
}
