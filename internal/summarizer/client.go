package summarizer

import (
	"bytes"
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
	"recap/internal/textutil"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultHTTPTimeout = 120 * time.Second
)

// Request carries one summarization job. Prompt and MaxWords are optional
// runtime overrides; zero values fall back to the package defaults.
type Request struct {
	Title      string
	Transcript string
	Prompt     string
	MaxWords   int
}

// Summarizer produces a summary for a video transcript.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Client wraps an OpenAI-compatible chat completions API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ Summarizer = (*Client)(nil)

// Option customizes the summarizer client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// NewClient constructs a summarizer client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Summarize sends the transcript upstream and returns the summary text.
// Quota, auth, and availability failures are classified so the pipeline can
// decide between retry and permanent failure.
func (c *Client) Summarize(ctx context.Context, req Request) (string, error) {
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		return "", services.Wrap(services.ErrValidation, "summarizer", "summarize", "transcript required", nil)
	}
	if c.apiKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "summarizer", "summarize", "api key required", nil)
	}
	transcript = textutil.Truncate(transcript, maxTranscriptChars)

	userContent := transcript
	if title := strings.TrimSpace(req.Title); title != "" {
		userContent = "Video title: " + title + "\n\n" + transcript
	}
	payload := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: buildPrompt(req.Prompt, req.MaxWords)},
			{Role: "user", Content: userContent},
		},
		Temperature: 0.3,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("summarize: encode request: %w", err)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("summarize: build url: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("summarize: request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrUnavailable, "summarizer", "summarize", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("summarize: read body: %w", err)
	}
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("summarize: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("summarize: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("summarize: empty choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("summarize: empty content")
	}
	return content, nil
}

func classifyStatus(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrAuth, "summarizer", "summarize", detail, nil)
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrQuota, "summarizer", "summarize", detail, nil)
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrUnavailable, "summarizer", "summarize", fmt.Sprintf("http %d", status), nil)
	case status >= http.StatusMultipleChoices:
		return fmt.Errorf("summarize: http %d: %s", status, detail)
	}
	return nil
}
