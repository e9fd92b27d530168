// Package client talks to a running recapd over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recap/internal/api"
	"recap/internal/pipeline"
)

// ErrDaemonUnavailable marks connection-level failures so callers can suggest
// starting the daemon instead of printing a raw dial error.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// APIError carries the HTTP status and the error message the daemon returned.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("daemon returned status %d", e.StatusCode)
}

// Client issues requests against a recapd API bind address.
type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client for the given bind address. A bare host:port is
// promoted to an http URL.
func New(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address is empty")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// StopResult reports whether a stop took effect immediately.
type StopResult struct {
	Stopped bool         `json:"stopped"`
	Item    api.ItemView `json:"item"`
}

// Health verifies the daemon answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/healthz", nil, nil, nil)
}

// Status fetches the daemon status view.
func (c *Client) Status(ctx context.Context) (api.StatusView, error) {
	var status api.StatusView
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &status)
	return status, err
}

// Process triggers a pipeline run. With wait set it blocks until the run
// finishes and returns its statistics; otherwise stats is nil.
func (c *Client) Process(ctx context.Context, wait bool) (*pipeline.RunStats, error) {
	if !wait {
		return nil, c.do(ctx, http.MethodPost, "/api/process", nil, nil, nil)
	}
	// Runs can outlast the default client timeout.
	values := url.Values{"wait": {"1"}}
	var stats pipeline.RunStats
	if err := c.doWith(ctx, &http.Client{}, http.MethodPost, "/api/process", values, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AddItem queues a video from a URL or bare id.
func (c *Client) AddItem(ctx context.Context, locator string) (api.ItemView, error) {
	var item api.ItemView
	err := c.do(ctx, http.MethodPost, "/api/items", nil,
		map[string]string{"locator": locator}, &item)
	return item, err
}

// ItemFilter narrows ListItems.
type ItemFilter struct {
	Status  string
	Channel string
	Source  string
	Limit   int
	Offset  int
}

// ListItems fetches items matching the filter.
func (c *Client) ListItems(ctx context.Context, filter ItemFilter) ([]api.ItemView, error) {
	values := url.Values{}
	if filter.Status != "" {
		values.Set("status", filter.Status)
	}
	if filter.Channel != "" {
		values.Set("channel", filter.Channel)
	}
	if filter.Source != "" {
		values.Set("source", filter.Source)
	}
	if filter.Limit > 0 {
		values.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		values.Set("offset", strconv.Itoa(filter.Offset))
	}
	var items []api.ItemView
	err := c.do(ctx, http.MethodGet, "/api/items", values, nil, &items)
	return items, err
}

// GetItem fetches one item with its transcript and summary.
func (c *Client) GetItem(ctx context.Context, videoID string) (api.ItemDetail, error) {
	var detail api.ItemDetail
	err := c.do(ctx, http.MethodGet, "/api/items/"+url.PathEscape(videoID), nil, nil, &detail)
	return detail, err
}

// RemoveItem deletes an item.
func (c *Client) RemoveItem(ctx context.Context, videoID string) error {
	return c.do(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(videoID), nil, nil, nil)
}

// RetryItem re-queues a failed item; force also rescues permanent failures.
func (c *Client) RetryItem(ctx context.Context, videoID string, force bool) (api.ItemView, error) {
	values := url.Values{}
	if force {
		values.Set("force", "1")
	}
	var item api.ItemView
	err := c.do(ctx, http.MethodPost, "/api/items/"+url.PathEscape(videoID)+"/retry", values, nil, &item)
	return item, err
}

// StopItem requests a stop for an item.
func (c *Client) StopItem(ctx context.Context, videoID string) (StopResult, error) {
	var result StopResult
	err := c.do(ctx, http.MethodPost, "/api/items/"+url.PathEscape(videoID)+"/stop", nil, nil, &result)
	return result, err
}

// AddChannel registers a channel for discovery.
func (c *Client) AddChannel(ctx context.Context, locator, name string) (api.ChannelView, error) {
	var channel api.ChannelView
	err := c.do(ctx, http.MethodPost, "/api/channels", nil,
		map[string]string{"locator": locator, "name": name}, &channel)
	return channel, err
}

// ListChannels fetches every registered channel.
func (c *Client) ListChannels(ctx context.Context) ([]api.ChannelView, error) {
	var channels []api.ChannelView
	err := c.do(ctx, http.MethodGet, "/api/channels", nil, nil, &channels)
	return channels, err
}

// RemoveChannel unregisters a channel.
func (c *Client) RemoveChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodDelete, "/api/channels/"+url.PathEscape(channelID), nil, nil, nil)
}

// SetChannelEnabled toggles discovery for a channel.
func (c *Client) SetChannelEnabled(ctx context.Context, channelID string, enabled bool) error {
	action := "enable"
	if !enabled {
		action = "disable"
	}
	return c.do(ctx, http.MethodPost,
		"/api/channels/"+url.PathEscape(channelID)+"/"+action, nil, nil, nil)
}

// Settings fetches the runtime settings table.
func (c *Client) Settings(ctx context.Context) (api.SettingsView, error) {
	var settings api.SettingsView
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, nil, &settings)
	return settings, err
}

// SetSetting writes one runtime setting.
func (c *Client) SetSetting(ctx context.Context, key, value string) error {
	return c.do(ctx, http.MethodPut, "/api/settings/"+url.PathEscape(key), nil,
		map[string]string{"value": value}, nil)
}

// DeleteSetting restores a setting to its default.
func (c *Client) DeleteSetting(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/settings/"+url.PathEscape(key), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	return c.doWith(ctx, c.http, method, path, query, payload, out)
}

func (c *Client) doWith(ctx context.Context, httpClient *http.Client, method, path string, query url.Values, payload, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr != nil {
			apiErr.Error = ""
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func isConnectionError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsUnavailable reports whether the daemon could not be reached at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDaemonUnavailable)
}

// IsNotFound reports whether the daemon answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether the daemon answered 409.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}
