package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FeedVideo is one entry from a channel's Atom feed.
type FeedVideo struct {
	VideoID     string
	Title       string
	ChannelID   string
	ChannelName string
	Published   time.Time
}

// FeedClient fetches channel upload feeds.
type FeedClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFeedClient builds a feed client over the public Atom endpoint.
func NewFeedClient(baseURL string, timeout time.Duration, httpClient *http.Client) *FeedClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &FeedClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	VideoID   string     `xml:"videoId"`
	ChannelID string     `xml:"channelId"`
	Title     string     `xml:"title"`
	Published string     `xml:"published"`
	Author    atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// Fetch returns the feed entries for a channel, newest first as published
// by the endpoint.
func (c *FeedClient) Fetch(ctx context.Context, channelID string) ([]FeedVideo, error) {
	params := url.Values{}
	params.Set("channel_id", channelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("channel %s has no feed", channelID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	videos := make([]FeedVideo, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if entry.VideoID == "" {
			continue
		}
		video := FeedVideo{
			VideoID:     entry.VideoID,
			Title:       entry.Title,
			ChannelID:   entry.ChannelID,
			ChannelName: entry.Author.Name,
		}
		if video.ChannelID == "" {
			video.ChannelID = channelID
		}
		if published, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			video.Published = published
		}
		videos = append(videos, video)
	}
	return videos, nil
}
