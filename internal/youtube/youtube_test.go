package youtube_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recap/internal/youtube"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Example Channel</title>
 <entry>
  <yt:videoId>abcdefghijk</yt:videoId>
  <yt:channelId>UC0123456789abcdefghijkl</yt:channelId>
  <title>Newest Video</title>
  <author><name>Example Channel</name></author>
  <published>2026-08-20T12:00:00+00:00</published>
 </entry>
 <entry>
  <yt:videoId>lmnopqrstuv</yt:videoId>
  <yt:channelId>UC0123456789abcdefghijkl</yt:channelId>
  <title>Older Video</title>
  <author><name>Example Channel</name></author>
  <published>2026-08-10T09:30:00+00:00</published>
 </entry>
</feed>`

func TestFeedClientParsesEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("channel_id") != "UC0123456789abcdefghijkl" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	client := youtube.NewFeedClient(server.URL, 5*time.Second, server.Client())
	videos, err := client.Fetch(context.Background(), "UC0123456789abcdefghijkl")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(videos))
	}
	first := videos[0]
	if first.VideoID != "abcdefghijk" || first.Title != "Newest Video" {
		t.Fatalf("unexpected first entry: %#v", first)
	}
	if first.ChannelName != "Example Channel" {
		t.Fatalf("expected author name, got %q", first.ChannelName)
	}
	if first.Published.IsZero() {
		t.Fatal("expected published timestamp parsed")
	}
}

func TestFeedClientReportsMissingChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	client := youtube.NewFeedClient(server.URL, 5*time.Second, server.Client())
	if _, err := client.Fetch(context.Background(), "UCmissing"); err == nil {
		t.Fatal("expected error for missing channel feed")
	}
}

func TestMetadataClientMapsFields(t *testing.T) {
	client := youtube.NewMetadataClient("yt-dlp", 5*time.Second)
	client.WithCommandOutput(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{
			"id": "abcdefghijk",
			"title": "Metadata Title",
			"channel_id": "UC0123456789abcdefghijkl",
			"channel": "Example Channel",
			"duration": 754.0,
			"timestamp": 1755691200,
			"webpage_url": "https://www.youtube.com/watch?v=abcdefghijk"
		}`), nil
	})

	meta, err := client.Fetch(context.Background(), "abcdefghijk")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if meta.Title != "Metadata Title" || meta.DurationSeconds != 754 {
		t.Fatalf("unexpected metadata: %#v", meta)
	}
	if meta.UploadedAt == nil || meta.UploadedAt.IsZero() {
		t.Fatal("expected uploaded timestamp")
	}
	if meta.IsShort {
		t.Fatal("watch URL must not be classified as a short")
	}
}

func TestMetadataClientDetectsShorts(t *testing.T) {
	client := youtube.NewMetadataClient("yt-dlp", 5*time.Second)
	client.WithCommandOutput(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"id":"abcdefghijk","duration":42,"webpage_url":"https://www.youtube.com/shorts/abcdefghijk"}`), nil
	})

	meta, err := client.Fetch(context.Background(), "abcdefghijk")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !meta.IsShort {
		t.Fatal("expected shorts URL to be classified as a short")
	}
}

func TestParseVideoID(t *testing.T) {
	cases := []struct {
		locator string
		want    string
		wantErr bool
	}{
		{locator: "dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{locator: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{locator: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{locator: "https://www.youtube.com/shorts/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{locator: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{locator: "https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=10s", want: "dQw4w9WgXcQ"},
		{locator: "not a locator", wantErr: true},
		{locator: "", wantErr: true},
		{locator: "https://example.com/watch?v=dQw4w9WgXcQ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := youtube.ParseVideoID(tc.locator)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseVideoID(%q): expected error", tc.locator)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVideoID(%q): %v", tc.locator, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseVideoID(%q) = %q, want %q", tc.locator, got, tc.want)
		}
	}
}

func TestParseChannelID(t *testing.T) {
	id := "UC0123456789abcdefghijkl"
	if len(id) != 24 {
		t.Fatalf("test channel id must be 24 chars, got %d", len(id))
	}

	got, err := youtube.ParseChannelID(id)
	if err != nil || got != id {
		t.Fatalf("ParseChannelID bare id: got %q, %v", got, err)
	}
	got, err = youtube.ParseChannelID("https://www.youtube.com/channel/" + id)
	if err != nil || got != id {
		t.Fatalf("ParseChannelID url: got %q, %v", got, err)
	}
	if _, err := youtube.ParseChannelID("@somehandle"); err == nil {
		t.Fatal("expected handle locator to be rejected")
	}
}
