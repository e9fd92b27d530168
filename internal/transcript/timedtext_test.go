package transcript_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recap/internal/transcript"
)

func TestTimedtextFetchParsesCues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "vid-1" {
			http.Error(w, "unknown video", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?><transcript><text start="0" dur="2">Hello &amp;amp; welcome</text><text start="2" dur="3">to the show</text></transcript>`)
	}))
	defer server.Close()

	strategy := transcript.NewTimedtext(server.URL, "en", true, 5*time.Second, server.Client())
	text, err := strategy.Fetch(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if text != "Hello & welcome to the show" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestTimedtextFetchTriesAutoTrack(t *testing.T) {
	var kinds []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		kinds = append(kinds, kind)
		if kind != "asr" {
			// Empty body: no uploaded track.
			return
		}
		fmt.Fprint(w, `<transcript><text start="0" dur="1">auto track</text></transcript>`)
	}))
	defer server.Close()

	strategy := transcript.NewTimedtext(server.URL, "en", true, 5*time.Second, server.Client())
	text, err := strategy.Fetch(context.Background(), "vid-2")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if text != "auto track" {
		t.Fatalf("unexpected transcript %q", text)
	}
	if len(kinds) != 2 || kinds[0] != "" || kinds[1] != "asr" {
		t.Fatalf("unexpected request order: %v", kinds)
	}
}

func TestTimedtextFetchFailsWhenNoTrackExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	strategy := transcript.NewTimedtext(server.URL, "en", true, 5*time.Second, server.Client())
	if _, err := strategy.Fetch(context.Background(), "vid-3"); err == nil {
		t.Fatal("expected error when both tracks are missing")
	}
}

func TestCaptionsFetchPicksLanguageMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "list" {
			fmt.Fprint(w, `<transcript_list><track lang_code="de" name=""/><track lang_code="en" name="English"/></transcript_list>`)
			return
		}
		if r.URL.Query().Get("lang") != "en" || r.URL.Query().Get("name") != "English" {
			http.Error(w, "wrong track", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `<transcript><text start="0" dur="1">named track body</text></transcript>`)
	}))
	defer server.Close()

	strategy := transcript.NewCaptions(server.URL, "en", true, 5*time.Second, server.Client())
	text, err := strategy.Fetch(context.Background(), "vid-4")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if text != "named track body" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestCaptionsFetchFailsOnEmptyTrackList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	strategy := transcript.NewCaptions(server.URL, "en", true, 5*time.Second, server.Client())
	if _, err := strategy.Fetch(context.Background(), "vid-5"); err == nil {
		t.Fatal("expected error when no tracks are listed")
	}
}
