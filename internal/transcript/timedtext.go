package transcript

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TimedtextStrategy fetches a transcript directly from the public timedtext
// endpoint, trying the uploaded track first and the auto-generated one as a
// fallback.
type TimedtextStrategy struct {
	baseURL    string
	language   string
	enabled    bool
	httpClient *http.Client
}

// NewTimedtext builds the direct timedtext strategy.
func NewTimedtext(baseURL, language string, enabled bool, timeout time.Duration, httpClient *http.Client) *TimedtextStrategy {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &TimedtextStrategy{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		enabled:    enabled,
		httpClient: httpClient,
	}
}

func (s *TimedtextStrategy) Name() string  { return "timedtext" }
func (s *TimedtextStrategy) Enabled() bool { return s.enabled }

// Fetch retrieves the timedtext XML for the configured language. kind=asr
// selects the auto-generated track when no uploaded one exists.
func (s *TimedtextStrategy) Fetch(ctx context.Context, videoID string) (string, error) {
	for _, kind := range []string{"", "asr"} {
		params := url.Values{}
		params.Set("v", videoID)
		params.Set("lang", s.language)
		if kind != "" {
			params.Set("kind", kind)
		}
		text, err := s.fetchTrack(ctx, params)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	return "", errors.New("no timedtext track for language " + s.language)
}

func (s *TimedtextStrategy) fetchTrack(ctx context.Context, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build timedtext request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("timedtext request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("timedtext returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read timedtext body: %w", err)
	}
	// An empty body means the track does not exist; the caller tries the
	// next kind.
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}
	return parseTimedtextXML(body)
}

type timedtextDocument struct {
	XMLName xml.Name       `xml:"transcript"`
	Texts   []timedtextCue `xml:"text"`
}

type timedtextCue struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Body  string `xml:",chardata"`
}

// parseTimedtextXML joins the cue bodies of a timedtext document into one
// plain-text transcript. Cue text is double-escaped by the endpoint.
func parseTimedtextXML(data []byte) (string, error) {
	var doc timedtextDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse timedtext xml: %w", err)
	}
	parts := make([]string, 0, len(doc.Texts))
	for _, cue := range doc.Texts {
		unescaped := html.UnescapeString(cue.Body)
		if trimmed := strings.TrimSpace(unescaped); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " "), nil
}
