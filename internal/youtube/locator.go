package youtube

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video id from any of the common
// locator shapes: a bare id, a watch URL, a youtu.be short link, a shorts
// URL, or an embed URL.
func ParseVideoID(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", errors.New("empty video locator")
	}
	if videoIDPattern.MatchString(locator) {
		return locator, nil
	}

	parsed, err := url.Parse(locator)
	if err != nil || parsed.Host == "" {
		return "", errors.New("unrecognized video locator: " + locator)
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	switch host {
	case "youtu.be":
		if id := strings.Trim(parsed.Path, "/"); videoIDPattern.MatchString(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := parsed.Query().Get("v"); videoIDPattern.MatchString(id) {
			return id, nil
		}
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live") {
			if videoIDPattern.MatchString(segments[1]) {
				return segments[1], nil
			}
		}
	}
	return "", errors.New("unrecognized video locator: " + locator)
}

// ParseChannelID extracts a channel id from a bare id or a channel URL.
// Handle-style locators (@name) cannot be resolved offline and are rejected.
func ParseChannelID(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", errors.New("empty channel locator")
	}
	if strings.HasPrefix(locator, "UC") && len(locator) == 24 {
		return locator, nil
	}

	parsed, err := url.Parse(locator)
	if err == nil && parsed.Host != "" {
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(segments) >= 2 && segments[0] == "channel" {
			if strings.HasPrefix(segments[1], "UC") && len(segments[1]) == 24 {
				return segments[1], nil
			}
		}
	}
	return "", errors.New("unrecognized channel locator: " + locator)
}
