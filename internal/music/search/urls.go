package search

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

const (
	watchURLPrefix   = "https://www.youtube.com/watch?v="
	channelURLPrefix = "https://www.youtube.com/channel/"
)

// VideoID extracts the 11-character video ID from the common YouTube URL
// shapes, or returns "" when raw is not one.
func VideoID(raw string) string {
	if videoIDPattern.MatchString(raw) {
		return raw
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	var id string
	switch strings.TrimPrefix(u.Hostname(), "www.") {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com", "m.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/v/"), strings.HasPrefix(u.Path, "/shorts/"):
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) == 2 {
				id = parts[1]
			}
		}
	}

	if !videoIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// WatchURL is the canonical link for a video ID.
func WatchURL(id string) string {
	return watchURLPrefix + id
}
