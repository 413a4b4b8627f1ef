package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrUnsupportedURL = errors.New("unsupported URL format")

	youtubeRegex = regexp.MustCompile(`^(?:https?://)?(?:www\.|music\.|m\.)?(youtube\.com|youtu\.be)/\S+`)
	videoIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func IsYouTubeURL(s string) bool {
	return youtubeRegex.MatchString(s)
}

// IsYouTubeVideoURL reports whether s points at a single video rather than a
// channel, a playlist page or a search.
func IsYouTubeVideoURL(s string) bool {
	if !IsYouTubeURL(s) {
		return false
	}
	_, err := ExtractVideoID(s)
	return err == nil
}

// CleanVideoURL strips tracking, playlist and timestamp parameters from a video URL.
func CleanVideoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	host := u.Hostname()
	switch host {
	case "youtu.be":
		vid := strings.Trim(u.Path, "/")
		if vid == "" {
			return raw
		}
		return fmt.Sprintf("https://youtu.be/%s", vid)

	case "www.youtube.com", "youtube.com", "music.youtube.com", "m.youtube.com":
		if u.Path == "/watch" {
			if vid := u.Query().Get("v"); vid != "" {
				return fmt.Sprintf("https://%s/watch?v=%s", host, vid)
			}
		}
		return raw

	default:
		return raw
	}
}

// ExtractVideoID returns the 11 character video ID of a watch, short or shorts link.
func ExtractVideoID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	var id string
	switch strings.TrimPrefix(u.Hostname(), "www.") {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com", "m.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
		}
	}

	if !videoIDRegex.MatchString(id) {
		return "", ErrUnsupportedURL
	}
	return id, nil
}
