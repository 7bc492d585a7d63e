package validation

import (
	"net/url"
	"regexp"
	"strings"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) *ValidationError {
	return &ValidationError{Message: message}
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var youTubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
	"youtu.be":                 true,
	"www.youtu.be":             true,
}

// path prefixes that carry the video ID as the next segment
var idPathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// ValidateYouTubeURL checks that rawURL is a well-formed YouTube video URL and
// returns the video ID it points at.
func ValidateYouTubeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", invalid("error: URL is required")
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return "", invalid("error: invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", invalid("error: URL must start with http or https")
	}

	host := strings.ToLower(parsedURL.Hostname())
	if host == "" {
		return "", invalid("error: URL must have a host")
	}
	if !youTubeHosts[host] {
		return "", invalid("error: only YouTube URLs are supported")
	}

	id := extractVideoID(host, parsedURL)
	if !videoIDPattern.MatchString(id) {
		return "", invalid("error: YouTube URL must contain a valid video ID")
	}

	return id, nil
}

func extractVideoID(host string, u *url.URL) string {
	if host == "youtu.be" || host == "www.youtu.be" {
		return firstSegment(u.Path, "/")
	}

	if u.Path == "/watch" || u.Path == "/watch/" {
		return u.Query().Get("v")
	}

	for _, prefix := range idPathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return firstSegment(u.Path, prefix)
		}
	}
	return ""
}

func firstSegment(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
