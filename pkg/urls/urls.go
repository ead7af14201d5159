// Package urls provides utility functions for working with URLs.
package urls

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"streamsnip/internal/errs"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// reVideoID matches a bare YouTube video id.
var reVideoID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// path prefixes that carry the id as the next segment.
var idPrefixes = []string{"/live/", "/shorts/", "/embed/", "/v/"}

// IsURLValid checks if the given URL is valid.
func IsURLValid(raw string) bool {
	u, err := url.Parse(raw)

	return err == nil && u.Scheme != "" && u.Host != "" && (u.Scheme == schemeHTTP || u.Scheme == schemeHTTPS)
}

// FixURL prepends https scheme to URL.
// Example: youtube.com/watch?v=x => https://youtube.com/watch?v=x
func FixURL(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}

	u, err := url.Parse(schemeHTTPS + "://" + raw)
	if err != nil {
		return raw
	}

	return u.String()
}

// Normalize trims spaces, parses and returns the URL in string format.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	return u.String()
}

// VideoID extracts the video id from a watch, short, live or embed URL, or accepts a bare id.
//   - https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=1 => dQw4w9WgXcQ
//   - https://youtu.be/dQw4w9WgXcQ => dQw4w9WgXcQ
//   - https://www.youtube.com/live/dQw4w9WgXcQ?si=x => dQw4w9WgXcQ
func VideoID(raw string) (string, error) {
	raw = Normalize(raw)
	if raw == "" {
		return "", errs.ErrInvalidURL
	}

	if reVideoID.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(FixURL(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrInvalidURL, err)
	}

	if v := u.Query().Get("v"); v != "" {
		return v, nil
	}

	if strings.EqualFold(strings.TrimPrefix(u.Hostname(), "www."), "youtu.be") {
		if id := firstSegment(u.Path); id != "" {
			return id, nil
		}
	}

	for _, prefix := range idPrefixes {
		if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
			if id := firstSegment(rest); id != "" {
				return id, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %q", errs.ErrVideoIDNotFound, raw)
}

// WatchURL builds the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	seg, _, _ := strings.Cut(path, "/")

	return seg
}
