// Package gen provides utility functions for generating values.
package gen

import (
	"strings"

	"github.com/google/uuid"
)

const sep = "|"

// Key joins parts with the key separator.
func Key(parts ...string) string {
	return strings.Join(parts, sep)
}

// UUIDv5 generates a deterministic UUIDv5 from the joined parts.
func UUIDv5(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(Key(parts...))).String()
}

// BatchID derives a stable batch identifier from the video id and the selected clip ids.
func BatchID(videoID string, clipIDs []string) string {
	return UUIDv5(videoID, strings.Join(clipIDs, ","))
}
