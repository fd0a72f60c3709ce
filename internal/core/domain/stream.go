package domain

import (
	"time"
)

// StreamDescriptor carries the broadcast metadata announced at start time.
// MediaDescriptor identifies the media endpoint viewers negotiate with
// (the broadcaster peer id).
type StreamDescriptor struct {
	StreamID        StreamID
	Title           string
	Description     string
	MediaDescriptor string
	Quality         string
}

// StreamState is a value snapshot of the single in-process broadcast record.
// LikedBy is sorted so snapshots compare deterministically.
type StreamState struct {
	Active          bool
	StreamID        StreamID
	StartTime       time.Time
	Title           string
	Description     string
	MediaDescriptor string
	Quality         string
	ViewerCount     int
	LikeCount       int
	LikedBy         []Identity
}

// HasLiked reports whether identity is present in the snapshot's like set.
func (s StreamState) HasLiked(identity Identity) bool {
	for _, id := range s.LikedBy {
		if id == identity {
			return true
		}
	}
	return false
}
