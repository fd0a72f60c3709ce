package services

import (
	"sort"
	"sync"
	"time"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
)

// streamStateService owns the single in-process broadcast record. All fields
// are guarded by mu; Snapshot hands out value copies only.
type streamStateService struct {
	mu sync.Mutex

	active          bool
	streamID        domain.StreamID
	startTime       time.Time
	title           string
	description     string
	mediaDescriptor string
	quality         string
	viewerCount     int
	likedBy         map[domain.Identity]struct{}
}

func NewStreamStateService() ports.StreamStateStore {
	return &streamStateService{
		likedBy: make(map[domain.Identity]struct{}),
	}
}

func (s *streamStateService) StartBroadcast(desc domain.StreamDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return domain.ErrBroadcastActive
	}

	s.active = true
	s.streamID = desc.StreamID
	s.startTime = time.Now()
	s.title = desc.Title
	s.description = desc.Description
	s.mediaDescriptor = desc.MediaDescriptor
	s.quality = desc.Quality
	s.likedBy = make(map[domain.Identity]struct{})

	return nil
}

func (s *streamStateService) StopBroadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Viewer count stays: it is derived from registry membership and still
	// meaningful for the "ended" notice.
	s.active = false
	s.likedBy = make(map[domain.Identity]struct{})
}

func (s *streamStateService) ToggleLike(identity domain.Identity) (int, []domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return 0, nil, domain.ErrStreamNotLive
	}

	if _, liked := s.likedBy[identity]; liked {
		delete(s.likedBy, identity)
	} else {
		s.likedBy[identity] = struct{}{}
	}

	return len(s.likedBy), s.likedBySliceLocked(), nil
}

func (s *streamStateService) SetViewerCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 {
		n = 0
	}
	s.viewerCount = n
}

func (s *streamStateService) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *streamStateService) Snapshot() domain.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.StreamState{
		Active:          s.active,
		StreamID:        s.streamID,
		StartTime:       s.startTime,
		Title:           s.title,
		Description:     s.description,
		MediaDescriptor: s.mediaDescriptor,
		Quality:         s.quality,
		ViewerCount:     s.viewerCount,
		LikeCount:       len(s.likedBy),
		LikedBy:         s.likedBySliceLocked(),
	}
}

// likedBySliceLocked must be called with s.mu held. The result is sorted so
// consecutive snapshots compare deterministically.
func (s *streamStateService) likedBySliceLocked() []domain.Identity {
	out := make([]domain.Identity, 0, len(s.likedBy))
	for id := range s.likedBy {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
