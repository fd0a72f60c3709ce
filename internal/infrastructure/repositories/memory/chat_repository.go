package memory

import (
	"context"
	"sync"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
)

// MemoryChatRepository keeps the transcript in a capped in-memory buffer.
// The default store for single-node deployments and tests; history does not
// survive a restart.
type MemoryChatRepository struct {
	mu        sync.RWMutex
	messages  []domain.ChatMessage
	retention int

	likeCount int
	likedBy   []domain.Identity
}

func NewMemoryChatRepository(retention int) ports.ChatStore {
	if retention <= 0 {
		retention = 1000
	}
	return &MemoryChatRepository{
		retention: retention,
	}
}

func (r *MemoryChatRepository) AppendChat(ctx context.Context, streamID domain.StreamID, msg domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, msg)
	if len(r.messages) > r.retention {
		// Drop the oldest overflow in one cut; appends vastly outnumber
		// retention trims.
		r.messages = r.messages[len(r.messages)-r.retention:]
	}
	return nil
}

func (r *MemoryChatRepository) RecentChat(ctx context.Context, streamID domain.StreamID, limit int) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.messages) {
		limit = len(r.messages)
	}

	out := make([]domain.ChatMessage, limit)
	copy(out, r.messages[len(r.messages)-limit:])
	return out, nil
}

func (r *MemoryChatRepository) PersistLikeState(ctx context.Context, streamID domain.StreamID, likeCount int, likedBy []domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.likeCount = likeCount
	r.likedBy = make([]domain.Identity, len(likedBy))
	copy(r.likedBy, likedBy)
	return nil
}

// LikeState returns the last persisted like snapshot.
func (r *MemoryChatRepository) LikeState() (int, []domain.Identity) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Identity, len(r.likedBy))
	copy(out, r.likedBy)
	return r.likeCount, out
}
