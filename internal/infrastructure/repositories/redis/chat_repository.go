package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisChatRepository persists the chat transcript as a capped list per
// stream, newest first, and the like snapshot as a JSON blob. The shared
// store of record when multiple coordinator nodes front the same broadcast.
type RedisChatRepository struct {
	client    *redis.Client
	prefix    string
	retention int64
}

func NewRedisChatRepository(client *redis.Client, retention int) ports.ChatStore {
	if retention <= 0 {
		retention = 1000
	}
	return &RedisChatRepository{
		client:    client,
		prefix:    "livecast:",
		retention: int64(retention),
	}
}

func (r *RedisChatRepository) chatKey(streamID domain.StreamID) string {
	return r.prefix + "chat:" + string(streamID)
}

func (r *RedisChatRepository) likesKey(streamID domain.StreamID) string {
	return r.prefix + "likes:" + string(streamID)
}

func (r *RedisChatRepository) AppendChat(ctx context.Context, streamID domain.StreamID, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	key := r.chatKey(streamID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, r.retention-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (r *RedisChatRepository) RecentChat(ctx context.Context, streamID domain.StreamID, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = int(r.retention)
	}

	values, err := r.client.LRange(ctx, r.chatKey(streamID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	// The list is newest first; callers want chronological order.
	messages := make([]domain.ChatMessage, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(values[i]), &msg); err != nil {
			// A corrupt entry loses itself, not the whole page.
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

type likeSnapshot struct {
	LikeCount int               `json:"likeCount"`
	LikedBy   []domain.Identity `json:"likedBy"`
}

func (r *RedisChatRepository) PersistLikeState(ctx context.Context, streamID domain.StreamID, likeCount int, likedBy []domain.Identity) error {
	data, err := json.Marshal(likeSnapshot{LikeCount: likeCount, LikedBy: likedBy})
	if err != nil {
		return fmt.Errorf("failed to marshal like state: %w", err)
	}

	if err := r.client.Set(ctx, r.likesKey(streamID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to persist like state: %w", err)
	}
	return nil
}
