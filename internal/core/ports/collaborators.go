package ports

import (
	"context"

	"livecast/internal/core/domain"
)

// ChatStore is the durable side of the chat transcript and like state.
// The coordination core treats it as best-effort: a failing store never
// interrupts a live broadcast.
type ChatStore interface {
	AppendChat(ctx context.Context, streamID domain.StreamID, msg domain.ChatMessage) error
	RecentChat(ctx context.Context, streamID domain.StreamID, limit int) ([]domain.ChatMessage, error)
	PersistLikeState(ctx context.Context, streamID domain.StreamID, likeCount int, likedBy []domain.Identity) error
}

// TokenVerifier validates identity tokens issued elsewhere in the platform.
type TokenVerifier interface {
	Verify(token string) (*domain.VerifiedIdentity, error)
}

// EventPublisher pushes broadcast lifecycle and chat events onto the
// platform bus for the back-office modules that are not connected live.
type EventPublisher interface {
	PublishStreamStarted(ctx context.Context, state domain.StreamState) error
	PublishStreamStopped(ctx context.Context, streamID domain.StreamID) error
	PublishChatMessage(ctx context.Context, streamID domain.StreamID, msg domain.ChatMessage) error
	PublishLikeUpdated(ctx context.Context, streamID domain.StreamID, likeCount int) error
}

// MetricsRecorder receives counters from the coordination core. Implemented
// by the Prometheus collector; a no-op implementation exists for tests.
type MetricsRecorder interface {
	SetViewerCount(n int)
	PrivilegedConnected()
	PrivilegedDisconnected()
	BroadcastStarted()
	BroadcastStopped()
	ChatMessageSent()
	LikeCountChanged(n int)
	SignalMessage(msgType string)
	AuthFailure()
	UnknownPeer()
	PersistenceFailure()
}
