package ports

import (
	"context"

	"livecast/internal/core/domain"
)

// ConnectionRegistry tracks live connections: the viewer set keyed by
// session id and the privileged set keyed by user id.
type ConnectionRegistry interface {
	// RegisterViewer never rejects: a missing or invalid token degrades the
	// connection to anonymous. Re-registering a session id overwrites the
	// previous entry and closes its transport. The bootstrap callback runs
	// after the handle is installed but before the membership fan-out, so
	// the new connection sees its state snapshot and chat history before
	// any live event.
	RegisterViewer(ctx context.Context, sessionID domain.SessionID, token string, transport domain.Transport, bootstrap func(*domain.ConnectionHandle)) *domain.ConnectionHandle

	// RegisterPrivileged hard-fails with domain.ErrAuthFailed unless the
	// token verifies to a staff or admin role.
	RegisterPrivileged(ctx context.Context, userID domain.UserID, token string, transport domain.Transport) (*domain.ConnectionHandle, error)

	// Unregister is idempotent and a no-op for handles displaced by a
	// later registration of the same session id.
	Unregister(ctx context.Context, handle *domain.ConnectionHandle)

	ViewerCount() int

	BroadcastToViewers(msg interface{})
	BroadcastToPrivileged(msg interface{})
	BroadcastToAll(msg interface{})

	// OnMembershipChange installs the hook fired after every viewer-set
	// mutation. Wired to the event service at startup.
	OnMembershipChange(fn func())
}

// StreamStateStore owns the single in-process broadcast record.
type StreamStateStore interface {
	// StartBroadcast returns domain.ErrBroadcastActive when a broadcast is
	// already live; the duplicate-start guard lives here, not in callers.
	StartBroadcast(desc domain.StreamDescriptor) error

	// StopBroadcast clears the like set and deactivates; viewer count is
	// left alone since it is derived from registry membership.
	StopBroadcast()

	// ToggleLike flips identity's membership in the like set and returns
	// the resulting count and set. domain.ErrStreamNotLive when inactive.
	ToggleLike(identity domain.Identity) (int, []domain.Identity, error)

	SetViewerCount(n int)
	IsActive() bool
	Snapshot() domain.StreamState
}

// SignalingRelay brokers offer/answer/candidate messages between exactly one
// broadcaster peer and any number of viewer peers.
type SignalingRelay interface {
	RegisterPeer(ctx context.Context, peerID domain.PeerID, role domain.PeerRole, transport domain.Transport)
	RemovePeer(ctx context.Context, peerID domain.PeerID)

	RelayOffer(ctx context.Context, msg domain.OfferMessage)
	RelayAnswer(ctx context.Context, msg domain.AnswerMessage)
	RelayICECandidate(ctx context.Context, msg domain.ICECandidateMessage)

	BroadcastStart(ctx context.Context, msg domain.BroadcastStartMessage) error
	BroadcastStop(ctx context.Context, peerID domain.PeerID)

	Broadcaster() (domain.PeerID, bool)
}

// EventFanout is the chat bus plus the bootstrap path for late joiners.
type EventFanout interface {
	PostChat(ctx context.Context, sender *domain.ConnectionHandle, msg domain.ChatMessage)
	PostLike(ctx context.Context, identity domain.Identity) error

	// Bootstrap replays the current state snapshot followed by recent chat
	// history on a freshly registered connection, in that order.
	Bootstrap(ctx context.Context, handle *domain.ConnectionHandle)

	// ViewerCountChanged recomputes the derived count from the registry and
	// fans the update out. Driven only by membership changes.
	ViewerCountChanged(ctx context.Context)
}
