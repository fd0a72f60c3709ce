package domain

// Transport is an opaque bidirectional message channel. Implementations must
// serialize concurrent writes and report closed state without blocking;
// WriteJSON on a closed transport returns ErrConnectionClosed.
type Transport interface {
	WriteJSON(v interface{}) error
	Close() error
	IsOpen() bool
}

// ConnectionHandle ties a transport to the identity it registered with.
// A handle is owned exclusively by its registry entry and never shared.
type ConnectionHandle struct {
	ID        ConnectionID
	SessionID SessionID
	UserID    UserID
	Username  string
	Role      Role
	Transport Transport
}

// Identity returns the like-deduplication key for this connection.
func (h *ConnectionHandle) Identity() Identity {
	if h.UserID != "" {
		return Identity(h.UserID)
	}
	return Identity(h.SessionID)
}
