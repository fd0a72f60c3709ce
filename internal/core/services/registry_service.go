package services

import (
	"context"
	"sync"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/pkg/utils"

	"go.uber.org/zap"
)

type viewerEntry struct {
	handle *domain.ConnectionHandle
}

type privilegedEntry struct {
	handle *domain.ConnectionHandle
}

// registryService tracks live connections. The lock guards the two maps
// only; transports are written to after the lock is released so a stalled
// client can never block registration for everyone else.
type registryService struct {
	verifier ports.TokenVerifier
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	mu         sync.RWMutex
	viewers    map[domain.SessionID]*viewerEntry
	privileged map[domain.UserID]*privilegedEntry
	onChange   func()
}

func NewRegistryService(verifier ports.TokenVerifier, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) ports.ConnectionRegistry {
	return &registryService{
		verifier:   verifier,
		metrics:    metrics,
		logger:     logger,
		viewers:    make(map[domain.SessionID]*viewerEntry),
		privileged: make(map[domain.UserID]*privilegedEntry),
	}
}

func (r *registryService) OnMembershipChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// RegisterViewer decodes the optional identity token and degrades to
// anonymous on any failure. Live viewing is never gated by auth. The
// bootstrap callback runs before the membership fan-out: the snapshot and
// history must reach the new connection ahead of the viewer-count update
// its own registration triggers.
func (r *registryService) RegisterViewer(ctx context.Context, sessionID domain.SessionID, token string, transport domain.Transport, bootstrap func(*domain.ConnectionHandle)) *domain.ConnectionHandle {
	handle := &domain.ConnectionHandle{
		ID:        domain.ConnectionID(utils.GenerateConnectionID()),
		SessionID: sessionID,
		Role:      domain.RoleAnonymousViewer,
		Transport: transport,
	}

	if token != "" {
		identity, err := r.verifier.Verify(token)
		if err != nil {
			r.logger.Infow("viewer token rejected, degrading to anonymous",
				"session_id", sessionID, "error", err)
		} else {
			handle.UserID = identity.UserID
			handle.Username = identity.Username
			handle.Role = domain.RoleAuthenticatedViewer
		}
	}

	r.mu.Lock()
	var displaced domain.Transport
	if existing, ok := r.viewers[sessionID]; ok {
		// Session ids are not unique across reconnects; the newest
		// registration wins and the stale transport is closed.
		displaced = existing.handle.Transport
	}
	r.viewers[sessionID] = &viewerEntry{handle: handle}
	r.mu.Unlock()

	if displaced != nil && displaced != transport {
		displaced.Close()
		r.logger.Infow("closed stale connection for re-registering session", "session_id", sessionID)
	}

	r.logger.Infow("viewer registered",
		"session_id", sessionID,
		"connection_id", handle.ID,
		"role", handle.Role,
	)

	if bootstrap != nil {
		bootstrap(handle)
	}
	r.notifyMembershipChange()
	return handle
}

// RegisterPrivileged has no anonymous fallback: a missing token or one that
// does not decode to staff/admin is a hard rejection.
func (r *registryService) RegisterPrivileged(ctx context.Context, userID domain.UserID, token string, transport domain.Transport) (*domain.ConnectionHandle, error) {
	if token == "" {
		r.metrics.AuthFailure()
		return nil, domain.ErrAuthFailed
	}

	identity, err := r.verifier.Verify(token)
	if err != nil {
		r.metrics.AuthFailure()
		r.logger.Warnw("privileged registration rejected", "user_id", userID, "error", err)
		return nil, domain.ErrAuthFailed
	}
	if !identity.Role.Privileged() || identity.UserID != userID {
		r.metrics.AuthFailure()
		r.logger.Warnw("privileged registration rejected",
			"user_id", userID, "token_role", identity.Role)
		return nil, domain.ErrAuthFailed
	}

	handle := &domain.ConnectionHandle{
		ID:        domain.ConnectionID(utils.GenerateConnectionID()),
		UserID:    userID,
		Username:  identity.Username,
		Role:      identity.Role,
		Transport: transport,
	}

	r.mu.Lock()
	var displaced domain.Transport
	if existing, ok := r.privileged[userID]; ok {
		displaced = existing.handle.Transport
	}
	r.privileged[userID] = &privilegedEntry{handle: handle}
	r.mu.Unlock()

	if displaced != nil && displaced != transport {
		displaced.Close()
	}

	r.metrics.PrivilegedConnected()
	r.logger.Infow("privileged connection registered",
		"user_id", userID,
		"connection_id", handle.ID,
		"role", handle.Role,
	)

	return handle, nil
}

// Unregister is idempotent. A handle displaced by a later registration of
// the same key is not removed: the map entry belongs to the newer handle.
func (r *registryService) Unregister(ctx context.Context, handle *domain.ConnectionHandle) {
	if handle == nil {
		return
	}

	r.mu.Lock()
	removedViewer := false
	removedPrivileged := false
	if handle.SessionID != "" {
		if entry, ok := r.viewers[handle.SessionID]; ok && entry.handle == handle {
			delete(r.viewers, handle.SessionID)
			removedViewer = true
		}
	}
	if !removedViewer && handle.UserID != "" {
		if entry, ok := r.privileged[handle.UserID]; ok && entry.handle == handle {
			delete(r.privileged, handle.UserID)
			removedPrivileged = true
		}
	}
	r.mu.Unlock()

	if removedPrivileged {
		r.metrics.PrivilegedDisconnected()
	}

	if removedViewer || removedPrivileged {
		r.logger.Infow("connection unregistered",
			"connection_id", handle.ID,
			"role", handle.Role,
		)
	}

	if removedViewer {
		r.notifyMembershipChange()
	}
}

func (r *registryService) ViewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}

func (r *registryService) BroadcastToViewers(msg interface{}) {
	r.send(r.viewerTransports(), msg)
}

func (r *registryService) BroadcastToPrivileged(msg interface{}) {
	r.send(r.privilegedTransports(), msg)
}

func (r *registryService) BroadcastToAll(msg interface{}) {
	transports := r.viewerTransports()
	transports = append(transports, r.privilegedTransports()...)
	r.send(transports, msg)
}

func (r *registryService) viewerTransports() []domain.Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Transport, 0, len(r.viewers))
	for _, entry := range r.viewers {
		out = append(out, entry.handle.Transport)
	}
	return out
}

func (r *registryService) privilegedTransports() []domain.Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Transport, 0, len(r.privileged))
	for _, entry := range r.privileged {
		out = append(out, entry.handle.Transport)
	}
	return out
}

// send iterates a snapshot of the member list, so a connection closing
// mid-broadcast only fails its own delivery.
func (r *registryService) send(transports []domain.Transport, msg interface{}) {
	for _, transport := range transports {
		if !transport.IsOpen() {
			continue
		}
		if err := transport.WriteJSON(msg); err != nil {
			r.logger.Debugw("broadcast send failed", "error", err)
		}
	}
}

func (r *registryService) notifyMembershipChange() {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()

	if fn != nil {
		fn()
	}
}
