package services

import (
	"context"
	"errors"
	"sync"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/pkg/utils"

	"go.uber.org/zap"
)

type peerEntry struct {
	role      domain.PeerRole
	transport domain.Transport
}

// relayService forwards signaling payloads between the broadcaster peer and
// viewer peers without interpreting them. It also owns the single-broadcaster
// invariant at the peer level; the stream store enforces it at the state
// level.
type relayService struct {
	state     ports.StreamStateStore
	registry  ports.ConnectionRegistry
	publisher ports.EventPublisher
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger

	mu          sync.RWMutex
	peers       map[domain.PeerID]*peerEntry
	broadcaster domain.PeerID
}

func NewRelayService(
	state ports.StreamStateStore,
	registry ports.ConnectionRegistry,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.SignalingRelay {
	return &relayService{
		state:     state,
		registry:  registry,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		peers:     make(map[domain.PeerID]*peerEntry),
	}
}

func (r *relayService) RegisterPeer(ctx context.Context, peerID domain.PeerID, role domain.PeerRole, transport domain.Transport) {
	r.mu.Lock()
	var evicted domain.PeerID
	if role == domain.PeerRoleBroadcaster {
		if r.broadcaster != "" && r.broadcaster != peerID {
			// A newer broadcaster displaces the current one: its record is
			// closed outright. The old connection's own teardown then finds
			// nothing left to remove.
			evicted = r.broadcaster
			delete(r.peers, evicted)
		}
		r.broadcaster = peerID
	}
	r.peers[peerID] = &peerEntry{role: role, transport: transport}
	broadcaster := r.broadcaster
	var broadcasterTransport domain.Transport
	if broadcaster != "" {
		if entry, ok := r.peers[broadcaster]; ok {
			broadcasterTransport = entry.transport
		}
	}
	viewerTransports := r.viewerPeerTransportsLocked()
	r.mu.Unlock()

	if evicted != "" {
		r.logger.Warnw("broadcaster displaced by new registration",
			"old_peer", evicted, "new_peer", peerID)
		r.stopStreamState(ctx, evicted)
		for _, t := range viewerTransports {
			r.sendTo(t, domain.BroadcasterNoticeMessage{Type: domain.MsgBroadcastStop, PeerID: evicted})
			r.sendTo(t, domain.BroadcasterNoticeMessage{Type: domain.MsgBroadcastStart, PeerID: peerID})
		}
	}

	r.logger.Infow("peer registered", "peer_id", peerID, "role", role)

	// A viewer joining an active session prompts the broadcaster to
	// originate an offer toward it.
	if role == domain.PeerRoleViewer && broadcasterTransport != nil {
		r.sendTo(broadcasterTransport, domain.ViewerJoinedMessage{Type: domain.MsgViewerJoined, PeerID: peerID})
	}
}

func (r *relayService) RemovePeer(ctx context.Context, peerID domain.PeerID) {
	r.mu.Lock()
	_, known := r.peers[peerID]
	delete(r.peers, peerID)
	wasBroadcaster := r.broadcaster == peerID
	r.mu.Unlock()

	if !known {
		return
	}

	r.logger.Infow("peer removed", "peer_id", peerID)

	// A vanishing broadcaster ends the broadcast exactly as an explicit
	// stop would, so viewers are never left watching a dead stream record.
	if wasBroadcaster {
		r.BroadcastStop(ctx, peerID)
	}
}

func (r *relayService) RelayOffer(ctx context.Context, msg domain.OfferMessage) {
	r.relay(string(domain.MsgWebRTCOffer), msg.To, msg)
}

func (r *relayService) RelayAnswer(ctx context.Context, msg domain.AnswerMessage) {
	r.relay(string(domain.MsgWebRTCAnswer), msg.To, msg)
}

func (r *relayService) RelayICECandidate(ctx context.Context, msg domain.ICECandidateMessage) {
	r.relay(string(domain.MsgWebRTCICE), msg.To, msg)
}

// relay forwards msg verbatim to the target peer. An unknown target is
// dropped without an error reply: peers disconnect mid-handshake all the
// time and the sender cannot act on the failure anyway.
func (r *relayService) relay(msgType string, to domain.PeerID, msg interface{}) {
	r.mu.RLock()
	entry, ok := r.peers[to]
	r.mu.RUnlock()

	if !ok {
		r.metrics.UnknownPeer()
		r.logger.Debugw("dropping signal for unknown peer", "message_type", msgType, "to", to)
		return
	}

	r.metrics.SignalMessage(msgType)
	r.sendTo(entry.transport, msg)
}

func (r *relayService) BroadcastStart(ctx context.Context, msg domain.BroadcastStartMessage) error {
	r.mu.Lock()
	if r.broadcaster != "" && r.broadcaster != msg.PeerID {
		current := r.broadcaster
		r.mu.Unlock()
		r.logger.Warnw("broadcast start ignored, another broadcaster is live",
			"peer_id", msg.PeerID, "broadcaster", current)
		return domain.ErrBroadcastActive
	}
	claimed := r.broadcaster == ""
	r.broadcaster = msg.PeerID
	if entry, ok := r.peers[msg.PeerID]; ok {
		entry.role = domain.PeerRoleBroadcaster
	}
	viewerTransports := r.viewerPeerTransportsLocked()
	r.mu.Unlock()

	desc := domain.StreamDescriptor{
		StreamID:        msg.StreamID,
		Title:           msg.Title,
		Description:     msg.Description,
		MediaDescriptor: string(msg.PeerID),
		Quality:         msg.Quality,
	}
	if desc.StreamID == "" {
		desc.StreamID = domain.StreamID(utils.GenerateStreamID())
	}
	if desc.Quality == "" {
		desc.Quality = "auto"
	}

	if err := r.state.StartBroadcast(desc); err != nil {
		// The recorded broadcaster re-sending start while its own stream is
		// live is a retry, not a conflict.
		if !claimed && errors.Is(err, domain.ErrBroadcastActive) {
			r.logger.Debugw("duplicate broadcast start from current broadcaster", "peer_id", msg.PeerID)
			return nil
		}
		if claimed {
			r.mu.Lock()
			if r.broadcaster == msg.PeerID {
				r.broadcaster = ""
			}
			r.mu.Unlock()
		}
		return err
	}

	r.state.SetViewerCount(r.registry.ViewerCount())
	snapshot := r.state.Snapshot()

	r.registry.BroadcastToAll(domain.NewStreamStartedMessage(snapshot))
	for _, t := range viewerTransports {
		r.sendTo(t, domain.BroadcasterNoticeMessage{Type: domain.MsgBroadcastStart, PeerID: msg.PeerID})
	}

	r.metrics.BroadcastStarted()
	if err := r.publisher.PublishStreamStarted(ctx, snapshot); err != nil {
		r.logger.Warnw("failed to publish stream started event", "error", err)
	}

	r.logger.Infow("broadcast started",
		"peer_id", msg.PeerID,
		"stream_id", snapshot.StreamID,
		"title", snapshot.Title,
	)
	return nil
}

func (r *relayService) BroadcastStop(ctx context.Context, peerID domain.PeerID) {
	r.mu.Lock()
	if r.broadcaster != peerID {
		current := r.broadcaster
		r.mu.Unlock()
		r.logger.Warnw("broadcast stop ignored, peer is not the broadcaster",
			"peer_id", peerID, "broadcaster", current)
		return
	}
	r.broadcaster = ""
	viewerTransports := r.viewerPeerTransportsLocked()
	r.mu.Unlock()

	r.stopStreamState(ctx, peerID)
	for _, t := range viewerTransports {
		r.sendTo(t, domain.BroadcasterNoticeMessage{Type: domain.MsgBroadcastStop, PeerID: peerID})
	}
}

// stopStreamState tears down the active broadcast record and announces the
// stop to every registered connection. No-op when nothing is live.
func (r *relayService) stopStreamState(ctx context.Context, peerID domain.PeerID) {
	if !r.state.IsActive() {
		return
	}
	snapshot := r.state.Snapshot()
	r.state.StopBroadcast()

	r.registry.BroadcastToAll(domain.NewStreamStoppedMessage(snapshot.StreamID))

	r.metrics.BroadcastStopped()
	if err := r.publisher.PublishStreamStopped(ctx, snapshot.StreamID); err != nil {
		r.logger.Warnw("failed to publish stream stopped event", "error", err)
	}

	r.logger.Infow("broadcast stopped", "peer_id", peerID, "stream_id", snapshot.StreamID)
}

func (r *relayService) Broadcaster() (domain.PeerID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.broadcaster, r.broadcaster != ""
}

func (r *relayService) viewerPeerTransportsLocked() []domain.Transport {
	out := make([]domain.Transport, 0, len(r.peers))
	for id, entry := range r.peers {
		if id == r.broadcaster {
			continue
		}
		out = append(out, entry.transport)
	}
	return out
}

func (r *relayService) sendTo(transport domain.Transport, msg interface{}) {
	if transport == nil || !transport.IsOpen() {
		return
	}
	if err := transport.WriteJSON(msg); err != nil {
		r.logger.Debugw("peer send failed", "error", err)
	}
}
