package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options bound per-connection behaviour of the signaling endpoint.
type Options struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	AllowedOrigins    []string
	MessagesPerSecond float64
	MessageBurst      int
	MaxMessageSize    int64
}

func DefaultOptions() Options {
	return Options{
		PingInterval:      30 * time.Second,
		PongTimeout:       60 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		MessagesPerSecond: 20,
		MessageBurst:      40,
		MaxMessageSize:    64 * 1024,
	}
}

// WebSocketServer terminates every client connection and dispatches the wire
// protocol onto the core services. One instance serves viewers, privileged
// staff and WebRTC peers alike; the message types decide the path.
type WebSocketServer struct {
	registry ports.ConnectionRegistry
	relay    ports.SignalingRelay
	events   ports.EventFanout
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	opts        Options
	upgrader    websocket.Upgrader
	activeConns atomic.Int64
}

func NewWebSocketServer(
	registry ports.ConnectionRegistry,
	relay ports.SignalingRelay,
	events ports.EventFanout,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
	opts Options,
) *WebSocketServer {
	s := &WebSocketServer{
		registry: registry,
		relay:    relay,
		events:   events,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// session is the per-connection dispatch state. register and webrtc_register
// fill it in as the client identifies itself.
type session struct {
	transport *wsTransport
	handle    *domain.ConnectionHandle
	peerID    domain.PeerID
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	transport := newTransport(conn, s.opts.WriteTimeout)
	sess := &session{transport: transport}

	s.activeConns.Add(1)
	defer s.activeConns.Add(-1)
	defer s.cleanup(sess)

	conn.SetReadLimit(s.opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})

	s.logger.Infow("connection opened", "remote", r.RemoteAddr)

	messageChan := make(chan []byte, 16)
	errorChan := make(chan error, 1)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
			messageChan <- data
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.MessageBurst)
	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case data := <-messageChan:
			if !limiter.Allow() {
				s.sendError(sess, "rate limit exceeded")
				continue
			}
			if closeConn := s.handleMessage(r.Context(), sess, data); closeConn {
				return
			}

		case <-pingTicker.C:
			if err := transport.writeControl(websocket.PingMessage); err != nil {
				s.logger.Debugw("ping failed", "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "error", err)
			}
			return
		}
	}
}

// handleMessage dispatches one inbound frame. The return value reports
// whether the connection must be torn down; only a failed privileged
// registration forces that. Malformed frames get an error reply and the
// connection stays open.
func (s *WebSocketServer) handleMessage(ctx context.Context, sess *session, data []byte) bool {
	msgType, err := domain.DecodeType(data)
	if err != nil {
		s.sendError(sess, "malformed message")
		return false
	}

	s.metrics.SignalMessage(string(msgType))

	switch msgType {
	case domain.MsgRegister:
		s.handleRegister(ctx, sess, data)
	case domain.MsgRegisterAdmin:
		return s.handleRegisterAdmin(ctx, sess, data)
	case domain.MsgChatMessage:
		s.handleChat(ctx, sess, data)
	case domain.MsgToggleLike:
		s.handleToggleLike(ctx, sess, data)
	case domain.MsgWebRTCRegister:
		s.handleWebRTCRegister(ctx, sess, data)
	case domain.MsgWebRTCOffer:
		var msg domain.OfferMessage
		if err := domain.DecodeInto(data, &msg); err != nil {
			s.sendError(sess, "malformed message")
			return false
		}
		s.relay.RelayOffer(ctx, msg)
	case domain.MsgWebRTCAnswer:
		var msg domain.AnswerMessage
		if err := domain.DecodeInto(data, &msg); err != nil {
			s.sendError(sess, "malformed message")
			return false
		}
		s.relay.RelayAnswer(ctx, msg)
	case domain.MsgWebRTCICE:
		var msg domain.ICECandidateMessage
		if err := domain.DecodeInto(data, &msg); err != nil {
			s.sendError(sess, "malformed message")
			return false
		}
		s.relay.RelayICECandidate(ctx, msg)
	case domain.MsgBroadcastStart:
		s.handleBroadcastStart(ctx, sess, data)
	case domain.MsgBroadcastStop:
		s.handleBroadcastStop(ctx, sess, data)
	default:
		s.sendError(sess, "unknown message type")
	}
	return false
}

func (s *WebSocketServer) handleRegister(ctx context.Context, sess *session, data []byte) {
	var msg domain.RegisterMessage
	if err := domain.DecodeInto(data, &msg); err != nil {
		s.sendError(sess, "malformed message")
		return
	}
	if err := validation.ValidateSessionID(string(msg.SessionID)); err != nil {
		s.sendError(sess, "invalid session id")
		return
	}

	// A connection re-registering under a new session id gives up the old
	// registration; otherwise the stale entry would keep counting as a
	// viewer after this transport closes.
	if sess.handle != nil {
		s.registry.Unregister(ctx, sess.handle)
		sess.handle = nil
	}

	sess.handle = s.registry.RegisterViewer(ctx, msg.SessionID, msg.Token, sess.transport, func(h *domain.ConnectionHandle) {
		s.events.Bootstrap(ctx, h)
	})
}

func (s *WebSocketServer) handleRegisterAdmin(ctx context.Context, sess *session, data []byte) bool {
	var msg domain.RegisterAdminMessage
	if err := domain.DecodeInto(data, &msg); err != nil {
		s.sendError(sess, "malformed message")
		return false
	}

	handle, err := s.registry.RegisterPrivileged(ctx, msg.UserID, msg.Token, sess.transport)
	if err != nil {
		s.sendError(sess, "authentication failed")
		s.logger.Warnw("privileged registration failed, closing connection", "user_id", msg.UserID)
		return true
	}

	// Bootstrap first: releasing a previous viewer registration fans out a
	// count update, which must not reach this connection before its
	// snapshot and history.
	previous := sess.handle
	sess.handle = handle
	s.events.Bootstrap(ctx, handle)

	// Promoting a connection that was registered as a viewer releases the
	// viewer entry, so the count stays derived from live connections.
	if previous != nil {
		s.registry.Unregister(ctx, previous)
	}
	return false
}

func (s *WebSocketServer) handleChat(ctx context.Context, sess *session, data []byte) {
	if sess.handle == nil {
		s.sendError(sess, "not registered")
		return
	}

	var msg domain.ChatBroadcastMessage
	if err := domain.DecodeInto(data, &msg); err != nil {
		s.sendError(sess, "malformed message")
		return
	}

	s.events.PostChat(ctx, sess.handle, msg.ChatMessage)
}

func (s *WebSocketServer) handleToggleLike(ctx context.Context, sess *session, data []byte) {
	var msg domain.ToggleLikeMessage
	if err := domain.DecodeInto(data, &msg); err != nil {
		s.sendError(sess, "malformed message")
		return
	}

	// The registered identity wins over whatever the client put in the
	// payload; unregistered connections fall back to the payload fields.
	var identity domain.Identity
	switch {
	case sess.handle != nil:
		identity = sess.handle.Identity()
	case msg.UserID != "":
		identity = domain.Identity(msg.UserID)
	case msg.SessionID != "":
		identity = domain.Identity(msg.SessionID)
	default:
		s.sendError(sess, "malformed message")
		return
	}

	if err := s.events.PostLike(ctx, identity); err != nil {
		s.sendError(sess, "stream is not live")
	}
}

func (s *WebSocketServer) handleWebRTCRegister(ctx context.Context, sess *session, data []byte) {
	var msg domain.WebRTCRegisterMessage
	if err := domain.DecodeInto(data, &msg); err != nil {
		s.sendError(sess, "malformed message")
		return
	}
	if err := validation.ValidatePeerID(string(msg.PeerID)); err != nil {
		s.sendError(sess, "invalid peer id")
		return
	}

	role, err := domain.PeerRoleFromUserType(msg.UserType)
	if err != nil {
		s.sendError(sess, "unknown user type")
		return
	}

	// A connection re-registering under a new peer id gives up the old one.
	if sess.peerID != "" && sess.peerID != msg.PeerID {
		s.relay.RemovePeer(ctx, sess.peerID)
	}
	sess.peerID = msg.PeerID
	s.relay.RegisterPeer(ctx, msg.PeerID, role, sess.transport)
}

func (s *WebSocketServer) handleBroadcastStart(ctx context.Context, sess *session, data []byte) {
	var msg domain.BroadcastStartMessage
	if err := domain.DecodeInto(data, &msg); err != nil {
		s.sendError(sess, "malformed message")
		return
	}
	if sess.peerID == "" || msg.PeerID != sess.peerID {
		s.sendError(sess, "peer id mismatch")
		return
	}

	if err := s.relay.BroadcastStart(ctx, msg); err != nil {
		s.sendError(sess, "broadcast already active")
	}
}

func (s *WebSocketServer) handleBroadcastStop(ctx context.Context, sess *session, data []byte) {
	var msg domain.BroadcastStopMessage
	if err := domain.DecodeInto(data, &msg); err != nil {
		s.sendError(sess, "malformed message")
		return
	}
	if sess.peerID == "" || msg.PeerID != sess.peerID {
		s.sendError(sess, "peer id mismatch")
		return
	}

	s.relay.BroadcastStop(ctx, msg.PeerID)
}

// cleanup runs once per connection regardless of how it ended. Unregister
// and RemovePeer are idempotent, double teardown is safe.
func (s *WebSocketServer) cleanup(sess *session) {
	sess.transport.Close()

	ctx := context.Background()
	if sess.peerID != "" {
		s.relay.RemovePeer(ctx, sess.peerID)
	}
	if sess.handle != nil {
		s.registry.Unregister(ctx, sess.handle)
	}

	s.logger.Infow("connection closed")
}

func (s *WebSocketServer) sendError(sess *session, message string) {
	if err := sess.transport.WriteJSON(domain.NewErrorMessage(message)); err != nil {
		s.logger.Debugw("error reply send failed", "error", err)
	}
}

func (s *WebSocketServer) ActiveConnections() int64 {
	return s.activeConns.Load()
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.activeConns.Load(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
