package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/internal/core/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testMetrics struct{}

func (testMetrics) SetViewerCount(int)      {}
func (testMetrics) PrivilegedConnected()    {}
func (testMetrics) PrivilegedDisconnected() {}
func (testMetrics) BroadcastStarted()       {}
func (testMetrics) BroadcastStopped()       {}
func (testMetrics) ChatMessageSent()        {}
func (testMetrics) LikeCountChanged(int)    {}
func (testMetrics) SignalMessage(string)    {}
func (testMetrics) AuthFailure()            {}
func (testMetrics) UnknownPeer()            {}
func (testMetrics) PersistenceFailure()     {}

type testPublisher struct{}

func (testPublisher) PublishStreamStarted(context.Context, domain.StreamState) error { return nil }
func (testPublisher) PublishStreamStopped(context.Context, domain.StreamID) error    { return nil }
func (testPublisher) PublishChatMessage(context.Context, domain.StreamID, domain.ChatMessage) error {
	return nil
}
func (testPublisher) PublishLikeUpdated(context.Context, domain.StreamID, int) error { return nil }

type testChatStore struct{}

func (testChatStore) AppendChat(context.Context, domain.StreamID, domain.ChatMessage) error {
	return nil
}
func (testChatStore) RecentChat(context.Context, domain.StreamID, int) ([]domain.ChatMessage, error) {
	return nil, nil
}
func (testChatStore) PersistLikeState(context.Context, domain.StreamID, int, []domain.Identity) error {
	return nil
}

type wsFixture struct {
	ts       *httptest.Server
	registry ports.ConnectionRegistry
	state    ports.StreamStateStore
	tokens   services.TokenService
}

func newWebSocketFixture(t *testing.T) (*wsFixture, func()) {
	t.Helper()

	logger := zap.NewNop().Sugar()
	tokens := services.NewTokenVerifier("test-secret", time.Hour)
	registry := services.NewRegistryService(tokens, testMetrics{}, logger)
	state := services.NewStreamStateService()
	events := services.NewEventService(registry, state, testChatStore{}, testPublisher{}, testMetrics{}, logger, services.DefaultEventServiceConfig())
	relay := services.NewRelayService(state, registry, testPublisher{}, testMetrics{}, logger)
	registry.OnMembershipChange(func() { events.ViewerCountChanged(context.Background()) })

	server := NewWebSocketServer(registry, relay, events, testMetrics{}, logger, DefaultOptions())
	ts := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	return &wsFixture{ts: ts, registry: registry, state: state, tokens: tokens}, ts.Close
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestRegisterBootstrapsHistory(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	conn := dial(t, f.ts)
	defer conn.Close()

	send(t, conn, map[string]interface{}{"type": "register", "sessionId": "sess-1"})

	// No broadcast running, bootstrap is history only.
	msg := readMessage(t, conn)
	assert.Equal(t, "chat_history", msg["type"])
}

func TestMalformedMessageKeepsConnectionOpen(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	conn := dial(t, f.ts)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"no":"type"}`)))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])

	// The connection survives; a valid register afterwards still works.
	send(t, conn, map[string]interface{}{"type": "register", "sessionId": "sess-1"})
	msg = readMessage(t, conn)
	assert.Equal(t, "chat_history", msg["type"])
}

func TestUnknownMessageTypeRejected(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	conn := dial(t, f.ts)
	defer conn.Close()

	send(t, conn, map[string]interface{}{"type": "set_bitrate"})

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestRegisterAdminBadTokenClosesConnection(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	conn := dial(t, f.ts)
	defer conn.Close()

	send(t, conn, map[string]interface{}{
		"type":   "register_admin",
		"userId": "staff-1",
		"token":  "forged",
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])

	// The server closes the socket after the rejection.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestChatFansOutAcrossConnections(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	sender := dial(t, f.ts)
	defer sender.Close()
	receiver := dial(t, f.ts)
	defer receiver.Close()

	send(t, sender, map[string]interface{}{"type": "register", "sessionId": "sess-a"})
	readMessage(t, sender) // chat_history

	send(t, receiver, map[string]interface{}{"type": "register", "sessionId": "sess-b"})
	readMessage(t, receiver) // chat_history

	// Registration of sess-b fans a viewer count update to both.
	drainUntil(t, sender, "stream_update")

	send(t, sender, map[string]interface{}{
		"type":     "chat_message",
		"username": "alice",
		"message":  "hello room",
	})

	msg := drainUntil(t, receiver, "chat_message")
	assert.Equal(t, "hello room", msg["message"])
	assert.NotEmpty(t, msg["id"])
}

func TestSignalingRelayedBetweenPeers(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	broadcaster := dial(t, f.ts)
	defer broadcaster.Close()
	viewer := dial(t, f.ts)
	defer viewer.Close()

	send(t, broadcaster, map[string]interface{}{
		"type": "webrtc_register", "peerId": "peer-host", "userType": "broadcaster",
	})
	send(t, viewer, map[string]interface{}{
		"type": "webrtc_register", "peerId": "peer-view", "userType": "viewer",
	})

	// The broadcaster hears about the joining viewer.
	joined := drainUntil(t, broadcaster, "webrtc_viewer_joined")
	assert.Equal(t, "peer-view", joined["peerId"])

	send(t, broadcaster, map[string]interface{}{
		"type": "webrtc_offer",
		"from": "peer-host",
		"to":   "peer-view",
		"payload": map[string]interface{}{
			"type": "offer",
			"sdp":  "v=0\r\n",
		},
	})

	offer := drainUntil(t, viewer, "webrtc_offer")
	assert.Equal(t, "peer-host", offer["from"])
	payload, ok := offer["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "v=0\r\n", payload["sdp"])
}

func TestBroadcastStartRequiresMatchingPeer(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	conn := dial(t, f.ts)
	defer conn.Close()

	send(t, conn, map[string]interface{}{
		"type": "webrtc_register", "peerId": "peer-host", "userType": "broadcaster",
	})
	send(t, conn, map[string]interface{}{
		"type": "webrtc_broadcast_start", "peerId": "somebody-else",
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestRegisterDuringLiveBroadcastOrdersBootstrapFirst(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	host := dial(t, f.ts)
	defer host.Close()
	send(t, host, map[string]interface{}{
		"type": "webrtc_register", "peerId": "peer-host", "userType": "broadcaster",
	})
	send(t, host, map[string]interface{}{
		"type": "webrtc_broadcast_start", "peerId": "peer-host", "title": "Spring Sale",
	})
	require.Eventually(t, f.state.IsActive, 2*time.Second, 10*time.Millisecond)

	// A late joiner must see the snapshot, then history, before the viewer
	// count update its own registration fans out.
	conn := dial(t, f.ts)
	defer conn.Close()
	send(t, conn, map[string]interface{}{"type": "register", "sessionId": "sess-late"})

	first := readMessage(t, conn)
	require.Equal(t, "stream_started", first["type"])
	assert.Equal(t, "Spring Sale", first["title"])

	second := readMessage(t, conn)
	assert.Equal(t, "chat_history", second["type"])
}

func TestReRegisterReleasesPreviousViewerEntry(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	conn := dial(t, f.ts)
	send(t, conn, map[string]interface{}{"type": "register", "sessionId": "sess-a"})
	readMessage(t, conn) // chat_history

	send(t, conn, map[string]interface{}{"type": "register", "sessionId": "sess-b"})
	drainUntil(t, conn, "chat_history")

	// One connection, one entry: the sess-a registration is released.
	require.Eventually(t, func() bool { return f.registry.ViewerCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return f.registry.ViewerCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestAdminPromotionReleasesViewerEntry(t *testing.T) {
	f, done := newWebSocketFixture(t)
	defer done()

	conn := dial(t, f.ts)
	defer conn.Close()
	send(t, conn, map[string]interface{}{"type": "register", "sessionId": "sess-a"})
	readMessage(t, conn) // chat_history

	token, err := f.tokens.GenerateToken("staff-1", "mod", domain.RoleStaff)
	require.NoError(t, err)
	send(t, conn, map[string]interface{}{
		"type": "register_admin", "userId": "staff-1", "token": token,
	})
	drainUntil(t, conn, "chat_history")

	require.Eventually(t, func() bool { return f.registry.ViewerCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

// drainUntil reads frames until one of the wanted type arrives. Viewer count
// updates interleave with everything else, so tests skip past them.
func drainUntil(t *testing.T, conn *websocket.Conn, wantType string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == wantType {
			return msg
		}
	}
	t.Fatalf("no %s message before deadline", wantType)
	return nil
}
