package services

import (
	"context"
	"sync"

	"livecast/internal/core/domain"

	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// fakeTransport records every message written to it.
type fakeTransport struct {
	mu     sync.Mutex
	open   bool
	writes []interface{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{open: true}
}

func (t *fakeTransport) WriteJSON(v interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return domain.ErrConnectionClosed
	}
	t.writes = append(t.writes, v)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	return nil
}

func (t *fakeTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *fakeTransport) sent() []interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]interface{}, len(t.writes))
	copy(out, t.writes)
	return out
}

func (t *fakeTransport) sentTypes() []domain.MessageType {
	var types []domain.MessageType
	for _, msg := range t.sent() {
		switch m := msg.(type) {
		case domain.ChatHistoryMessage:
			types = append(types, m.Type)
		case domain.ChatBroadcastMessage:
			types = append(types, m.Type)
		case domain.StreamUpdateMessage:
			types = append(types, m.Type)
		case domain.StreamStartedMessage:
			types = append(types, m.Type)
		case domain.StreamStoppedMessage:
			types = append(types, m.Type)
		case domain.ViewerJoinedMessage:
			types = append(types, m.Type)
		case domain.BroadcasterNoticeMessage:
			types = append(types, m.Type)
		case domain.ErrorMessage:
			types = append(types, m.Type)
		case domain.OfferMessage:
			types = append(types, m.Type)
		case domain.AnswerMessage:
			types = append(types, m.Type)
		case domain.ICECandidateMessage:
			types = append(types, m.Type)
		}
	}
	return types
}

// fakeChatStore is an in-memory ports.ChatStore with injectable failures.
type fakeChatStore struct {
	mu        sync.Mutex
	appended  []domain.ChatMessage
	history   []domain.ChatMessage
	likeCount int
	likedBy   []domain.Identity
	appendErr error
	recentErr error
}

func (s *fakeChatStore) AppendChat(ctx context.Context, streamID domain.StreamID, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, msg)
	return nil
}

func (s *fakeChatStore) RecentChat(ctx context.Context, streamID domain.StreamID, limit int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	out := make([]domain.ChatMessage, len(s.history))
	copy(out, s.history)
	return out, nil
}

func (s *fakeChatStore) PersistLikeState(ctx context.Context, streamID domain.StreamID, likeCount int, likedBy []domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.likeCount = likeCount
	s.likedBy = likedBy
	return nil
}

func (s *fakeChatStore) appendedMessages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.appended))
	copy(out, s.appended)
	return out
}

// fakePublisher counts platform bus publishes.
type fakePublisher struct {
	mu      sync.Mutex
	started []domain.StreamState
	stopped []domain.StreamID
	chats   []domain.ChatMessage
	likes   []int
}

func (p *fakePublisher) PublishStreamStarted(ctx context.Context, state domain.StreamState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, state)
	return nil
}

func (p *fakePublisher) PublishStreamStopped(ctx context.Context, streamID domain.StreamID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = append(p.stopped, streamID)
	return nil
}

func (p *fakePublisher) PublishChatMessage(ctx context.Context, streamID domain.StreamID, msg domain.ChatMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chats = append(p.chats, msg)
	return nil
}

func (p *fakePublisher) PublishLikeUpdated(ctx context.Context, streamID domain.StreamID, likeCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.likes = append(p.likes, likeCount)
	return nil
}

// nopMetrics satisfies ports.MetricsRecorder for tests.
type nopMetrics struct{}

func (nopMetrics) SetViewerCount(int)      {}
func (nopMetrics) PrivilegedConnected()    {}
func (nopMetrics) PrivilegedDisconnected() {}
func (nopMetrics) BroadcastStarted()       {}
func (nopMetrics) BroadcastStopped()       {}
func (nopMetrics) ChatMessageSent()        {}
func (nopMetrics) LikeCountChanged(int)    {}
func (nopMetrics) SignalMessage(string)    {}
func (nopMetrics) AuthFailure()            {}
func (nopMetrics) UnknownPeer()            {}
func (nopMetrics) PersistenceFailure()     {}

// staticVerifier resolves tokens from a fixed table.
type staticVerifier struct {
	identities map[string]*domain.VerifiedIdentity
}

func (v *staticVerifier) Verify(token string) (*domain.VerifiedIdentity, error) {
	if identity, ok := v.identities[token]; ok {
		return identity, nil
	}
	return nil, domain.ErrAuthFailed
}
