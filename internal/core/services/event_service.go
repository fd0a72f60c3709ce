package services

import (
	"context"
	"time"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/pkg/cache"
	"livecast/pkg/circuitbreaker"
	"livecast/pkg/retry"
	"livecast/pkg/utils"
	"livecast/pkg/validation"

	"go.uber.org/zap"
)

const historyCacheKey = "chat:history"

// EventServiceConfig bounds chat fan-out behaviour.
type EventServiceConfig struct {
	HistoryLimit     int
	MaxMessageLength int
	HistoryCacheTTL  time.Duration
	PersistTimeout   time.Duration
}

func DefaultEventServiceConfig() EventServiceConfig {
	return EventServiceConfig{
		HistoryLimit:     50,
		MaxMessageLength: 500,
		HistoryCacheTTL:  5 * time.Second,
		PersistTimeout:   10 * time.Second,
	}
}

// eventService fans chat and like events out to every live connection.
// Persistence is best-effort and fully asynchronous: the delivery path
// never waits on the chat store.
type eventService struct {
	registry  ports.ConnectionRegistry
	state     ports.StreamStateStore
	store     ports.ChatStore
	publisher ports.EventPublisher
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger

	cfg          EventServiceConfig
	historyCache *cache.Cache
	retryCfg     retry.Config
	breaker      *circuitbreaker.CircuitBreaker
}

func NewEventService(
	registry ports.ConnectionRegistry,
	state ports.StreamStateStore,
	store ports.ChatStore,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
	cfg EventServiceConfig,
) ports.EventFanout {
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("chat store circuit breaker state changed",
			"from", from.String(), "to", to.String())
	})

	return &eventService{
		registry:     registry,
		state:        state,
		store:        store,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
		historyCache: cache.New(cfg.HistoryCacheTTL),
		retryCfg:     retry.DefaultConfig(),
		breaker:      breaker,
	}
}

// PostChat normalizes the inbound message, assigns the server-side id and
// timestamp, and fans it out. Client-supplied ids and timestamps are
// ignored so the transcript stays consistent across viewers.
func (e *eventService) PostChat(ctx context.Context, sender *domain.ConnectionHandle, msg domain.ChatMessage) {
	if err := validation.ValidateChatText(msg.Message, e.cfg.MaxMessageLength); err != nil {
		e.logger.Debugw("rejecting chat message", "connection_id", sender.ID, "error", err)
		e.sendError(sender, "invalid chat message")
		return
	}

	username := msg.Username
	if sender.Username != "" {
		username = sender.Username
	}
	if username == "" {
		username = "viewer"
	}

	out := domain.ChatMessage{
		ID:        utils.GenerateMessageID(),
		Username:  utils.SanitizeString(utils.TruncateString(username, 64)),
		Message:   utils.SanitizeString(msg.Message),
		Timestamp: utils.NowUnixMilli(),
		IsAdmin:   sender.Role.Privileged(),
	}

	snapshot := e.state.Snapshot()

	e.registry.BroadcastToAll(domain.NewChatBroadcastMessage(out))
	e.metrics.ChatMessageSent()

	// The cached history page is stale the moment a new message lands.
	e.historyCache.Delete(historyCacheKey)

	go e.persistChat(snapshot.StreamID, out)

	if err := e.publisher.PublishChatMessage(ctx, snapshot.StreamID, out); err != nil {
		e.logger.Warnw("failed to publish chat event", "error", err)
	}
}

func (e *eventService) PostLike(ctx context.Context, identity domain.Identity) error {
	count, likedBy, err := e.state.ToggleLike(identity)
	if err != nil {
		return err
	}

	e.metrics.LikeCountChanged(count)
	e.registry.BroadcastToAll(domain.NewLikeUpdate(count, likedBy))

	snapshot := e.state.Snapshot()
	go e.persistLikeState(snapshot.StreamID, count, likedBy)

	if err := e.publisher.PublishLikeUpdated(ctx, snapshot.StreamID, count); err != nil {
		e.logger.Warnw("failed to publish like event", "error", err)
	}
	return nil
}

// Bootstrap replays current state to a fresh connection: the stream
// snapshot first, then recent chat history. Ordering matters, clients
// render the player before the transcript.
func (e *eventService) Bootstrap(ctx context.Context, handle *domain.ConnectionHandle) {
	if !e.state.IsActive() {
		e.sendHistory(ctx, handle)
		return
	}

	snapshot := e.state.Snapshot()
	if err := handle.Transport.WriteJSON(domain.NewStreamStartedMessage(snapshot)); err != nil {
		e.logger.Debugw("bootstrap snapshot send failed", "connection_id", handle.ID, "error", err)
		return
	}

	e.sendHistory(ctx, handle)
}

func (e *eventService) sendHistory(ctx context.Context, handle *domain.ConnectionHandle) {
	messages, err := e.recentHistory(ctx)
	if err != nil {
		e.logger.Warnw("failed to load chat history for bootstrap",
			"connection_id", handle.ID, "error", err)
		e.metrics.PersistenceFailure()
		messages = nil
	}

	if err := handle.Transport.WriteJSON(domain.NewChatHistoryMessage(messages)); err != nil {
		e.logger.Debugw("bootstrap history send failed", "connection_id", handle.ID, "error", err)
	}
}

// recentHistory serves the shared history page through a short-TTL cache so
// a reconnect storm does not translate into a store read per connection.
func (e *eventService) recentHistory(ctx context.Context) ([]domain.ChatMessage, error) {
	snapshot := e.state.Snapshot()

	value, err := e.historyCache.GetOrSet(ctx, historyCacheKey, func(ctx context.Context) (interface{}, error) {
		return e.store.RecentChat(ctx, snapshot.StreamID, e.cfg.HistoryLimit)
	})
	if err != nil {
		return nil, err
	}

	messages, _ := value.([]domain.ChatMessage)
	return messages, nil
}

func (e *eventService) ViewerCountChanged(ctx context.Context) {
	count := e.registry.ViewerCount()
	e.state.SetViewerCount(count)
	e.metrics.SetViewerCount(count)
	e.registry.BroadcastToAll(domain.NewViewerCountUpdate(count))
}

func (e *eventService) persistChat(streamID domain.StreamID, msg domain.ChatMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PersistTimeout)
	defer cancel()

	err := e.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, e.retryCfg, func() error {
			return e.store.AppendChat(ctx, streamID, msg)
		})
	})
	if err != nil {
		e.metrics.PersistenceFailure()
		e.logger.Warnw("chat message persistence failed",
			"stream_id", streamID, "message_id", msg.ID, "error", err)
	}
}

func (e *eventService) persistLikeState(streamID domain.StreamID, count int, likedBy []domain.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PersistTimeout)
	defer cancel()

	err := e.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, e.retryCfg, func() error {
			return e.store.PersistLikeState(ctx, streamID, count, likedBy)
		})
	})
	if err != nil {
		e.metrics.PersistenceFailure()
		e.logger.Warnw("like state persistence failed", "stream_id", streamID, "error", err)
	}
}

func (e *eventService) sendError(handle *domain.ConnectionHandle, message string) {
	if handle.Transport == nil || !handle.Transport.IsOpen() {
		return
	}
	if err := handle.Transport.WriteJSON(domain.NewErrorMessage(message)); err != nil {
		e.logger.Debugw("error reply send failed", "connection_id", handle.ID, "error", err)
	}
}
