package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"livecast/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType discriminates platform bus events.
type EventType string

const (
	EventStreamStarted EventType = "stream.started"
	EventStreamStopped EventType = "stream.stopped"
	EventChatMessage   EventType = "chat.message"
	EventLikeUpdated   EventType = "like.updated"
)

// Event is the envelope carried on the platform bus. Back-office modules
// (analytics, moderation, notifications) consume it without holding a live
// connection to this node.
type Event struct {
	Type       EventType       `json:"type"`
	InstanceID string          `json:"instance_id"`
	Timestamp  time.Time       `json:"timestamp"`
	StreamID   domain.StreamID `json:"stream_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// EventBus publishes coordination events over a Redis channel and implements
// ports.EventPublisher.
type EventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
	channels   []string
}

func NewEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
		channels:   []string{"livecast:events"},
	}
}

func (eb *EventBus) publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channels[0], data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"stream_id", event.StreamID,
	)
	return nil
}

func (eb *EventBus) PublishStreamStarted(ctx context.Context, state domain.StreamState) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"stream_id": state.StreamID,
		"title":     state.Title,
		"quality":   state.Quality,
		"start_ms":  state.StartTime.UnixMilli(),
	})

	return eb.publish(ctx, &Event{
		Type:     EventStreamStarted,
		StreamID: state.StreamID,
		Payload:  payload,
	})
}

func (eb *EventBus) PublishStreamStopped(ctx context.Context, streamID domain.StreamID) error {
	return eb.publish(ctx, &Event{
		Type:     EventStreamStopped,
		StreamID: streamID,
	})
}

func (eb *EventBus) PublishChatMessage(ctx context.Context, streamID domain.StreamID, msg domain.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	return eb.publish(ctx, &Event{
		Type:     EventChatMessage,
		StreamID: streamID,
		Payload:  payload,
	})
}

func (eb *EventBus) PublishLikeUpdated(ctx context.Context, streamID domain.StreamID, likeCount int) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"like_count": likeCount,
	})

	return eb.publish(ctx, &Event{
		Type:     EventLikeUpdated,
		StreamID: streamID,
		Payload:  payload,
	})
}

// Subscribe blocks consuming bus events until ctx is cancelled. Events
// published by this instance are skipped.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	if eb.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	eb.pubsub = eb.client.Subscribe(ctx, eb.channels...)
	defer eb.pubsub.Close()

	ch := eb.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event", "error", err)
				continue
			}
			if event.InstanceID == eb.instanceID {
				continue
			}
			if err := handler(&event); err != nil {
				eb.logger.Warnw("error handling event", "type", event.Type, "error", err)
			}
		}
	}
}

func (eb *EventBus) Close() error {
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}

// NoopPublisher satisfies ports.EventPublisher when no bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStreamStarted(context.Context, domain.StreamState) error { return nil }
func (NoopPublisher) PublishStreamStopped(context.Context, domain.StreamID) error    { return nil }
func (NoopPublisher) PublishChatMessage(context.Context, domain.StreamID, domain.ChatMessage) error {
	return nil
}
func (NoopPublisher) PublishLikeUpdated(context.Context, domain.StreamID, int) error { return nil }
