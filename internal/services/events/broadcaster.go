package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeStoryStarted    EventType = "story.started"
	EventTypeChoicePresented EventType = "story.choice_presented"
	EventTypeChoiceResolved  EventType = "story.choice_resolved"
	EventTypeClimax          EventType = "story.climax"
	EventTypeStoryCompleted  EventType = "story.completed"
	EventTypeMediaReady      EventType = "media.ready"
	EventTypeMediaFailed     EventType = "media.failed"
)

// Event represents a generic event structure
type Event struct {
	Type        EventType      `json:"type"`
	AdventureID string         `json:"adventure_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Publisher sends story events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, adventureID uuid.UUID, eventType EventType, data map[string]any) error
}

// Channel returns the pub/sub channel for an adventure.
func Channel(adventureID string) string {
	return fmt.Sprintf("story-events:%s", adventureID)
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Publish sends an event on the adventure's channel.
func (b *Broadcaster) Publish(ctx context.Context, adventureID uuid.UUID, eventType EventType, data map[string]any) error {
	event := Event{
		Type:        eventType,
		AdventureID: adventureID.String(),
		Data:        data,
		Timestamp:   time.Now().UTC(),
	}
	channel := Channel(event.AdventureID)

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", eventType)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", eventType,
	)

	return nil
}

// Subscribe opens a subscription to an adventure's channel. The caller
// closes the returned PubSub.
func (b *Broadcaster) Subscribe(ctx context.Context, adventureID string) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(adventureID))
}

// Nop discards every event. It stands in when no Redis is configured.
type Nop struct{}

func (Nop) Publish(context.Context, uuid.UUID, EventType, map[string]any) error {
	return nil
}
