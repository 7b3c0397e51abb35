package providers

import (
	"context"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.EvaluationEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.EvaluationEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelSessionPrefix is the prefix for session-scoped channels
const EventChannelSessionPrefix = "session:"

// GetSessionChannel returns the channel name for a clinical session
func GetSessionChannel(sessionID string) string {
	return EventChannelSessionPrefix + sessionID
}
