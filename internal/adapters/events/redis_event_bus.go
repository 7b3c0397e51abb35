package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/redis"
)

// subscriberBuffer is how many events a slow SSE client may lag before drops
const subscriberBuffer = 64

// sessionFeed fans one redis subscription out to local subscribers
type sessionFeed struct {
	pubsub      *redis.PubSub
	subscribers map[chan *entities.EvaluationEvent]struct{}
}

// RedisEventBus implements the EventBus interface using Redis Pub/Sub
type RedisEventBus struct {
	client *redisclient.Client
	feeds  map[string]*sessionFeed
	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client: client,
		feeds:  make(map[string]*sessionFeed),
		ctx:    ctx,
		cancel: cancel,
	}
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// Publish publishes an event to all subscribers of the channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.EvaluationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Msg("Published evaluation event")
	return nil
}

// Subscribe subscribes to events on a channel until ctx is done
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.EvaluationEvent, error) {
	b.mu.Lock()
	feed, exists := b.feeds[channel]
	if !exists {
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		// wait for the subscription confirmation so early publishes are not lost
		if _, err := pubsub.Receive(ctx); err != nil {
			b.mu.Unlock()
			_ = pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		feed = &sessionFeed{pubsub: pubsub, subscribers: make(map[chan *entities.EvaluationEvent]struct{})}
		b.feeds[channel] = feed
		b.wg.Add(1)
		go b.fanOut(channel, feed)
	}

	events := make(chan *entities.EvaluationEvent, subscriberBuffer)
	feed.subscribers[events] = struct{}{}
	count := len(feed.subscribers)
	b.mu.Unlock()

	log.Info().Str("channel", channel).Int("subscribers", count).Msg("Subscribed to session channel")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(channel, events)
	}()

	return events, nil
}

func (b *RedisEventBus) fanOut(channel string, feed *sessionFeed) {
	defer b.wg.Done()

	messages := feed.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event entities.EvaluationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("Dropping malformed evaluation event")
				continue
			}

			b.mu.Lock()
			for subscriber := range feed.subscribers {
				select {
				case subscriber <- &event:
				default:
					log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("Subscriber buffer full, event dropped")
				}
			}
			b.mu.Unlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, events chan *entities.EvaluationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	feed, exists := b.feeds[channel]
	if !exists {
		return
	}
	if _, ok := feed.subscribers[events]; !ok {
		return
	}

	delete(feed.subscribers, events)
	close(events)

	if len(feed.subscribers) == 0 {
		delete(b.feeds, channel)
		if err := feed.pubsub.Close(); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("Failed to close subscription")
		}
	}
}

// Unsubscribe drops every local subscriber of a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeFeedLocked(channel)
}

func (b *RedisEventBus) closeFeedLocked(channel string) error {
	feed, exists := b.feeds[channel]
	if !exists {
		return nil
	}
	delete(b.feeds, channel)
	for subscriber := range feed.subscribers {
		close(subscriber)
	}
	feed.subscribers = nil
	if err := feed.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	return nil
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	var errs []error
	for channel := range b.feeds {
		if err := b.closeFeedLocked(channel); err != nil {
			errs = append(errs, err)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
	log.Info().Msg("Event bus closed")
	return errors.Join(errs...)
}
