package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher appends messages to Redis Streams.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a new Publisher instance
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewPublisherFromClient(redis.NewClient(opts)), nil
}

// NewPublisherFromClient wraps an existing client.
func NewPublisherFromClient(client *redis.Client) *Publisher {
	return &Publisher{rdb: client}
}

// Publish appends a domain event to the ladder stream, filling in its id and
// timestamp when unset.
func (p *Publisher) Publish(ctx context.Context, event DomainEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return p.add(ctx, StreamLadderEvents, event)
}

// PublishWebhook queues a Strava webhook event for the refresh consumer.
func (p *Publisher) PublishWebhook(ctx context.Context, event WebhookEvent) (string, error) {
	return p.add(ctx, StreamStravaWebhooks, event)
}

func (p *Publisher) add(ctx context.Context, stream string, v interface{}) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 10000,
		Approx: true,
		ID:     "*", // auto-generate ID
		Values: map[string]interface{}{
			"payload":        string(payload),
			"published_at":   time.Now().Unix(),
			"schema_version": SchemaVersionV1,
		},
	})

	if result.Err() != nil {
		return "", fmt.Errorf("failed to publish to stream %s: %w", stream, result.Err())
	}

	return result.Val(), nil
}

// Close closes the Redis client connection
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
