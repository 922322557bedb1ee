package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventHandler processes one decoded webhook event. A non-nil error leaves
// the message pending so it is redelivered.
type EventHandler func(context.Context, WebhookEvent) error

const (
	readBatch = 10
	readBlock = 5 * time.Second
)

// WebhookConsumer reads Strava webhook events from the webhook stream as a
// member of the refreshers group.
type WebhookConsumer struct {
	rdb      *redis.Client
	group    string
	name     string
	retryGap backoff.BackOff
}

// NewWebhookConsumer connects to Redis and makes sure the group exists.
func NewWebhookConsumer(redisURL, name string) (*WebhookConsumer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	// Must outlive the XREADGROUP block or idle reads surface as i/o timeouts.
	opts.ReadTimeout = 2 * readBlock

	rdb := redis.NewClient(opts)
	if err := ensureGroup(context.Background(), rdb, StreamStravaWebhooks, GroupRefreshers); err != nil {
		rdb.Close()
		return nil, err
	}

	gap := backoff.NewExponentialBackOff()
	gap.InitialInterval = 500 * time.Millisecond
	gap.MaxInterval = 30 * time.Second
	gap.MaxElapsedTime = 0

	return &WebhookConsumer{rdb: rdb, group: GroupRefreshers, name: name, retryGap: gap}, nil
}

func ensureGroup(ctx context.Context, rdb *redis.Client, stream, group string) error {
	err := rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Consume blocks, feeding events to handler until ctx is cancelled.
func (c *WebhookConsumer) Consume(ctx context.Context, handler EventHandler) error {
	for ctx.Err() == nil {
		messages, err := c.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			wait := c.retryGap.NextBackOff()
			slog.Error("Failed to read webhook stream", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}
		c.retryGap.Reset()

		for _, msg := range messages {
			c.process(ctx, msg, handler)
		}
	}
	return ctx.Err()
}

// next returns the next batch of undelivered messages; an idle block yields
// an empty batch.
func (c *WebhookConsumer) next(ctx context.Context) ([]redis.XMessage, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{StreamStravaWebhooks, ">"},
		Count:    readBatch,
		Block:    readBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []redis.XMessage
	for _, s := range res {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (c *WebhookConsumer) process(ctx context.Context, msg redis.XMessage, handler EventHandler) {
	var event WebhookEvent
	if err := decodePayload(msg.Values, &event); err != nil {
		slog.Error("Dropping malformed webhook message", "error", err, "message_id", msg.ID)
		c.ack(ctx, msg.ID)
		return
	}

	if err := handler(ctx, event); err != nil {
		slog.Error("Webhook handler failed", "error", err, "owner_id", event.OwnerID, "message_id", msg.ID)
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *WebhookConsumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, StreamStravaWebhooks, c.group, id).Err(); err != nil {
		slog.Error("Failed to ACK message", "error", err, "message_id", id)
	}
}

// Close releases the Redis connection.
func (c *WebhookConsumer) Close() error {
	return c.rdb.Close()
}

// StartWebhookConsumer runs a consumer in the background and returns a
// function that stops it.
func StartWebhookConsumer(redisURL string, handler EventHandler) (stop func(), err error) {
	consumer, err := NewWebhookConsumer(redisURL, "laddr-"+uuid.NewString()[:8])
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Webhook consumer stopped with error", "error", err)
		}
	}()

	slog.Info("Webhook consumer started", "consumer", consumer.name)
	return func() {
		cancel()
		<-done
		consumer.Close()
	}, nil
}

// decodePayload unmarshals the JSON "payload" field of a stream message,
// rejecting schema versions this build does not understand.
func decodePayload(values map[string]interface{}, out interface{}) error {
	if v, ok := values["schema_version"].(string); ok && v != SchemaVersionV1 {
		return fmt.Errorf("unsupported schema version %q", v)
	}
	payload, ok := values["payload"].(string)
	if !ok {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
