package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/shared"
	"github.com/trafficsim/backend/internal/infrastructure/config"
)

// defaultChannelPrefix is used when no prefix is configured
const defaultChannelPrefix = "trafficsim:runs"

// publishTimeout bounds a single PUBLISH so a wedged Redis cannot stall
// the event bus dispatcher.
const publishTimeout = 2 * time.Second

// RedisPublisher forwards run progress events to Redis pub/sub, one
// channel per run (<prefix>:<run_id>), so external consumers can follow
// runs without holding an SSE connection to this process.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisPublisher creates a publisher with its own Redis client and
// verifies the connection.
func NewRedisPublisher(cfg *config.RedisConfig, prefix string, logger *zap.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPublisherWithClient(client, prefix, logger), nil
}

// NewRedisPublisherWithClient creates a publisher over an existing
// Redis client. This is useful for testing or when sharing a client
// across components.
func NewRedisPublisherWithClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// EventTypes subscribes the publisher to every event on the bus
func (p *RedisPublisher) EventTypes() []string { return nil }

// Handle publishes one event to its run's channel
func (p *RedisPublisher) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	channel := p.channelFor(event.AggregateID())
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}

	p.logger.Debug("progress event published",
		zap.String("channel", channel),
		zap.String("event_type", event.EventType()),
	)
	return nil
}

// Close closes the Redis client
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) channelFor(runID uuid.UUID) string {
	return p.prefix + ":" + runID.String()
}

// Ensure RedisPublisher implements EventHandler
var _ shared.EventHandler = (*RedisPublisher)(nil)
