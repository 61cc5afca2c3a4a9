// Package webhooks provides the Redis-backed webhook delivery queue. Rules
// enqueue deliveries; a separate consumer owns HTTP delivery and retries.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const DefaultQueue = "taskloom:webhook:deliveries"

// Delivery is one queued webhook delivery envelope.
type Delivery struct {
	ID         string         `json:"id"`
	WebhookID  string         `json:"webhook_id"`
	EventType  string         `json:"event_type"`
	Payload    map[string]any `json:"payload"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// Config holds the Redis connection settings for the delivery queue.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Dispatcher pushes webhook deliveries onto a Redis list. It implements
// protocol.WebhookDispatcher.
type Dispatcher struct {
	client redis.UniversalClient
	queue  string
	logger *slog.Logger
}

// NewDispatcher connects to Redis and returns a dispatcher.
func NewDispatcher(ctx context.Context, config Config, logger *slog.Logger) (*Dispatcher, error) {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	if config.Queue == "" {
		config.Queue = DefaultQueue
	}

	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Dispatcher{
		client: client,
		queue:  config.Queue,
		logger: logger.With("module", "webhook_dispatcher", "queue", config.Queue),
	}, nil
}

// Enqueue pushes one delivery. The consumer owns delivery mechanics; enqueue
// succeeds as soon as the envelope is on the list.
func (d *Dispatcher) Enqueue(ctx context.Context, webhookID, eventType string, payload map[string]any) error {
	delivery := Delivery{
		ID:         uuid.New().String(),
		WebhookID:  webhookID,
		EventType:  eventType,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook delivery: %w", err)
	}

	err = d.client.RPush(ctx, d.queue, data).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue webhook delivery: %w", err)
	}

	d.logger.InfoContext(ctx, "Webhook delivery enqueued",
		"delivery_id", delivery.ID, "webhook_id", webhookID, "event_type", eventType)

	return nil
}

func (d *Dispatcher) Close() error {
	return d.client.Close()
}
