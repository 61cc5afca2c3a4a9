package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DeliveryHandler processes one dequeued delivery. Returning an error logs
// the failure; the envelope is not re-queued here, retry policy belongs to
// the handler.
type DeliveryHandler func(ctx context.Context, delivery Delivery) error

// Consumer pops webhook deliveries off the Redis list and hands them to a
// handler.
type Consumer struct {
	client  redis.UniversalClient
	queue   string
	handler DeliveryHandler
	logger  *slog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewConsumer connects to Redis and returns a consumer for the queue.
func NewConsumer(ctx context.Context, config Config, handler DeliveryHandler, logger *slog.Logger) (*Consumer, error) {
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

	return &Consumer{
		client:  client,
		queue:   config.Queue,
		handler: handler,
		logger:  logger.With("module", "webhook_consumer", "queue", config.Queue),
		stopCh:  make(chan struct{}),
	}, nil
}

// Start launches the consume loop.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.InfoContext(ctx, "Starting webhook delivery consumer")

	c.wg.Add(1)

	go c.consume(ctx)
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "Webhook consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, stopping webhook consumer")

			return
		default:
			err := c.processDelivery(ctx)
			if err != nil {
				c.logger.ErrorContext(ctx, "Error processing webhook delivery", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *Consumer) processDelivery(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, 1*time.Second, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop webhook delivery: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var delivery Delivery

	err = json.Unmarshal([]byte(result[1]), &delivery)
	if err != nil {
		return fmt.Errorf("failed to unmarshal webhook delivery: %w", err)
	}

	err = c.handler(ctx, delivery)
	if err != nil {
		c.logger.ErrorContext(ctx, "Webhook delivery handler failed",
			"delivery_id", delivery.ID, "webhook_id", delivery.WebhookID, "error", err)
	}

	return nil
}

// Stop halts the consume loop and closes the connection.
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Stopping webhook consumer")

	close(c.stopCh)
	c.wg.Wait()

	return c.client.Close()
}
