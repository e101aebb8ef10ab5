// Package notify publishes node status transitions over Redis pub/sub so
// clients can observe enrichment progress without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const channel = "tapestry:node-status"

// StatusEvent is the message published on every enrichment status transition.
type StatusEvent struct {
	CanvasID string `json:"canvasId"`
	NodeID   string `json:"nodeId"`
	NodeType string `json:"nodeType"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// RedisNotifier publishes status events to a single Redis channel.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier connects to Redis and verifies the connection.
func NewRedisNotifier(redisURL string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisNotifier{client: client}, nil
}

// NewRedisNotifierWithClient creates a notifier from an existing client.
func NewRedisNotifierWithClient(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// PublishStatus sends the event to the status channel.
func (n *RedisNotifier) PublishStatus(ctx context.Context, event StatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	return nil
}

// Channel returns the pub/sub channel name, for subscribers and tests.
func Channel() string {
	return channel
}

// Ping checks if Redis is reachable.
func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
