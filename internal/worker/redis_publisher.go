package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/service"
)

// RedisPublisher mirrors queue status and alerts into Redis: the latest status
// is cached with a TTL and published on a per-queue channel, alerts are kept
// in a capped list per queue.
type RedisPublisher struct {
	client    *redis.Client
	prefix    string
	statusTTL time.Duration
	alertCap  int64
}

// NewRedisPublisher builds the publisher. A nil client disables it.
func NewRedisPublisher(client *redis.Client, cfg config.RedisConfig, alertCap int) *RedisPublisher {
	if client == nil {
		return nil
	}
	if alertCap <= 0 {
		alertCap = 5
	}
	return &RedisPublisher{
		client:    client,
		prefix:    cfg.ChannelPrefix,
		statusTTL: time.Duration(cfg.StatusTTLSec) * time.Second,
		alertCap:  int64(alertCap),
	}
}

// StatusKey is the cache key holding a queue's last status.
func StatusKey(prefix, queueID string) string {
	return fmt.Sprintf("%s:queue:%s:status", prefix, queueID)
}

// StatusChannel is the pub/sub channel carrying a queue's status updates.
func StatusChannel(prefix, queueID string) string {
	return fmt.Sprintf("%s:queue:%s", prefix, queueID)
}

// AlertListKey is the capped list mirroring a queue's alert buffer.
func AlertListKey(prefix, queueID string) string {
	return fmt.Sprintf("%s:alerts:%s", prefix, queueID)
}

// EventChannel carries every forwarded engine event.
func EventChannel(prefix string) string {
	return prefix + ":events"
}

// PublishStatus caches and publishes a refreshed status.
func (p *RedisPublisher) PublishStatus(ctx context.Context, status service.QueueStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return err
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, StatusKey(p.prefix, status.QueueID), body, p.statusTTL)
		pipe.Publish(ctx, StatusChannel(p.prefix, status.QueueID), body)
		return nil
	})
	return err
}

// PublishEvent publishes an engine event on the shared channel.
func (p *RedisPublisher) PublishEvent(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, EventChannel(p.prefix), body).Err()
}

// PublishAlert pushes raised alerts onto the queue's capped list and
// publishes both raised and cleared alerts on the event channel.
func (p *RedisPublisher) PublishAlert(ctx context.Context, eventType events.EventType, alert domain.Alert) error {
	body, err := json.Marshal(alertEnvelope{Type: eventType, Alert: alert})
	if err != nil {
		return err
	}
	key := AlertListKey(p.prefix, alert.QueueID)
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if eventType == events.EventAlertRaised {
			pipe.LPush(ctx, key, body)
			pipe.LTrim(ctx, key, 0, p.alertCap-1)
		}
		pipe.Publish(ctx, EventChannel(p.prefix), body)
		return nil
	})
	return err
}

type alertEnvelope struct {
	Type  events.EventType `json:"type"`
	Alert domain.Alert     `json:"alert"`
}
