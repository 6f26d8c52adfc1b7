package audit

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/recira/controller/pkg/util"
)

// Channel is the pub/sub channel audit events are published to.
const Channel = "recira:audit"

// RedisSink publishes audit events to a Redis pub/sub channel for
// external consumers (dashboards, SIEM forwarders). It wraps a Logger
// and never blocks or fails the underlying log write: publish errors are
// logged and swallowed, since audit fan-out is best-effort.
type RedisSink struct {
	inner  Logger
	client *redis.Client
	ctx    context.Context
}

// NewRedisSink wraps inner with a Redis publisher connected to addr.
func NewRedisSink(inner Logger, addr string) *RedisSink {
	return &RedisSink{
		inner: inner,
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		ctx: context.Background(),
	}
}

// Log writes the event to the wrapped logger, then best-effort publishes
// it to Redis.
func (s *RedisSink) Log(event *Event) error {
	if err := s.inner.Log(event); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		util.WithField("resource", event.Resource).Warnf("audit: failed to encode event for redis fan-out: %v", err)
		return nil
	}

	if err := s.client.Publish(s.ctx, Channel, payload).Err(); err != nil {
		util.WithField("resource", event.Resource).Warnf("audit: redis publish failed: %v", err)
	}
	return nil
}

// Query delegates to the wrapped logger.
func (s *RedisSink) Query(filter Filter) ([]*Event, error) {
	return s.inner.Query(filter)
}

// Close closes the Redis client and the wrapped logger.
func (s *RedisSink) Close() error {
	_ = s.client.Close()
	return s.inner.Close()
}
