// Package notify holds the observers that republish or log processor notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var _ notify.Observer = (*RedisSink)(nil)

// RedisSink publishes every notification to <prefix>:<chain>:<type> and keeps the
// latest state of each chain under <prefix>:<chain>:state.
type RedisSink struct {
	rdb    *redis.Client
	prefix string
	log    *logger.Logger
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(cfg *config.RedisConfig, log *logger.Logger) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisSinkFromClient(rdb, cfg.Prefix, log), nil
}

// NewRedisSinkFromClient wraps an existing client.
func NewRedisSinkFromClient(rdb *redis.Client, prefix string, log *logger.Logger) *RedisSink {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RedisSink{rdb: rdb, prefix: prefix, log: log.WithComponent(common.ComponentNotifier)}
}

func (s *RedisSink) Notify(ctx context.Context, n notify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if n.Type == notify.StateChange {
		if err := s.rdb.Set(ctx, s.stateKey(n.Chain), payload, 0).Err(); err != nil {
			return fmt.Errorf("failed to store state: %w", err)
		}
	}

	if err := s.rdb.Publish(ctx, s.channel(n.Chain, n.Type), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", n.Type, err)
	}

	return nil
}

// LatestState returns the last stored STATE_CHANGE notification of a chain.
func (s *RedisSink) LatestState(ctx context.Context, chain string) (notify.Notification, error) {
	var n notify.Notification

	raw, err := s.rdb.Get(ctx, s.stateKey(chain)).Bytes()
	if err != nil {
		return n, err
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return n, fmt.Errorf("failed to decode state: %w", err)
	}

	return n, nil
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}

func (s *RedisSink) channel(chain string, t notify.EventType) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, chain, t)
}

func (s *RedisSink) stateKey(chain string) string {
	return fmt.Sprintf("%s:%s:state", s.prefix, chain)
}
