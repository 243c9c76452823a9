// Package cache holds the reminder ledgers: RedisLedger for multi-instance
// deployments and MemoryLedger for a single process.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
)

const defaultReminderTTL = 48 * time.Hour

// RedisLedger records sent reminders in Redis so every instance of the
// server sees the same ledger.
type RedisLedger struct {
	redis *redis.Client
	ttl   time.Duration
	log   *logrus.Logger
}

// NewRedisLedger connects to config.RedisURL and verifies the connection.
func NewRedisLedger(config domain.CacheConfig, logger *logrus.Logger) (*RedisLedger, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLedger{redis: client, ttl: ttlOrDefault(config.ReminderTTL), log: logger}, nil
}

// MarkSent sets the reminder key only if absent. The key expires after the
// ledger TTL so old days do not accumulate.
func (l *RedisLedger) MarkSent(ctx context.Context, assessmentID string, day time.Time) (bool, error) {
	key := reminderKey(assessmentID, day)
	set, err := l.redis.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record reminder %s: %w", key, err)
	}

	l.log.WithFields(logrus.Fields{
		"key":   key,
		"first": set,
	}).Debug("Reminder ledger checked")
	return set, nil
}

// Forget deletes the reminder key.
func (l *RedisLedger) Forget(ctx context.Context, assessmentID string, day time.Time) error {
	key := reminderKey(assessmentID, day)
	if err := l.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to forget reminder %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (l *RedisLedger) Close() error {
	return l.redis.Close()
}

func reminderKey(assessmentID string, day time.Time) string {
	return fmt.Sprintf("reminder:%s:%s", assessmentID, day.Format(domain.DateLayout))
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultReminderTTL
	}
	return ttl
}
