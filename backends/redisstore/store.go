// Package redisstore implements the authoritative lock store on Redis, for
// deployments where several processes arbitrate the same datastores. Each
// store instance holds locks under its own random owner token, so a lock
// taken by another process is visible here only as a denial.
package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/locks"
)

// releaseScript deletes the lock key only when this instance owns it.
const releaseScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// RedisStore implements the lock store on Redis using SET NX with expiry.
type RedisStore struct {
	client  *redis.Client
	logger  *zap.Logger
	ttl     time.Duration
	ownerID string // Unique identifier for this store instance
}

// NewRedisStore creates a Redis-backed lock store.
func NewRedisStore(redisAddr, redisPassword string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           0, // Default DB
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// Generate unique owner ID for this instance
	ownerBytes := make([]byte, 16)
	if _, err := rand.Read(ownerBytes); err != nil {
		return nil, fmt.Errorf("failed to generate owner ID: %w", err)
	}
	ownerID := hex.EncodeToString(ownerBytes)

	if ttl <= 0 {
		ttl = 30 * time.Second // Lock TTL to prevent deadlocks
	}

	return &RedisStore{
		client:  client,
		logger:  logger,
		ttl:     ttl,
		ownerID: ownerID,
	}, nil
}

func lockKey(ds locks.Datastore) string {
	return fmt.Sprintf("dslockd:lock:%s", ds)
}

func pendingKey(ds locks.Datastore) string {
	return fmt.Sprintf("dslockd:pending:%s", ds)
}

// Lock takes the authoritative lock on ds for this instance.
func (s *RedisStore) Lock(ctx context.Context, ds locks.Datastore) error {
	key := lockKey(ds)

	// SET with NX (only if not exists) and EX (expiration), holding our
	// unique owner token as the value.
	result := s.client.SetNX(ctx, key, s.ownerID, s.ttl)
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to lock datastore %s: %w", ds, err)
	}

	if !result.Val() {
		owner, err := s.client.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("datastore %s is locked by another owner", ds)
		}
		s.logger.Debug("Datastore already locked on backend",
			zap.String("datastore", string(ds)),
			zap.String("owner", owner))
		return fmt.Errorf("datastore %s is locked by owner %s", ds, owner)
	}

	s.logger.Debug("Backend lock acquired",
		zap.String("datastore", string(ds)),
		zap.String("owner", s.ownerID),
		zap.Duration("ttl", s.ttl))
	return nil
}

// Unlock releases the authoritative lock on ds, refusing when the lock is
// owned by another instance or has already expired.
func (s *RedisStore) Unlock(ctx context.Context, ds locks.Datastore) error {
	key := lockKey(ds)

	// Lua script to ensure atomicity (only delete if we own the lock)
	result := s.client.Eval(ctx, releaseScript, []string{key}, s.ownerID)
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to unlock datastore %s: %w", ds, err)
	}

	deleted, ok := result.Val().(int64)
	if !ok || deleted != 1 {
		s.logger.Debug("Backend lock not owned or already released",
			zap.String("datastore", string(ds)),
			zap.String("owner", s.ownerID))
		return fmt.Errorf("lock on datastore %s is not owned by this instance", ds)
	}

	s.logger.Debug("Backend lock released",
		zap.String("datastore", string(ds)),
		zap.String("owner", s.ownerID))
	return nil
}

// DiscardChanges deletes the staged-changes key for ds. Only the candidate
// datastore stages changes; discarding the others is a no-op either way.
func (s *RedisStore) DiscardChanges(ctx context.Context, ds locks.Datastore) error {
	if err := s.client.Del(ctx, pendingKey(ds)).Err(); err != nil {
		return fmt.Errorf("failed to discard pending changes for datastore %s: %w", ds, err)
	}
	return nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
