package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix    = "nutribot:session:"
	maxAdvanceRetries = 5
)

// RedisStore keeps sessions in Redis so they survive restarts.
// A non-zero TTL expires abandoned sessions.
type RedisStore struct {
	client *redis.Client
	flow   string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisClient parses redisURL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisStore creates a store for the named flow
func NewRedisStore(client *redis.Client, flow string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		flow:   flow,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *RedisStore) key(ownerID int64) string {
	return redisKeyPrefix + r.flow + ":" + strconv.FormatInt(ownerID, 10)
}

// Begin creates a fresh session for ownerID
func (r *RedisStore) Begin(ctx context.Context, ownerID int64) (*Session, error) {
	now := r.now()
	s := &Session{
		OwnerID:   ownerID,
		Flow:      r.flow,
		StartedAt: now,
		UpdatedAt: now,
	}
	data, err := sonic.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(ownerID), data, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return s, nil
}

// Get loads the session for ownerID, or nil when absent or expired
func (r *RedisStore) Get(ctx context.Context, ownerID int64) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decodeSession(data)
}

// Advance records an answer under optimistic locking
func (r *RedisStore) Advance(ctx context.Context, ownerID int64, key string, value any) (*Session, error) {
	redisKey := r.key(ownerID)
	var updated *Session

	advance := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, redisKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNoActiveSession
			}
			return fmt.Errorf("failed to load session: %w", err)
		}
		s, err := decodeSession(data)
		if err != nil {
			return err
		}
		s.Answers.Set(key, value)
		s.StepIndex++
		s.UpdatedAt = r.now()

		payload, err := sonic.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, payload, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = s
		return nil
	}

	for i := 0; i < maxAdvanceRetries; i++ {
		err := r.client.Watch(ctx, advance, redisKey)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNoActiveSession) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to advance session: %w", err)
	}
	return nil, fmt.Errorf("failed to advance session: too many concurrent updates")
}

// End deletes the session for ownerID
func (r *RedisStore) End(ctx context.Context, ownerID int64) error {
	if err := r.client.Del(ctx, r.key(ownerID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func decodeSession(data []byte) (*Session, error) {
	var s Session
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}
