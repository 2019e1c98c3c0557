package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var errNotFound = common.ErrorNotFound

// KeyPrefix namespaces session keys in Redis.
const KeyPrefix = "sessao:"

// redisClient is the part of *redis.Client the store uses; tests replace it.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisSession struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore keeps sessions as JSON values whose TTL matches the session.
type RedisStore struct {
	client redisClient
	now    func() time.Time
}

func NewRedisStore(client redisClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// NewRedisClient builds the go-redis client for the configured server.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) Create(ctx context.Context, userID int64, ttl time.Duration) (*models.Session, error) {
	now := s.now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	b, err := json.Marshal(redisSession{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt, CreatedAt: sess.CreatedAt})
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, KeyPrefix+sess.ID, b, ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Find(ctx context.Context, id string) (*models.Session, error) {
	val, err := s.client.Get(ctx, KeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal([]byte(val), &rs); err != nil {
		return nil, fmt.Errorf("redis value: %w", err)
	}

	sess := &models.Session{ID: id, UserID: rs.UserID, ExpiresAt: rs.ExpiresAt, CreatedAt: rs.CreatedAt}
	if sess.Expired(s.now()) {
		return nil, errNotFound
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, KeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
