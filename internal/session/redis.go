package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "tripdesk:session:"
	userKeyPrefix    = "tripdesk:user-sessions:"
)

// Observer times store calls. observability.Prom implements it.
type Observer interface {
	ObserveSession(op string, fn func() error) error
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	obs Observer
}

// NewRedisStore keeps sessions under tripdesk:session:<id> with a per-user
// index set so every session of a user can be revoked at once. obs may be nil.
func NewRedisStore(rdb *redis.Client, ttl time.Duration, obs Observer) *RedisStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &RedisStore{rdb: rdb, ttl: ttl, obs: obs}
}

func (s *RedisStore) observe(op string, fn func() error) error {
	if s.obs == nil {
		return fn()
	}
	return s.obs.ObserveSession(op, fn)
}

func (s *RedisStore) Create(ctx context.Context, userID string) (Session, error) {
	id, err := newID()

	if err != nil {
		return Session{}, err
	}

	err = s.observe("create", func() error {
		pipe := s.rdb.TxPipeline()
		pipe.Set(ctx, sessionKeyPrefix+id, userID, s.ttl)
		pipe.SAdd(ctx, userKeyPrefix+userID, id)
		pipe.Expire(ctx, userKeyPrefix+userID, s.ttl)

		_, execErr := pipe.Exec(ctx)
		return execErr
	})

	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	return Session{ID: id, UserID: userID, ExpiresAt: time.Now().Add(s.ttl)}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	var userID string

	// GetEx slides the expiry on every hit. The user index is pushed out with
	// it, otherwise a busy session outlives the set DeleteAllForUser reads.
	err := s.observe("get", func() error {
		var getErr error
		userID, getErr = s.rdb.GetEx(ctx, sessionKeyPrefix+id, s.ttl).Result()
		if getErr != nil {
			return getErr
		}

		pipe := s.rdb.TxPipeline()
		pipe.SAdd(ctx, userKeyPrefix+userID, id)
		pipe.Expire(ctx, userKeyPrefix+userID, s.ttl)

		_, execErr := pipe.Exec(ctx)
		return execErr
	})

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	return Session{ID: id, UserID: userID, ExpiresAt: time.Now().Add(s.ttl)}, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var userID string

	err := s.observe("delete", func() error {
		var delErr error
		userID, delErr = s.rdb.GetDel(ctx, sessionKeyPrefix+id).Result()
		return delErr
	})

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("delete session: %w", err)
	}

	return s.rdb.SRem(ctx, userKeyPrefix+userID, id).Err()
}

func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID string) error {
	return s.observe("delete_all", func() error {
		ids, err := s.rdb.SMembers(ctx, userKeyPrefix+userID).Result()

		if err != nil {
			return fmt.Errorf("list user sessions: %w", err)
		}

		keys := make([]string, 0, len(ids)+1)
		for _, id := range ids {
			keys = append(keys, sessionKeyPrefix+id)
		}
		keys = append(keys, userKeyPrefix+userID)

		return s.rdb.Del(ctx, keys...).Err()
	})
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
