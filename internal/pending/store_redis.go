package pending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tutorbase/internal/sentinel"
	"tutorbase/pkg/domain"
)

const keyPrefix = "pending:"

// RedisStore persists pending submissions in Redis with a per-entry TTL.
// The TTL on the key itself is a backstop; the lazy expiry check on read is
// authoritative, so a clock-skewed Redis never resurrects a stale entry.
type RedisStore struct {
	client         redis.Cmdable
	ttl            time.Duration
	now            func() time.Time
	expiredCounter prometheus.Counter
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures the RedisStore.
type RedisOption func(*RedisStore)

// WithClock injects a clock, making TTL logic testable without real delays.
func WithClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		s.now = now
	}
}

// WithTTL overrides the default 24h submission TTL.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithExpiredCounter counts lazily-expired entries for observability.
func WithExpiredCounter(c prometheus.Counter) RedisOption {
	return func(s *RedisStore) {
		s.expiredCounter = c
	}
}

// NewRedis constructs a Redis-backed pending-submission store.
func NewRedis(client redis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Save(ctx context.Context, clientID string, role domain.Role, formData map[string]string) error {
	key, err := s.entryKey(clientID, role)
	if err != nil {
		return err
	}

	raw, err := encodeSubmission(role, formData, s.now())
	if err != nil {
		return fmt.Errorf("encode pending entry: %w", err)
	}

	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save pending entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, clientID string, role domain.Role) (*Submission, error) {
	key, err := s.entryKey(clientID, role)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("pending entry absent: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("read pending entry: %w", err)
	}

	sub, err := decodeSubmission(raw)
	if err != nil {
		// Corrupt entries are removed so they don't fail every future read.
		_ = s.client.Del(ctx, key).Err()
		return nil, err
	}

	if s.now().Sub(sub.CreatedAt) > s.ttl {
		_ = s.client.Del(ctx, key).Err()
		if s.expiredCounter != nil {
			s.expiredCounter.Inc()
		}
		return nil, fmt.Errorf("pending entry expired: %w", sentinel.ErrNotFound)
	}

	return sub, nil
}

func (s *RedisStore) Clear(ctx context.Context, clientID string, role domain.Role) error {
	key, err := s.entryKey(clientID, role)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear pending entry: %w", err)
	}
	return nil
}

func (s *RedisStore) MarkVerified(ctx context.Context, clientID string, userID domain.UserID) error {
	flagKey := keyPrefix + clientID + ":" + keyVerifiedFlag
	userKey := keyPrefix + clientID + ":" + keyVerifiedUser

	if err := s.client.Set(ctx, flagKey, "true", s.ttl).Err(); err != nil {
		return fmt.Errorf("mark verified flag: %w", err)
	}
	if err := s.client.Set(ctx, userKey, userID.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("mark verified user: %w", err)
	}
	return nil
}

func (s *RedisStore) Verified(ctx context.Context, clientID string) (domain.UserID, bool, error) {
	userKey := keyPrefix + clientID + ":" + keyVerifiedUser

	raw, err := s.client.Get(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.UserID{}, false, nil
		}
		return domain.UserID{}, false, fmt.Errorf("read verified marker: %w", err)
	}

	userID, err := domain.ParseUserID(raw)
	if err != nil {
		// A malformed marker is useless; drop it.
		_ = s.client.Del(ctx, userKey).Err()
		return domain.UserID{}, false, nil
	}
	return userID, true, nil
}

func (s *RedisStore) entryKey(clientID string, role domain.Role) (string, error) {
	rk, err := roleKey(role)
	if err != nil {
		return "", err
	}
	return keyPrefix + clientID + ":" + rk, nil
}
