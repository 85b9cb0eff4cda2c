package impersonationstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dalemusser/camphub/internal/domain/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps grants as JSON values whose key TTL matches the grant expiry.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedis(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "camphub"
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) key(grantID string) string {
	return s.prefix + ":impersonation_grant:" + grantID
}

func (s *RedisStore) Save(ctx context.Context, g models.ImpersonationGrant) error {
	ttl := g.ExpiresAt.Sub(s.now())
	if g.GrantID == "" || ttl <= 0 {
		return errBadGrant
	}
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.key(g.GrantID), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

func (s *RedisStore) Active(ctx context.Context, grantID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(grantID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Consume(ctx context.Context, grantID string) (models.ImpersonationGrant, error) {
	var g models.ImpersonationGrant
	value, err := s.rdb.GetDel(ctx, s.key(grantID)).Result()
	if errors.Is(err, redis.Nil) {
		return g, ErrNotFound
	}
	if err != nil {
		return g, err
	}
	if err := json.Unmarshal([]byte(value), &g); err != nil {
		return g, err
	}
	return g, nil
}

// CleanupExpired is a no-op: Redis expires keys itself.
func (s *RedisStore) CleanupExpired(context.Context) (int64, error) {
	return 0, nil
}
