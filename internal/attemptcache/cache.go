// Package attemptcache keeps the detail of the latest quiz attempt per user,
// company and quiz in Redis. Entries expire on their own after the retention
// window; nothing sweeps them.
package attemptcache

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/orgquiz/internal/domain"
)

const DefaultTTL = 48 * time.Hour

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	// TTL defaults to DefaultTTL.
	TTL time.Duration
}

type Cache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func New(c Config) *Cache {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    ttl,
	}
}

// Key is the cache key of the latest attempt detail.
func (c *Cache) Key(userID, companyID, quizID uuid.UUID) string {
	k := fmt.Sprintf("attempt:%s:%s:%s", userID, companyID, quizID)
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Set overwrites the entry of d's user, company and quiz and restarts its TTL.
func (c *Cache) Set(ctx context.Context, d *domain.AttemptDetail) error {
	v, err := sonic.MarshalString(d)
	if err != nil {
		return fmt.Errorf("marshal attempt detail: %w", err)
	}

	if err := c.redis.Set(ctx, c.Key(d.UserID, d.CompanyID, d.QuizID), v, c.ttl).Err(); err != nil {
		return fmt.Errorf("set attempt detail: %w", err)
	}
	return nil
}

// Get returns the cached detail, or false when it is absent or expired.
func (c *Cache) Get(ctx context.Context, userID, companyID, quizID uuid.UUID) (*domain.AttemptDetail, bool, error) {
	v, err := c.redis.Get(ctx, c.Key(userID, companyID, quizID)).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get attempt detail: %w", err)
	}

	var d domain.AttemptDetail
	if err := sonic.UnmarshalString(v, &d); err != nil {
		return nil, false, fmt.Errorf("unmarshal attempt detail: %w", err)
	}
	return &d, true, nil
}
