// Package ratelimit bounds how often a client may hit the account endpoints.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var ErrUnavailable = errors.New("ratelimit: backend unavailable")

// Rule is a fixed budget of Limit requests per Window for one key.
type Rule struct {
	Name    string
	Limit   int
	Window  time.Duration
	Event   string
	Message string
}

var (
	RegisterRule = Rule{
		Name:    "register",
		Limit:   5,
		Window:  time.Hour,
		Event:   "RATE_LIMIT_EXCEEDED",
		Message: "Too many accounts created from this IP, try later.",
	}
	AuthRule = Rule{
		Name:    "auth",
		Limit:   5,
		Window:  15 * time.Minute,
		Event:   "AUTH_RATE_LIMIT_EXCEEDED",
		Message: "Too many requests, please slow down.",
	}
)

type Limiter interface {
	Allow(ctx context.Context, rule Rule, key string) (bool, error)
}

// RedisLimiter counts requests in a fixed window shared by every instance.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	return &RedisLimiter{redis: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, rule Rule, key string) (bool, error) {
	k := l.prefix + ":" + rule.Name + ":" + key
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, rule.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return count <= int64(rule.Limit), nil
}

// maxIdleKeys triggers a sweep of idle buckets in MemoryLimiter.
const maxIdleKeys = 10000

type bucket struct {
	lim    *rate.Limiter
	last   time.Time
	window time.Duration
}

// MemoryLimiter is a per-process token bucket limiter, used when no redis
// is configured. A bucket holds Limit tokens and regains one per Window, so
// no Window-long interval ever admits more than Limit requests.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

func (l *MemoryLimiter) Allow(ctx context.Context, rule Rule, key string) (bool, error) {
	now := l.now()
	k := rule.Name + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[k]
	if !ok {
		if len(l.buckets) >= maxIdleKeys {
			l.sweep(now)
		}
		b = &bucket{lim: rate.NewLimiter(rate.Every(rule.Window), rule.Limit), window: rule.Window}
		l.buckets[k] = b
	}
	b.last = now
	return b.lim.AllowN(now, 1), nil
}

// sweep drops buckets that have been idle long enough to be full again.
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.last) > b.window {
			delete(l.buckets, k)
		}
	}
}
