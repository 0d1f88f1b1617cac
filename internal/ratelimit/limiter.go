package ratelimit

import (
	"context"
	"sync"
	"time"

	"alibi/internal/platform/redis"
)

// Limiter is the webhook rate limiter. When a Redis client is configured
// it is the primary store; a circuit breaker tracks consecutive Redis
// errors and trips over to the in-memory bucket store until Redis
// recovers, so a Redis outage degrades rate-limit accuracy rather than
// blocking ingestion.
type Limiter struct {
	redisClient *redis.Client
	fallback    *InMemoryBucketStore
	breaker     *circuitBreaker
}

// New builds a Limiter. redisClient may be nil, in which case every check
// goes straight to the in-memory store.
func New(redisClient *redis.Client) *Limiter {
	return &Limiter{
		redisClient: redisClient,
		fallback:    NewBucketStore(),
		breaker:     newCircuitBreaker(),
	}
}

// Allow checks whether key may consume one unit of limit within window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.redisClient == nil || l.breaker.IsOpen() {
		return l.fallback.Allow(ctx, key, limit, window)
	}

	result, err := l.allowRedis(ctx, key, limit, window)
	if err != nil {
		l.breaker.RecordFailure()
		return l.fallback.Allow(ctx, key, limit, window)
	}
	l.breaker.RecordSuccess()
	return result, nil
}

// allowRedis implements a fixed-window counter via INCR+EXPIRE, the
// simplest correct primitive go-redis exposes for this; sliding-window
// precision is not required for a best-effort ingestion guard.
func (l *Limiter) allowRedis(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	count, err := l.redisClient.Incr(ctx, "ratelimit:"+key).Result()
	if err != nil {
		return nil, err
	}
	if count == 1 {
		if err := l.redisClient.Expire(ctx, "ratelimit:"+key, window).Err(); err != nil {
			return nil, err
		}
	}
	ttl, err := l.redisClient.TTL(ctx, "ratelimit:"+key).Result()
	if err != nil {
		return nil, err
	}
	resetAt := time.Now().Add(ttl)

	if int(count) > limit {
		return &Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt, RetryAfter: int(ttl.Seconds())}, nil
	}
	return &Result{Allowed: true, Limit: limit, Remaining: limit - int(count), ResetAt: resetAt}, nil
}

// circuitBreaker trips to the fallback limiter after a run of consecutive
// Redis failures and resets after a run of consecutive successes.
type circuitBreaker struct {
	mu               sync.Mutex
	open             bool
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{failureThreshold: 5, successThreshold: 3}
}

func (c *circuitBreaker) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *circuitBreaker) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	c.successCount = 0
	if c.failureCount >= c.failureThreshold {
		c.open = true
	}
}

func (c *circuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		c.failureCount = 0
		return
	}
	c.successCount++
	if c.successCount >= c.successThreshold {
		c.open = false
		c.failureCount = 0
		c.successCount = 0
	}
}
