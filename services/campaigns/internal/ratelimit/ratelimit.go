// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether another request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is a process-local fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count int
	reset time.Time
}

// NewMemory allows limit requests per key per window.
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{limit: limit, window: window, buckets: make(map[string]*bucket), now: time.Now}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.reset) {
		m.sweep(now)
		b = &bucket{reset: now.Add(m.window)}
		m.buckets[key] = b
	}
	if b.count >= m.limit {
		return false, nil
	}
	b.count++
	return true, nil
}

// sweep drops expired buckets. Caller holds mu.
func (m *Memory) sweep(now time.Time) {
	for k, b := range m.buckets {
		if !now.Before(b.reset) {
			delete(m.buckets, k)
		}
	}
}

// Redis shares counters across server instances.
type Redis struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedis allows limit requests per key per window. prefix namespaces the
// counters of one limiter.
func NewRedis(rdb *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: "ratelimit:" + prefix + ":", limit: limit, window: window}
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := r.prefix + key
	n, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := r.rdb.Expire(ctx, k, r.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(r.limit), nil
}

// KeyFunc extracts the rate-limit key from a request. An empty key skips
// limiting for that request.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over the limit with 429. Limiter errors are
// logged and the request is let through.
func Middleware(l Limiter, key KeyFunc, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := l.Allow(r.Context(), k)
			if err != nil {
				log.Printf("ratelimit: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "too many requests, please try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
