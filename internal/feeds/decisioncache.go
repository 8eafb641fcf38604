package feeds

import (
	"context"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DecisionCache holds recent serialized decision artifacts for the HTTP
// surface, so repeated reads of the same instrument do not recompute.
type DecisionCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
}

type memoryDecisions struct {
	mu sync.Mutex
	m  map[string]decisionEntry
}

type decisionEntry struct {
	b   []byte
	exp time.Time
}

// NewDecisionCache returns the in-process decision cache.
func NewDecisionCache() DecisionCache {
	return &memoryDecisions{m: make(map[string]decisionEntry)}
}

func (c *memoryDecisions) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memoryDecisions) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := decisionEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

// Redis adapter, selected when REDIS_ADDR is set.
type redisDecisions struct{ r *redis.Client }

// NewDecisionCacheAuto returns the Redis-backed cache when REDIS_ADDR is
// set and the in-process cache otherwise.
func NewDecisionCacheAuto() DecisionCache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return &redisDecisions{r: redis.NewClient(&redis.Options{Addr: addr})}
	}
	return NewDecisionCache()
}

func (r *redisDecisions) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisDecisions) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = r.r.Set(ctx, key, val, ttl).Err()
}
