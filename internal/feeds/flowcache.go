package feeds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/flowrank/flowrank/internal/models"
)

const flowKeyPrefix = "flow:"

// FlowCache serves the latest raw signal snapshot per instrument. The
// ingestion layer writes it; this core only reads. A miss is a normal
// condition, not an error.
type FlowCache interface {
	Get(ctx context.Context, instrument string) (models.RawSignalRecord, bool, error)
	Put(ctx context.Context, rec models.RawSignalRecord, ttl time.Duration) error
}

// MemoryFlowCache is the in-process FlowCache used for scans and tests.
type MemoryFlowCache struct {
	mu sync.RWMutex
	m  map[string]flowEntry
}

type flowEntry struct {
	rec models.RawSignalRecord
	exp time.Time
}

func NewMemoryFlowCache() *MemoryFlowCache {
	return &MemoryFlowCache{m: make(map[string]flowEntry)}
}

func (c *MemoryFlowCache) Get(_ context.Context, instrument string) (models.RawSignalRecord, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[instrument]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return models.RawSignalRecord{}, false, nil
	}
	return e.rec, true, nil
}

func (c *MemoryFlowCache) Put(_ context.Context, rec models.RawSignalRecord, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := flowEntry{rec: rec}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[rec.Instrument] = e
	return nil
}

// RedisFlowCache is the shared FlowCache backing a multi-process deploy,
// keyed "flow:<instrument>" with JSON values.
type RedisFlowCache struct {
	client redis.Cmdable
}

func NewRedisFlowCache(client redis.Cmdable) *RedisFlowCache {
	return &RedisFlowCache{client: client}
}

func (c *RedisFlowCache) Get(ctx context.Context, instrument string) (models.RawSignalRecord, bool, error) {
	raw, err := c.client.Get(ctx, flowKeyPrefix+instrument).Bytes()
	if err == redis.Nil {
		return models.RawSignalRecord{}, false, nil
	}
	if err != nil {
		return models.RawSignalRecord{}, false, err
	}
	var rec models.RawSignalRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.RawSignalRecord{}, false, err
	}
	return rec, true, nil
}

func (c *RedisFlowCache) Put(ctx context.Context, rec models.RawSignalRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flowKeyPrefix+rec.Instrument, raw, ttl).Err()
}
