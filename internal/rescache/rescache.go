// Package rescache memoizes point lookups: a bounded in-process LRU in front
// of an optional Redis tier shared between instances.
package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/elevation-index/internal/cache/cellindex"
	"github.com/mohammed-shakir/elevation-index/internal/cache/keys"
	"github.com/mohammed-shakir/elevation-index/internal/cache/redisstore"
	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/core/observability"
	"github.com/mohammed-shakir/elevation-index/internal/logger"
)

const (
	tierL1 = "l1"
	tierL2 = "l2"
)

// ComputeFunc resolves a point on a cache miss.
type ComputeFunc func(ctx context.Context, lat, lon float64) model.CoordinateResult

type Options struct {
	Size int
	// Redis enables the shared tier; Cells lets bbox invalidation reach it.
	Redis     *redisstore.Client
	Cells     cellindex.CellIndex
	TTL       time.Duration
	OpTimeout time.Duration
	Log       *slog.Logger
}

// Cache does not coalesce concurrent misses on one key: each caller
// computes and writes, last write wins.
//
// epoch moves on every purge, generation switch and invalidation. A miss
// keeps its result only if the epoch it started under is still current.
type Cache struct {
	l1        *lru.Cache[string, model.CoordinateResult]
	rdb       *redisstore.Client
	cells     cellindex.CellIndex
	ttl       time.Duration
	opTimeout time.Duration
	gen       atomic.Int64
	log       *slog.Logger

	mu    sync.RWMutex
	epoch uint64
}

func New(opt Options) (*Cache, error) {
	if opt.Size <= 0 {
		return nil, fmt.Errorf("rescache: size must be > 0, got %d", opt.Size)
	}
	l1, err := lru.New[string, model.CoordinateResult](opt.Size)
	if err != nil {
		return nil, fmt.Errorf("rescache: %w", err)
	}
	if opt.Log == nil {
		opt.Log = slog.Default()
	}
	if opt.OpTimeout <= 0 {
		opt.OpTimeout = 250 * time.Millisecond
	}
	return &Cache{
		l1:        l1,
		rdb:       opt.Redis,
		cells:     opt.Cells,
		ttl:       opt.TTL,
		opTimeout: opt.OpTimeout,
		log:       opt.Log.With("component", "rescache"),
	}, nil
}

// GetOrCompute returns the cached result for (lat, lon) or computes and
// stores it. Shared-tier failures degrade to a miss.
func (c *Cache) GetOrCompute(ctx context.Context, lat, lon float64, fn ComputeFunc) model.CoordinateResult {
	c.mu.RLock()
	epoch, gen := c.epoch, c.gen.Load()
	c.mu.RUnlock()

	pk := keys.PointKey(lat, lon)
	if v, ok := c.l1.Get(pk); ok {
		observability.IncCacheHit(tierL1)
		return v
	}
	observability.IncCacheMiss(tierL1)

	if c.rdb != nil {
		if v, ok := c.getShared(ctx, gen, pk); ok {
			observability.IncCacheHit(tierL2)
			c.addIfCurrent(epoch, pk, v)
			return v
		}
		observability.IncCacheMiss(tierL2)
	}

	res := fn(logger.WithCacheOutcome(ctx, "miss"), lat, lon)
	if !c.addIfCurrent(epoch, pk, res) {
		c.log.DebugContext(ctx, "result outdated while computing, not cached", "key", pk)
		return res
	}
	if c.rdb != nil && !res.Failed() {
		// keyed by the generation it was computed under
		c.putShared(ctx, gen, lat, lon, pk, res)
	}
	return res
}

// addIfCurrent stores v unless the cache moved to a new epoch after the
// caller read epoch. Writers bump the epoch under the write lock, so an
// entry either lands before their purge or is dropped here.
func (c *Cache) addIfCurrent(epoch uint64, pk string, v model.CoordinateResult) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.epoch != epoch {
		return false
	}
	c.l1.Add(pk, v)
	return true
}

type sharedEntry struct {
	Key    string                 `json:"k"`
	Result model.CoordinateResult `json:"r"`
}

func (c *Cache) getShared(ctx context.Context, gen int64, pk string) (model.CoordinateResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, ok, err := c.rdb.Get(ctx, keys.Result(gen, pk))
	if err != nil {
		c.log.WarnContext(ctx, "shared cache get failed", "key", pk, "err", err)
		return model.CoordinateResult{}, false
	}
	if !ok {
		return model.CoordinateResult{}, false
	}
	var e sharedEntry
	if err := json.Unmarshal(raw, &e); err != nil || e.Key != pk {
		// undecodable or a hash collision: treat as absent
		return model.CoordinateResult{}, false
	}
	return e.Result, true
}

func (c *Cache) putShared(ctx context.Context, gen int64, lat, lon float64, pk string, res model.CoordinateResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opTimeout)
	defer cancel()

	payload, err := json.Marshal(sharedEntry{Key: pk, Result: res})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keys.Result(gen, pk), payload, c.ttl); err != nil {
		c.log.WarnContext(ctx, "shared cache set failed", "key", pk, "err", err)
		return
	}
	if c.cells != nil {
		if err := c.cells.Add(ctx, gen, lat, lon, pk); err != nil {
			c.log.WarnContext(ctx, "cell index add failed", "key", pk, "err", err)
		}
	}
}

// Purge drops every in-process entry, including results still being
// computed.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.l1.Purge()
}

func (c *Cache) Len() int { return c.l1.Len() }

func (c *Cache) Generation() int64 { return c.gen.Load() }

// SetGeneration switches the shared tier to generation gen. Moving to a
// new generation purges the in-process tier.
func (c *Cache) SetGeneration(gen int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old := c.gen.Swap(gen); old == gen {
		return false
	}
	c.epoch++
	c.l1.Purge()
	return true
}

// LoadGeneration reads the current generation from Redis.
func (c *Cache) LoadGeneration(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	gen, err := c.rdb.Int(ctx, keys.Generation)
	if err != nil {
		return fmt.Errorf("rescache: load generation: %w", err)
	}
	c.SetGeneration(gen)
	return nil
}

// BumpGeneration starts a new generation for every instance sharing the
// Redis tier and returns it.
func BumpGeneration(ctx context.Context, rdb *redisstore.Client) (int64, error) {
	if rdb == nil {
		return 0, errors.New("rescache: no redis client")
	}
	return rdb.Incr(ctx, keys.Generation)
}

func (c *Cache) invalidateLocal(bb model.BBox) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	removed := 0
	for _, pk := range c.l1.Keys() {
		lat, lon, ok := keys.ParsePointKey(pk)
		if ok && bb.Contains(lat, lon) && c.l1.Remove(pk) {
			removed++
		}
	}
	return removed
}

// InvalidateBBox removes the cached results of points inside bb from both
// tiers and returns how many entries were removed.
func (c *Cache) InvalidateBBox(ctx context.Context, bb model.BBox) (int, error) {
	if !bb.Valid() {
		return 0, fmt.Errorf("rescache: invalid bbox %s", bb)
	}
	removed := c.invalidateLocal(bb)

	if c.rdb == nil || c.cells == nil {
		return removed, nil
	}
	gen := c.gen.Load()
	pks, err := c.cells.PointKeys(ctx, gen, bb)
	if err != nil {
		return removed, fmt.Errorf("rescache: %w", err)
	}
	if len(pks) == 0 {
		return removed, nil
	}
	ks := make([]string, len(pks))
	for i, pk := range pks {
		ks[i] = keys.Result(gen, pk)
	}
	if err := c.rdb.Del(ctx, ks...); err != nil {
		return removed, fmt.Errorf("rescache: %w", err)
	}
	return removed + len(ks), nil
}
