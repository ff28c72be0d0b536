// Package lookup answers elevation queries: index lookup, then a sample of
// the best-resolution raster covering the point.
package lookup

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/core/observability"
	"github.com/mohammed-shakir/elevation-index/internal/index"
	"github.com/mohammed-shakir/elevation-index/internal/rescache"
)

// Sampler reads one point from the raster at path.
type Sampler interface {
	Sample(ctx context.Context, path string, lat, lon float64) model.CoordinateResult
}

type Orchestrator struct {
	store   index.Store
	sampler Sampler
	log     *slog.Logger
}

func NewOrchestrator(store index.Store, sampler Sampler, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{store: store, sampler: sampler, log: log.With("component", "lookup")}
}

// Resolve never fails. A store error and an uncovered point produce the same
// result; only the log tells them apart.
func (o *Orchestrator) Resolve(ctx context.Context, lat, lon float64) model.CoordinateResult {
	recs, err := o.store.FindContaining(ctx, model.LatLon{Lat: lat, Lon: lon}.Point())
	if err != nil {
		observability.IncLookup("store_error")
		o.log.WarnContext(ctx, "footprint query failed", "lat", lat, "lon", lon, "err", err)
		return model.Failure(lat, lon, model.NoSuchCoordinate(lat, lon))
	}
	if len(recs) == 0 {
		observability.IncLookup("no_coverage")
		o.log.DebugContext(ctx, "no coverage", "lat", lat, "lon", lon)
		return model.Failure(lat, lon, model.NoSuchCoordinate(lat, lon))
	}

	best := recs[0]
	res := o.sampler.Sample(ctx, best.Path, lat, lon)
	if res.Failed() {
		observability.IncLookup("sample_error")
	} else {
		observability.IncLookup("ok")
	}
	return res
}

// Query is one parsed batch item. Err set means the item was malformed and
// Raw is echoed back in its result.
type Query struct {
	model.LatLon
	Raw string
	Err error
}

type Service struct {
	orch    *Orchestrator
	cache   *rescache.Cache
	workers int
}

// NewService fronts orch with cache. workers <= 0 uses GOMAXPROCS*4.
func NewService(orch *Orchestrator, cache *rescache.Cache, workers int) *Service {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0) * 4
	}
	return &Service{orch: orch, cache: cache, workers: workers}
}

// Resolve answers a single point through the cache.
func (s *Service) Resolve(ctx context.Context, lat, lon float64) model.CoordinateResult {
	if s.cache == nil {
		return s.orch.Resolve(ctx, lat, lon)
	}
	return s.cache.GetOrCompute(ctx, lat, lon, s.orch.Resolve)
}

// ResolveBatch returns one result per query, in input order.
func (s *Service) ResolveBatch(ctx context.Context, qs []Query) []model.CoordinateResult {
	out := make([]model.CoordinateResult, len(qs))
	observability.ObserveBatchSize(len(qs))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, q := range qs {
		if q.Err != nil {
			out[i] = model.Failure(q.Lat, q.Lon, model.BadParameter(q.Raw))
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, q Query) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = s.Resolve(ctx, q.Lat, q.Lon)
		}(i, q)
	}
	wg.Wait()
	return out
}
