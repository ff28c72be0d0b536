package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/elevation-index/internal/cache/cellindex"
	"github.com/mohammed-shakir/elevation-index/internal/cache/redisstore"
	"github.com/mohammed-shakir/elevation-index/internal/core/config"
	"github.com/mohammed-shakir/elevation-index/internal/core/observability"
	"github.com/mohammed-shakir/elevation-index/internal/core/server"
	"github.com/mohammed-shakir/elevation-index/internal/crs"
	"github.com/mohammed-shakir/elevation-index/internal/footprint"
	"github.com/mohammed-shakir/elevation-index/internal/index"
	"github.com/mohammed-shakir/elevation-index/internal/index/memstore"
	"github.com/mohammed-shakir/elevation-index/internal/index/pgstore"
	"github.com/mohammed-shakir/elevation-index/internal/invalidation"
	"github.com/mohammed-shakir/elevation-index/internal/logger"
	"github.com/mohammed-shakir/elevation-index/internal/lookup"
	h3mapper "github.com/mohammed-shakir/elevation-index/internal/mapper/h3"
	"github.com/mohammed-shakir/elevation-index/internal/metrics"
	"github.com/mohammed-shakir/elevation-index/internal/raster"
	"github.com/mohammed-shakir/elevation-index/internal/rescache"
	"github.com/mohammed-shakir/elevation-index/internal/sampler"
	"github.com/mohammed-shakir/elevation-index/pkg/invalidation/kafka"
)

var Version = "dev"

// exit codes
const (
	exitOK          = 0
	exitSoftware    = 1
	exitConfig      = 2
	exitUnavailable = 3
)

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	regenerate := flag.Bool("regenerate", false, "rebuild the footprint index from $DATADIR and exit")
	addr := flag.String("addr", "", "listen address, overrides $ADDR")
	flag.Parse()

	cfg := config.FromEnv()
	cfg.Regenerate = *regenerate
	if *addr != "" {
		cfg.Addr = strings.TrimSpace(*addr)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "elevation-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if err := cfg.Validate(); err != nil {
		appLog.Error("invalid configuration", "err", err)
		return exitConfig
	}
	resolver, err := newResolver(cfg)
	if err != nil {
		appLog.Error("invalid configuration", "err", err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("footprint store unavailable", "driver", cfg.StoreDriver, "err", err)
		return exitUnavailable
	}
	defer closeStore()

	opener := raster.NewGDALOpener()
	builder := footprint.NewBuilder(opener, resolver, appLog)

	if cfg.Regenerate {
		return regenerateIndex(ctx, cfg, appLog, builder, store)
	}
	if cfg.StoreDriver == config.StoreMemory {
		// nothing persists between runs: index before serving
		if _, err := builder.Regenerate(ctx, cfg.DataDir, store); err != nil {
			appLog.Error("index build failed", "err", err)
			return exitSoftware
		}
	}
	return serve(ctx, cfg, appLog, opener, resolver, store)
}

// newResolver picks the CRS backend. Without AXIS_SWAP_EPSG the backend
// decides the axis table; both built-in backends answer in (lon, lat).
func newResolver(cfg config.Config) (*crs.Resolver, error) {
	var backend crs.Backend = crs.GDALBackend{}
	if cfg.CRSBackend == config.CRSBackendWGS84 {
		backend = crs.NewWGS84Backend()
	}
	axes := crs.DefaultAxisTableFor(backend)
	if list, ok := cfg.AxisSwapList(); ok {
		var err error
		if axes, err = crs.ParseAxisTable(list); err != nil {
			return nil, err
		}
	}
	return crs.NewResolver(backend, axes), nil
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (index.Store, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		return memstore.New(), func() {}, nil
	}
	s, err := pgstore.Open(ctx, pgstore.Options{
		DSN:      cfg.PostgresDSN(),
		MaxConns: cfg.DBMaxConns,
		Table:    cfg.DBTable,
		Log:      log,
	})
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func regenerateIndex(ctx context.Context, cfg config.Config, log *slog.Logger, b *footprint.Builder, store index.Store) int {
	stats, err := b.Regenerate(ctx, cfg.DataDir, store)
	if err != nil {
		log.Error("index regeneration failed", "err", err)
		return exitSoftware
	}
	log.Info("index regeneration done", "indexed", stats.Indexed, "skipped", stats.SkippedTotal())

	var gen int64
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, shared cache generation not bumped", "err", err)
		} else {
			defer func() { _ = rdb.Close() }()
			if gen, err = rescache.BumpGeneration(ctx, rdb); err != nil {
				log.Warn("generation bump failed", "err", err)
			}
		}
	}

	icfg := kafka.FromEnv()
	if icfg.Enabled && icfg.Driver == kafka.DriverKafka {
		pub, err := kafka.NewPublisher(icfg, log)
		if err != nil {
			log.Error("invalidation publisher", "err", err)
			return exitSoftware
		}
		defer func() { _ = pub.Close() }()
		host, _ := os.Hostname()
		if err := pub.Publish(ctx, invalidation.Regenerated(gen, host)); err != nil {
			log.Error("publish regenerated event", "err", err)
			return exitSoftware
		}
	}
	return exitOK
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger, opener raster.Opener, resolver *crs.Resolver, store index.Store) int {
	p := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   os.Getenv("BUILD_VERSION"),
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
		Service: metrics.ServiceInfo{
			StoreDriver: cfg.StoreDriver,
			CRSBackend:  cfg.CRSBackend,
			CellRes:     cfg.CellRes,
		},
	})
	observability.ExposeBuildInfo(Version)

	cache, closeCache, err := newCache(ctx, cfg, log)
	if err != nil {
		log.Error("result cache setup failed", "err", err)
		return exitConfig
	}
	defer closeCache()

	orch := lookup.NewOrchestrator(store, sampler.New(cfg.DataDir, opener, resolver, log), log)
	svc := lookup.NewService(orch, cache, cfg.BatchWorkers)

	runner := kafka.New(kafka.FromEnv(), cache, kafka.Options{Logger: log, Register: p.Registerer()})
	if err := runner.Start(ctx); err != nil {
		log.Error("invalidation runner failed to start", "err", err)
		return exitSoftware
	}
	defer runner.Stop()

	deps := server.Deps{Batcher: svc, Metrics: p.Handler()}
	if pg, ok := store.(index.Pinger); ok {
		deps.Store = pg
	}
	if runner.Enabled() {
		deps.Ready = runner
	}

	log.Info("starting elevation server",
		"addr", cfg.Addr, "version", Version, "api", cfg.APIURL,
		"store", cfg.StoreDriver, "crs", resolver.Backend(), "redis", cfg.RedisAddr != "")
	if err := server.Run(ctx, cfg, log, deps); err != nil {
		log.Error("server exited with error", "err", err)
		return exitSoftware
	}
	log.Info("server stopped")
	return exitOK
}

// newCache builds the result cache; an unreachable Redis leaves it
// in-process only.
func newCache(ctx context.Context, cfg config.Config, log *slog.Logger) (*rescache.Cache, func(), error) {
	opt := rescache.Options{
		Size:      cfg.CacheSize,
		TTL:       cfg.CacheTTL,
		OpTimeout: cfg.CacheOpTimeout,
		Log:       log,
	}
	closeFn := func() {}
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, shared cache disabled", "addr", cfg.RedisAddr, "err", err)
		} else {
			opt.Redis = rdb
			opt.Cells = cellindex.NewRedisIndex(rdb, h3mapper.New(), cfg.CellRes, cfg.CacheTTL)
			closeFn = func() { _ = rdb.Close() }
		}
	}
	c, err := rescache.New(opt)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("result cache: %w", err)
	}
	if err := c.LoadGeneration(ctx); err != nil {
		log.Warn("shared cache generation unknown, starting at 0", "err", err)
	}
	return c, closeFn, nil
}
