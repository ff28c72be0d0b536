package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/core/observability"
	"github.com/mohammed-shakir/elevation-index/internal/invalidation"
)

// Target is the cache a Runner keeps in step with the index.
type Target interface {
	SetGeneration(gen int64) bool
	Purge()
	InvalidateBBox(ctx context.Context, bb model.BBox) (int, error)
}

type Runner struct {
	log      *slog.Logger
	cfg      InvalidationConfig
	target   Target
	ms       *metricSet
	ver      *versionDedupe
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
}

func New(cfg InvalidationConfig, t Target, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:    opts.Logger.With("component", "invalidation"),
		cfg:    cfg,
		target: t,
		ms:     newMetricSet(opts.Register),
		ver:    newVersionDedupe(8192),
		assign: map[int32]struct{}{},
	}
}

// Enabled reports whether Start will consume.
func (r *Runner) Enabled() bool {
	return r.cfg.Enabled && r.cfg.Driver == DriverKafka
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.Enabled() {
		r.log.Info("invalidation runner disabled", "driver", r.cfg.Driver, "enabled", r.cfg.Enabled)
		return nil
	}
	if r.target == nil {
		return errors.New("kafka runner: cache dependency is required")
	}

	cfg, err := r.cfg.sarama()
	if err != nil {
		return err
	}
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range sess.Claims() {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka invalidation runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka invalidation runner stopped")
}

func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

// handleMessage accepts either an invalidation.Event or the compact
// WireEvent naming H3 cells.
func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	r.ms.lag(msg.Timestamp)

	var w WireEvent
	if err := json.Unmarshal(msg.Value, &w); err == nil && len(w.H3Cells) > 0 {
		err := r.applyWire(ctx, w)
		r.observe(invalidation.OpInvalidate, err, time.Since(start))
		return err
	}

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.ms.message(err)
		return fmt.Errorf("decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		r.ms.message(err)
		return fmt.Errorf("validate: %w", err)
	}
	err := r.apply(ctx, ev)
	r.observe(ev.Op, err, time.Since(start))
	return err
}

func (r *Runner) observe(op string, err error, dur time.Duration) {
	if op == "" {
		op = "unknown"
	}
	r.ms.message(err)
	r.ms.proc.WithLabelValues(op).Observe(dur.Seconds())
	observability.IncInvalidation("consumed", op, err)
}

func (r *Runner) apply(ctx context.Context, ev invalidation.Event) error {
	if ev.Op == invalidation.OpRegenerated {
		// generations are monotonic; replays of an older one are dropped
		if !r.ver.generation(ev.Generation) {
			r.ms.apply.WithLabelValues("skip_version").Inc()
			return nil
		}
		r.target.SetGeneration(ev.Generation)
		r.target.Purge()
		r.ms.generation.Set(float64(ev.Generation))
		r.ms.apply.WithLabelValues("purge").Inc()
		r.log.InfoContext(ctx, "result cache purged", "generation", ev.Generation, "source", ev.Source)
		return nil
	}

	bb, err := ev.Area()
	if err != nil {
		return err
	}
	n, err := r.target.InvalidateBBox(ctx, bb)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", bb, err)
	}
	r.ms.apply.WithLabelValues("delete").Add(float64(n))
	return nil
}

// applyWire invalidates the bound of every named cell not already applied
// at this version or a later one.
func (r *Runner) applyWire(ctx context.Context, w WireEvent) error {
	removed := 0
	for _, s := range w.H3Cells {
		if !r.ver.cell(s, w.Version) {
			r.ms.apply.WithLabelValues("skip_version").Inc()
			continue
		}
		bb, err := cellBBox(s)
		if err != nil {
			return err
		}
		n, err := r.target.InvalidateBBox(ctx, bb)
		if err != nil {
			return fmt.Errorf("invalidate cell %s: %w", s, err)
		}
		removed += n
	}
	r.ms.apply.WithLabelValues("delete").Add(float64(removed))
	return nil
}

func cellBBox(s string) (model.BBox, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(s)); err != nil {
		return model.BBox{}, fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return model.BBox{}, fmt.Errorf("invalid h3 cell %q", s)
	}
	boundary, err := c.Boundary()
	if err != nil {
		return model.BBox{}, fmt.Errorf("cell boundary %s: %w", s, err)
	}
	bb := model.BBox{X1: 180, Y1: 90, X2: -180, Y2: -90, SRID: "EPSG:4326"}
	for _, v := range boundary {
		bb.X1 = min(bb.X1, v.Lng)
		bb.X2 = max(bb.X2, v.Lng)
		bb.Y1 = min(bb.Y1, v.Lat)
		bb.Y2 = max(bb.Y2, v.Lat)
	}
	return bb, nil
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
