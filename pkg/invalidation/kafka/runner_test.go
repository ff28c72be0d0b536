package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/invalidation"
	"github.com/mohammed-shakir/elevation-index/internal/logger"
	"github.com/mohammed-shakir/elevation-index/internal/rescache"
)

type fakeTarget struct {
	mu     sync.Mutex
	gens   []int64
	purges int
	boxes  []model.BBox
	err    error
}

func (f *fakeTarget) SetGeneration(gen int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gens = append(f.gens, gen)
	return true
}

func (f *fakeTarget) Purge() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
}

func (f *fakeTarget) InvalidateBBox(_ context.Context, bb model.BBox) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boxes = append(f.boxes, bb)
	return 1, f.err
}

func newRunner(t *testing.T, target Target) (*Runner, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	cfg := InvalidationConfig{Enabled: true, Driver: DriverKafka}
	return New(cfg, target, Options{Register: reg, Logger: logger.Discard()}), reg
}

func message(t *testing.T, v any) *sarama.ConsumerMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Timestamp: time.Now().UTC(), Value: b}
}

func TestRegenerated_PurgesOncePerGeneration(t *testing.T) {
	ft := &fakeTarget{}
	r, _ := newRunner(t, ft)
	ctx := context.Background()

	msg := message(t, invalidation.Regenerated(2, "test"))
	if err := r.handleMessage(ctx, msg); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if err := r.handleMessage(ctx, msg); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if err := r.handleMessage(ctx, message(t, invalidation.Regenerated(1, "old"))); err != nil {
		t.Fatalf("older: %v", err)
	}
	if ft.purges != 1 || len(ft.gens) != 1 || ft.gens[0] != 2 {
		t.Fatalf("purges=%d gens=%v", ft.purges, ft.gens)
	}
	if got := testutil.ToFloat64(r.ms.apply.WithLabelValues("skip_version")); got != 2 {
		t.Fatalf("skip_version=%v want 2", got)
	}
	if got := testutil.ToFloat64(r.ms.generation); got != 2 {
		t.Fatalf("generation gauge=%v want 2", got)
	}
}

func TestRegenerated_GenerationZeroApplies(t *testing.T) {
	ft := &fakeTarget{}
	r, _ := newRunner(t, ft)
	if err := r.handleMessage(context.Background(), message(t, invalidation.Regenerated(0, "first"))); err != nil {
		t.Fatal(err)
	}
	if ft.purges != 1 {
		t.Fatalf("purges=%d", ft.purges)
	}
}

func TestInvalidate_BBoxReachesTarget(t *testing.T) {
	ft := &fakeTarget{}
	r, _ := newRunner(t, ft)

	ev := invalidation.Event{
		Version: 1, Op: invalidation.OpInvalidate, TS: time.Now().UTC(),
		BBox: &invalidation.BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"},
	}
	if err := r.handleMessage(context.Background(), message(t, ev)); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	want := model.BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"}
	if len(ft.boxes) != 1 || ft.boxes[0] != want {
		t.Fatalf("boxes=%v", ft.boxes)
	}
	if got := testutil.ToFloat64(r.ms.msgs.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok msgs=%v", got)
	}
}

func TestHandleMessage_RejectsBadPayloads(t *testing.T) {
	ft := &fakeTarget{}
	r, _ := newRunner(t, ft)
	ctx := context.Background()

	bad := &sarama.ConsumerMessage{Value: []byte("{not json")}
	if err := r.handleMessage(ctx, bad); err == nil {
		t.Fatal("expected decode error")
	}
	invalid := message(t, invalidation.Event{Version: 1, Op: "update", TS: time.Now()})
	if err := r.handleMessage(ctx, invalid); err == nil {
		t.Fatal("expected validate error")
	}
	if got := testutil.ToFloat64(r.ms.msgs.WithLabelValues("error")); got != 2 {
		t.Fatalf("error msgs=%v want 2", got)
	}
}

func TestHandleMessage_TargetErrorPropagates(t *testing.T) {
	ft := &fakeTarget{err: errors.New("redis down")}
	r, _ := newRunner(t, ft)
	ev := invalidation.Event{
		Version: 1, Op: invalidation.OpInvalidate, TS: time.Now().UTC(),
		BBox: &invalidation.BBox{X1: 1, Y1: 1, X2: 2, Y2: 2, SRID: "EPSG:4326"},
	}
	if err := r.handleMessage(context.Background(), message(t, ev)); err == nil {
		t.Fatal("expected error")
	}
}

func TestWireEvent_CellsAndIdempotency(t *testing.T) {
	ft := &fakeTarget{}
	r, _ := newRunner(t, ft)
	ctx := context.Background()

	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 59.33, Lng: 18.07}, 7)
	if err != nil {
		t.Fatal(err)
	}
	msg := message(t, WireEvent{H3Cells: []string{cell.String()}, Version: 1, TS: time.Now().UTC()})
	if err := r.handleMessage(ctx, msg); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if err := r.handleMessage(ctx, msg); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if len(ft.boxes) != 1 {
		t.Fatalf("boxes=%d want 1", len(ft.boxes))
	}
	if !ft.boxes[0].Contains(59.33, 18.07) {
		t.Fatalf("cell bound %v misses its centre point", ft.boxes[0])
	}

	bad := message(t, WireEvent{H3Cells: []string{"nope"}, Version: 1})
	if err := r.handleMessage(ctx, bad); err == nil {
		t.Fatal("expected error for invalid cell")
	}
}

func TestRunner_DrivesResultCache(t *testing.T) {
	c, err := rescache.New(rescache.Options{Size: 8, Log: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	fn := func(_ context.Context, lat, lon float64) model.CoordinateResult {
		return model.Elevation(lat, lon, 1)
	}
	c.GetOrCompute(ctx, 55.5, 11.5, fn)
	c.GetOrCompute(ctx, 10, 10, fn)

	r, _ := newRunner(t, c)
	ev := invalidation.Event{
		Version: 1, Op: invalidation.OpInvalidate, TS: time.Now().UTC(),
		BBox: &invalidation.BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"},
	}
	if err := r.handleMessage(ctx, message(t, ev)); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d want 1 after bbox invalidation", c.Len())
	}

	if err := r.handleMessage(ctx, message(t, invalidation.Regenerated(4, "test"))); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 || c.Generation() != 4 {
		t.Fatalf("len=%d gen=%d", c.Len(), c.Generation())
	}
}

func TestRunner_DisabledStartIsNoop(t *testing.T) {
	r := New(InvalidationConfig{Driver: DriverNone}, &fakeTarget{}, Options{Logger: logger.Discard()})
	if r.Enabled() {
		t.Fatal("runner should be disabled")
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	r.Stop()
	if ready, _ := r.Readiness(); ready {
		t.Fatal("disabled runner reports ready")
	}
}
