package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/elevation-index/internal/cache/keys"
)

func TestTTLExpiry_ResultAndCellSet(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	pk := keys.PointKey(51.5, -0.12)
	rk := keys.Result(0, pk)
	ck := keys.Cell(0, 7, "871f1d489ffffff")

	if err := rc.Set(ctx, rk, []byte(`{"k":"x"}`), 2*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := rc.SAdd(ctx, ck, 2*time.Second, pk); err != nil {
		t.Fatalf("SAdd: %v", err)
	}

	if _, ok, err := rc.Get(ctx, rk); err != nil || !ok {
		t.Fatalf("pre expiry ok=%v err=%v", ok, err)
	}
	if m, err := rc.SMembers(ctx, ck); err != nil || len(m) != 1 {
		t.Fatalf("pre expiry members=%v err=%v", m, err)
	}

	mr.FastForward(3 * time.Second)

	if _, ok, err := rc.Get(ctx, rk); err != nil || ok {
		t.Fatalf("result should expire; ok=%v err=%v", ok, err)
	}
	m, err := rc.SMembers(ctx, ck)
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("cell set should expire; got %v", m)
	}
}
