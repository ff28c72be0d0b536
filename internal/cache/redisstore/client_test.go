package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/elevation-index/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) *Client {
	t.Helper()
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
	return rc
}

func TestSetMGetDel_HappyPath_AndMGetFiltersMissing(t *testing.T) {
	rc := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	err = rc.Set(ctx, "k2", []byte("v2"), time.Minute)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := rc.MGet(ctx, []string{"k1", "k2", "missing"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("MGet size=%d want 2", len(got))
	}
	if string(got["k1"]) != "v1" || string(got["k2"]) != "v2" {
		t.Fatalf("unexpected values: %+v", got)
	}

	if err := rc.Del(ctx, "k1", "k2"); err != nil {
		t.Fatalf("Del: %v", err)
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, err := rc.MGet(ctx, []string{"k"}); err == nil {
		t.Fatalf("expected error on MGet with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}

func TestGet_MissingIsNotAnError(t *testing.T) {
	rc := newMini(t)
	ctx := context.Background()

	if _, ok, err := rc.Get(ctx, "absent"); ok || err != nil {
		t.Fatalf("absent key: ok=%v err=%v", ok, err)
	}
	_ = rc.Set(ctx, "present", []byte("v"), time.Minute)
	v, ok, err := rc.Get(ctx, "present")
	if !ok || err != nil || string(v) != "v" {
		t.Fatalf("present key: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestSetMembers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	ctx := context.Background()
	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	if err := rc.SAdd(ctx, "cell", time.Minute, "a", "b", "a"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}
	if err := rc.SAdd(ctx, "cell", time.Minute); err != nil {
		t.Fatalf("SAdd with no members: %v", err)
	}
	got, err := rc.SMembers(ctx, "cell")
	if err != nil || len(got) != 2 {
		t.Fatalf("SMembers=%v err=%v", got, err)
	}
	if ttl := mr.TTL("cell"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl=%v", ttl)
	}
}

func TestIntIncr(t *testing.T) {
	rc := newMini(t)
	ctx := context.Background()

	n, err := rc.Int(ctx, "gen")
	if err != nil || n != 0 {
		t.Fatalf("missing counter: n=%d err=%v", n, err)
	}
	for want := int64(1); want <= 2; want++ {
		n, err := rc.Incr(ctx, "gen")
		if err != nil || n != want {
			t.Fatalf("Incr=%d err=%v want %d", n, err, want)
		}
	}
	if n, _ := rc.Int(ctx, "gen"); n != 2 {
		t.Fatalf("Int=%d want 2", n)
	}

	_ = rc.Set(ctx, "text", []byte("abc"), time.Minute)
	if _, err := rc.Int(ctx, "text"); err == nil {
		t.Fatalf("non-integer value must fail")
	}
}

func TestMetrics_Incremented(t *testing.T) {
	p := metrics.Init(metrics.Config{})

	rc := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _ = rc.MGet(ctx, []string{"m1"})
	_ = rc.Del(ctx, "m1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, op := range []string{"set", "mget", "del"} {
		if !strings.Contains(body, `cache_op_seconds_count{op="`+op+`",result="ok"}`) {
			t.Fatalf("missing cache_op_seconds for %s; got:\n%s", op, body)
		}
	}
}
