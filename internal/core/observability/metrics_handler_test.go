package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/api/v1/lookup", 200, 0.001)
	IncCacheHit("l1")
	IncCacheMiss("l2")
	ObserveStoreQuery("find_containing", errors.New("down"), 0.01)
	IncIngest("skipped", "projection_parse")
	IncInvalidation("consumed", "regenerated", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{
		"app_build_info",
		"http_requests_total",
		`cache_results_total{outcome="hit",tier="l1"}`,
		`store_query_seconds_count{op="find_containing",result="error"}`,
		`ingest_files_total{reason="projection_parse",result="skipped"}`,
		`invalidation_events_total{direction="consumed",op="regenerated",result="ok"}`,
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics payload missing %s; got:\n%s", name, body)
		}
	}
}
