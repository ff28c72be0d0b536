package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness reports ready once store answers a ping and, when rr is set, the
// invalidation consumer holds partitions. Either may be nil.
func Readiness(store Pinger, rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status     string  `json:"status"`
			Store      string  `json:"store,omitempty"`
			Partitions []int32 `json:"partitions,omitempty"`
		}
		out := resp{Status: "ready"}
		ready := true

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := store.Ping(ctx)
			cancel()
			if err != nil {
				ready = false
				out.Store = err.Error()
			} else {
				out.Store = "ok"
			}
		}
		if rr != nil {
			ok, parts := rr.Readiness()
			if ok {
				out.Partitions = parts
			} else {
				ready = false
			}
		}

		if !ready {
			out.Status = "not_ready"
			out.Partitions = nil
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
