// Package router turns HTTP lookup requests into batch queries.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/core/observability"
	"github.com/mohammed-shakir/elevation-index/internal/lookup"
)

const maxBodyBytes = 4 << 20

// Batcher resolves queries one-to-one and in order.
type Batcher interface {
	ResolveBatch(ctx context.Context, qs []lookup.Query) []model.CoordinateResult
}

type Response struct {
	Results []model.CoordinateResult `json:"results"`
}

type postRequest struct {
	Locations []postLocation `json:"locations"`
}

type postLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// HandleGet serves ?locations=lat,lon|lat,lon. A missing parameter is
// answered with a single error result, not a 4xx.
func HandleGet(logger *slog.Logger, route string, b Batcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		vals, ok := r.URL.Query()["locations"]
		if !ok {
			writeJSON(w, logger, Response{Results: []model.CoordinateResult{
				model.Failure(0, 0, model.MissingLocations),
			}})
			observability.ObserveHTTP(r.Method, route, http.StatusOK, time.Since(start).Seconds())
			return
		}

		qs := ParseLocations(vals[0])
		writeJSON(w, logger, Response{Results: b.ResolveBatch(r.Context(), qs)})
		observability.ObserveHTTP(r.Method, route, http.StatusOK, time.Since(start).Seconds())
	}
}

// HandlePost serves {"locations":[{"latitude":..,"longitude":..}]}. A body
// that does not decode is a 400.
func HandlePost(logger *slog.Logger, route string, b Batcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		qs, err := decodePost(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			logger.DebugContext(r.Context(), "bad lookup body", "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, route, http.StatusBadRequest, time.Since(start).Seconds())
			return
		}
		writeJSON(w, logger, Response{Results: b.ResolveBatch(r.Context(), qs)})
		observability.ObserveHTTP(r.Method, route, http.StatusOK, time.Since(start).Seconds())
	}
}

func decodePost(body io.Reader) ([]lookup.Query, error) {
	var req postRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	if req.Locations == nil {
		return nil, errors.New("invalid body: locations is required")
	}
	qs := make([]lookup.Query, len(req.Locations))
	for i, l := range req.Locations {
		if l.Latitude == nil || l.Longitude == nil {
			return nil, fmt.Errorf("invalid body: locations[%d] needs latitude and longitude", i)
		}
		qs[i] = lookup.Query{LatLon: model.LatLon{Lat: *l.Latitude, Lon: *l.Longitude}}
	}
	return qs, nil
}

// ParseLocations splits "lat,lon|lat,lon". Each malformed item becomes a
// query carrying its parse error and raw text.
func ParseLocations(raw string) []lookup.Query {
	items := strings.Split(raw, "|")
	qs := make([]lookup.Query, len(items))
	for i, item := range items {
		ll, err := parseLatLon(item)
		qs[i] = lookup.Query{LatLon: ll, Raw: item, Err: err}
	}
	return qs
}

func parseLatLon(item string) (model.LatLon, error) {
	parts := strings.Split(item, ",")
	if len(parts) != 2 {
		return model.LatLon{}, fmt.Errorf("expected lat,lon, got %d values", len(parts))
	}
	lat, err := parseFloat(parts[0])
	if err != nil {
		return model.LatLon{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := parseFloat(parts[1])
	if err != nil {
		return model.LatLon{}, fmt.Errorf("lon: %w", err)
	}
	return model.LatLon{Lat: lat, Lon: lon}, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parse float: %q is not finite", v)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response", "err", err)
	}
}
