// Package invalidation defines the events that keep result caches in step
// with the footprint index.
package invalidation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/elevation-index/internal/core/model"
)

const (
	// OpRegenerated follows a full index rebuild: every cached result is stale.
	OpRegenerated = "regenerated"
	// OpInvalidate drops cached results inside an area.
	OpInvalidate = "invalidate"
)

type Event struct {
	Version    int             `json:"version"`
	Op         string          `json:"op"`
	TS         time.Time       `json:"ts"`
	Generation int64           `json:"generation,omitempty"`
	Source     string          `json:"source,omitempty"`
	BBox       *BBox           `json:"bbox,omitempty"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
}

type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

// Regenerated returns the event announcing index generation gen.
func Regenerated(gen int64, source string) Event {
	return Event{Version: 1, Op: OpRegenerated, TS: time.Now().UTC(), Generation: gen, Source: source}
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	switch e.Op {
	case OpRegenerated:
		if e.Generation < 0 {
			return fmt.Errorf("generation must be >= 0")
		}
		if e.BBox != nil || len(e.Geometry) > 0 {
			return fmt.Errorf("regenerated takes no area")
		}
		return nil
	case OpInvalidate:
	default:
		return fmt.Errorf("op must be regenerated|invalidate")
	}

	hasBBox := e.BBox != nil
	hasGeom := len(e.Geometry) > 0
	if hasBBox == hasGeom {
		return fmt.Errorf("exactly one of bbox or geometry is required")
	}
	_, err := e.Area()
	return err
}

// Area returns the WGS84 box an invalidate event covers. A geometry is
// reduced to its bound.
func (e Event) Area() (model.BBox, error) {
	if e.BBox != nil {
		bb := *e.BBox
		if bb.SRID != "EPSG:4326" {
			return model.BBox{}, fmt.Errorf("bbox.srid must be EPSG:4326")
		}
		out := model.BBox{X1: bb.X1, Y1: bb.Y1, X2: bb.X2, Y2: bb.Y2, SRID: bb.SRID}
		if !out.Valid() {
			return model.BBox{}, fmt.Errorf("bbox must be finite, in range and satisfy x2>=x1, y2>=y1")
		}
		return out, nil
	}
	if len(e.Geometry) == 0 {
		return model.BBox{}, errors.New("event has no area")
	}

	g, err := geojson.UnmarshalGeometry(e.Geometry)
	if err != nil {
		return model.BBox{}, fmt.Errorf("geometry parse: %w", err)
	}
	var b orb.Bound
	switch c := g.Coordinates.(type) {
	case orb.Polygon:
		b = c.Bound()
	case orb.MultiPolygon:
		b = c.Bound()
	default:
		return model.BBox{}, fmt.Errorf("geometry.type must be Polygon or MultiPolygon")
	}
	out := model.BBox{X1: b.Min[0], Y1: b.Min[1], X2: b.Max[0], Y2: b.Max[1], SRID: "EPSG:4326"}
	if !out.Valid() {
		return model.BBox{}, fmt.Errorf("geometry outside WGS84 range")
	}
	return out, nil
}
