package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// FootprintRecord is one indexed raster.
type FootprintRecord struct {
	ID         int64
	Path       string
	Resolution int
	Footprint  orb.Polygon
}

// NewFootprint builds the closed clockwise ring spanned by two x values and
// two y values (lon/lat).
func NewFootprint(x0, x1, y0, y1 float64) orb.Polygon {
	ring := orb.Ring{
		{x0, y0},
		{x0, y1},
		{x1, y1},
		{x1, y0},
		{x0, y0},
	}
	if ring.Orientation() == orb.CCW {
		ring.Reverse()
	}
	return orb.Polygon{ring}
}

func (r FootprintRecord) Validate() error {
	if r.Path == "" {
		return errors.New("footprint: empty path")
	}
	if r.Resolution < 1 {
		return fmt.Errorf("footprint: resolution %d must be positive", r.Resolution)
	}
	return ValidateFootprint(r.Footprint)
}

// ValidateFootprint checks the polygon is a single closed, simple quadrilateral
// with non-zero area and finite coordinates.
func ValidateFootprint(p orb.Polygon) error {
	if len(p) != 1 {
		return fmt.Errorf("footprint: want 1 ring, got %d", len(p))
	}
	ring := p[0]
	if len(ring) != 5 {
		return fmt.Errorf("footprint: want 5 ring points, got %d", len(ring))
	}
	if !ring.Closed() {
		return errors.New("footprint: ring not closed")
	}
	for i, pt := range ring {
		if !finite(pt[0]) || !finite(pt[1]) {
			return fmt.Errorf("footprint: vertex %d not finite", i)
		}
	}
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if ring[i].Equal(ring[j]) {
				return fmt.Errorf("footprint: vertices %d and %d coincide", i, j)
			}
		}
	}
	if ring.Orientation() == 0 {
		return errors.New("footprint: zero area")
	}
	// opposite edges of a quadrilateral must not cross
	if segmentsCross(ring[0], ring[1], ring[2], ring[3]) || segmentsCross(ring[1], ring[2], ring[3], ring[0]) {
		return errors.New("footprint: self-intersecting ring")
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// segmentsCross reports a proper crossing of ab and cd.
func segmentsCross(a, b, c, d orb.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
