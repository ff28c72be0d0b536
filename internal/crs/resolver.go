package crs

import (
	"fmt"
	"math"

	"github.com/mohammed-shakir/elevation-index/internal/core/errs"
)

type Direction uint8

const (
	// native CRS -> WGS84
	ToGeographic Direction = iota
	// WGS84 -> native CRS
	FromGeographic
)

func (d Direction) String() string {
	if d == FromGeographic {
		return "from_geographic"
	}
	return "to_geographic"
}

// Transformer is the transform primitive supplied by a geospatial library.
// It transforms the coordinate arrays in place.
type Transformer interface {
	Transform(xs, ys []float64) error
	Close()
}

type Backend interface {
	Name() string
	// projection is the raster's descriptor, epsg the code parsed out of it
	NewTransformer(projection string, epsg int, dir Direction) (Transformer, error)
}

type Resolver struct {
	backend Backend
	axes    AxisTable
}

func NewResolver(b Backend, axes AxisTable) *Resolver {
	if axes == nil {
		axes = AxisTable{}
	}
	return &Resolver{backend: b, axes: axes}
}

func (r *Resolver) Backend() string { return r.backend.Name() }

// Axis reports the correction applied to transforms for epsg.
func (r *Resolver) Axis(epsg int) AxisOrder { return r.axes.Order(epsg) }

// Resolve parses the EPSG code out of projection and builds a transform in
// the requested direction.
func (r *Resolver) Resolve(projection string, dir Direction) (*Transform, error) {
	code, err := ParseEPSG(projection)
	if err != nil {
		return nil, err
	}
	tr, err := r.backend.NewTransformer(projection, code, dir)
	if err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			err = errs.New(errs.KindTransformBuild, fmt.Sprintf("EPSG:%d %s", code, dir), err)
		}
		return nil, err
	}
	return &Transform{EPSG: code, Axis: r.axes.Order(code), Dir: dir, tr: tr}, nil
}

// Transform wraps a primitive with the axis-order correction. Geographic
// arrays seen by callers are always (lon, lat), whatever the primitive does.
type Transform struct {
	EPSG int
	Axis AxisOrder
	Dir  Direction
	tr   Transformer
}

// Apply transforms xs/ys in place. The correction touches only the
// geographic side: outputs after a ToGeographic call, inputs before a
// FromGeographic call.
func (t *Transform) Apply(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("transform: %d xs but %d ys", len(xs), len(ys))
	}
	swap := t.Axis == AxisSwapped
	if swap && t.Dir == FromGeographic {
		swapInPlace(xs, ys)
	}
	if err := t.tr.Transform(xs, ys); err != nil {
		return errs.New(errs.KindTransformBuild, fmt.Sprintf("transform EPSG:%d %s", t.EPSG, t.Dir), err)
	}
	if swap && t.Dir == ToGeographic {
		swapInPlace(xs, ys)
	}
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			return errs.New(errs.KindTransformBuild, fmt.Sprintf("transform EPSG:%d %s", t.EPSG, t.Dir),
				fmt.Errorf("point %d not representable", i))
		}
	}
	return nil
}

func (t *Transform) Close() {
	if t != nil && t.tr != nil {
		t.tr.Close()
	}
}
