package crs

import (
	"errors"
	"fmt"

	"github.com/wroge/wgs84"

	"github.com/mohammed-shakir/elevation-index/internal/core/errs"
)

type spheroid struct {
	a, fi float64
}

func (s spheroid) A() float64  { return s.a }
func (s spheroid) Fi() float64 { return s.fi }

// WGS84Backend is a pure Go backend on wroge/wgs84. It only looks at the
// EPSG code, so it needs no GDAL. Geographic output is lon/lat.
type WGS84Backend struct {
	build func(code int, dir Direction) (func(a, b, c float64) (a2, b2, c2 float64), bool)
}

func NewWGS84Backend() *WGS84Backend {
	epsg := wgs84.EPSG()

	// ETRS89 / UTM zones 28N..38N (EPSG:25828..25838), GRS80 with a null datum shift.
	etrs89 := wgs84.Datum{
		Spheroid: spheroid{a: 6378137, fi: 298.257222101},
		Area: wgs84.AreaFunc(func(lon, lat float64) bool {
			if lon < -16.1 || lat < 32.88 || lon > 40.18 || lat > 84.17 {
				return false
			}
			return true
		}),
	}
	for zone := 28; zone <= 38; zone++ {
		lon0 := float64(zone*6 - 183)
		epsg.Add(25800+zone, etrs89.TransverseMercator(lon0, 0, 0.9996, 500000, 0))
	}

	return &WGS84Backend{
		build: func(code int, dir Direction) (func(a, b, c float64) (a2, b2, c2 float64), bool) {
			native := epsg.Code(code)
			if any(native) == nil {
				return nil, false
			}
			if dir == FromGeographic {
				return wgs84.Transform(wgs84.WGS84().LonLat(), native), true
			}
			return wgs84.Transform(native, wgs84.WGS84().LonLat()), true
		},
	}
}

func (b *WGS84Backend) Name() string { return "wgs84" }

func (b *WGS84Backend) LonLatOrder() bool { return true }

func (b *WGS84Backend) NewTransformer(_ string, epsg int, dir Direction) (tr Transformer, err error) {
	defer func() {
		if r := recover(); r != nil {
			tr, err = nil, errs.New(errs.KindTransformBuild, fmt.Sprintf("EPSG:%d", epsg), fmt.Errorf("unsupported code: %v", r))
		}
	}()
	f, ok := b.build(epsg, dir)
	if !ok {
		return nil, errs.New(errs.KindTransformBuild, fmt.Sprintf("EPSG:%d", epsg), errors.New("code not in registry"))
	}
	return funcTransformer(f), nil
}

type funcTransformer func(a, b, c float64) (a2, b2, c2 float64)

func (f funcTransformer) Transform(xs, ys []float64) error {
	for i := range xs {
		xs[i], ys[i], _ = f(xs[i], ys[i], 0)
	}
	return nil
}

func (funcTransformer) Close() {}
