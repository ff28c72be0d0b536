// Package crstest provides a deterministic crs.Backend for tests.
package crstest

import (
	"fmt"

	"github.com/mohammed-shakir/elevation-index/internal/crs"
)

// WKT returns a minimal projection descriptor carrying code.
func WKT(code int) string {
	return fmt.Sprintf(`PROJCS["test %d",GEOGCS["test",AUTHORITY["EPSG","4258"]],AUTHORITY["EPSG","%d"]]`, code, code)
}

// Linear maps native metres to degrees with a fixed scale around an origin.
// With Swapped set its geographic side is (lat, lon), the authority order of
// EPSG:4326; pair it with an AxisTable marking the same codes.
type Linear struct {
	OriginX, OriginY float64
	Lon0, Lat0       float64
	MetresPerDegree  float64
	Swapped          map[int]bool
	Fail             map[int]error
}

// UTM32 stands in for EPSG:25832 anchored at 9E 48N. Its primitive answers
// in authority order (lat, lon), so it needs DefaultAxisTable.
// 1024 m per degree keeps binary fractions exact through a round trip.
func UTM32() *Linear {
	return &Linear{
		OriginX: 500000, OriginY: 5300000,
		Lon0: 9, Lat0: 48,
		MetresPerDegree: 1024,
		Swapped:         map[int]bool{25832: true},
	}
}

// UTM32LonLat is UTM32 with a primitive that already answers (lon, lat),
// the way godal does.
func UTM32LonLat() *Linear {
	l := UTM32()
	l.Swapped = nil
	return l
}

func (l *Linear) Name() string { return "linear" }

// LonLatOrder is true when no code is swapped.
func (l *Linear) LonLatOrder() bool { return len(l.Swapped) == 0 }

func (l *Linear) NewTransformer(_ string, epsg int, dir crs.Direction) (crs.Transformer, error) {
	if err := l.Fail[epsg]; err != nil {
		return nil, err
	}
	return &linearTransformer{l: l, dir: dir, swapped: l.Swapped[epsg]}, nil
}

type linearTransformer struct {
	l       *Linear
	dir     crs.Direction
	swapped bool
}

func (t *linearTransformer) Transform(xs, ys []float64) error {
	l := t.l
	for i := range xs {
		if t.dir == crs.ToGeographic {
			lon := l.Lon0 + (xs[i]-l.OriginX)/l.MetresPerDegree
			lat := l.Lat0 + (ys[i]-l.OriginY)/l.MetresPerDegree
			if t.swapped {
				xs[i], ys[i] = lat, lon
			} else {
				xs[i], ys[i] = lon, lat
			}
			continue
		}
		lon, lat := xs[i], ys[i]
		if t.swapped {
			lat, lon = xs[i], ys[i]
		}
		xs[i] = l.OriginX + (lon-l.Lon0)*l.MetresPerDegree
		ys[i] = l.OriginY + (lat-l.Lat0)*l.MetresPerDegree
	}
	return nil
}

func (t *linearTransformer) Close() {}
