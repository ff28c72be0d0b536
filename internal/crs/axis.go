package crs

import (
	"fmt"
	"strconv"
	"strings"
)

type AxisOrder uint8

const (
	AxisNormal AxisOrder = iota
	// geographic side comes back as (lat, lon)
	AxisSwapped
)

func (a AxisOrder) String() string {
	if a == AxisSwapped {
		return "swapped"
	}
	return "normal"
}

// AxisTable lists the raster CRSs whose transform primitive reports the
// geographic axes in (lat, lon) order. Codes not listed are AxisNormal.
type AxisTable map[int]AxisOrder

// DefaultAxisTable holds the one CRS observed to need the correction with a
// primitive that answers in authority axis order: ETRS89 / UTM zone 32N.
// Other codes need verification first.
func DefaultAxisTable() AxisTable {
	return AxisTable{25832: AxisSwapped}
}

// lonLatBackend is implemented by backends whose primitive already answers
// (lon, lat) for every CRS.
type lonLatBackend interface {
	LonLatOrder() bool
}

// DefaultAxisTableFor returns the table to use with b when none is
// configured. Backends that normalise to (lon, lat) get an empty table;
// swapping their output again would transpose it.
func DefaultAxisTableFor(b Backend) AxisTable {
	if n, ok := b.(lonLatBackend); ok && n.LonLatOrder() {
		return AxisTable{}
	}
	return DefaultAxisTable()
}

// ParseAxisTable reads a comma separated list of EPSG codes to mark swapped.
func ParseAxisTable(list string) (AxisTable, error) {
	t := AxisTable{}
	for p := range strings.SplitSeq(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = strings.TrimPrefix(strings.ToUpper(p), "EPSG:")
		code, err := strconv.Atoi(p)
		if err != nil || code <= 0 {
			return nil, fmt.Errorf("axis table: invalid EPSG code %q", p)
		}
		t[code] = AxisSwapped
	}
	return t, nil
}

func (t AxisTable) Order(epsg int) AxisOrder {
	if o, ok := t[epsg]; ok {
		return o
	}
	return AxisNormal
}

func swapInPlace(xs, ys []float64) {
	for i := range xs {
		xs[i], ys[i] = ys[i], xs[i]
	}
}
