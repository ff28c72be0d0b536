// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
)

// LatLon is one query coordinate in WGS84 degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// Point returns the coordinate in (lon, lat) order.
func (p LatLon) Point() orb.Point { return orb.Point{p.Lon, p.Lat} }

func (p LatLon) String() string {
	return FormatCoord(p.Lat) + " " + FormatCoord(p.Lon)
}

// FormatCoord renders a coordinate in its shortest decimal form without exponent.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String renders minx,miny,maxx,maxy,srid.
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.X1, b.Y1}, Max: orb.Point{b.X2, b.Y2}}
}

// Valid reports whether the box is finite and ordered. A zero-area box
// (a single point) is valid.
func (b BBox) Valid() bool {
	for _, v := range []float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 <= b.X2 && b.Y1 <= b.Y2 && b.Y1 >= -90 && b.Y2 <= 90 && b.X1 >= -180 && b.X2 <= 180
}

// Contains is boundary-inclusive.
func (b BBox) Contains(lat, lon float64) bool {
	return lon >= b.X1 && lon <= b.X2 && lat >= b.Y1 && lat <= b.Y2
}

// CoordinateResult answers one point query. Callers must check Error before
// reading Elevation, since zero is a valid elevation.
type CoordinateResult struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Elevation int32   `json:"elevation"`
	Error     *string `json:"error"`
}

func Elevation(lat, lon float64, v int32) CoordinateResult {
	return CoordinateResult{Latitude: lat, Longitude: lon, Elevation: v}
}

func Failure(lat, lon float64, msg string) CoordinateResult {
	return CoordinateResult{Latitude: lat, Longitude: lon, Error: &msg}
}

func (r CoordinateResult) Failed() bool { return r.Error != nil }

// ErrorText returns the error message or "" on success.
func (r CoordinateResult) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Equal compares values, not error pointers.
func (r CoordinateResult) Equal(o CoordinateResult) bool {
	if r.Latitude != o.Latitude || r.Longitude != o.Longitude || r.Elevation != o.Elevation {
		return false
	}
	if (r.Error == nil) != (o.Error == nil) {
		return false
	}
	return r.Error == nil || *r.Error == *o.Error
}

// user-visible failure messages
func NoSuchCoordinate(lat, lon float64) string {
	return "No such coordinate " + FormatCoord(lat) + " " + FormatCoord(lon) + "."
}

func InternalError(lat, lon float64) string {
	return "Internal Server Error " + FormatCoord(lat) + " " + FormatCoord(lon) + "."
}

func BadParameter(raw string) string {
	return "Bad parameter format " + raw + "."
}

const MissingLocations = "locations is a required parameter"
