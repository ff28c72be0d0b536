// Package raster opens elevation rasters and maps between native CRS
// coordinates and pixel indices.
package raster

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoData is returned when the sampled pixel holds the band's NoData value.
var ErrNoData = errors.New("nodata pixel")

type Metadata struct {
	Path         string
	Projection   string
	GeoTransform GeoTransform
	Width        int
	Height       int
}

// Dataset is one open raster. Only band 1 is ever read.
type Dataset interface {
	Metadata() (Metadata, error)
	ReadPixel(col, row int) (float64, error)
	Close()
}

type Opener interface {
	Open(path string) (Dataset, error)
}

// GeoTransform is the GDAL affine transform:
//
//	x = gt[0] + col*gt[1] + row*gt[2]
//	y = gt[3] + col*gt[4] + row*gt[5]
type GeoTransform [6]float64

func (g GeoTransform) Apply(col, row float64) (x, y float64) {
	return g[0] + col*g[1] + row*g[2], g[3] + col*g[4] + row*g[5]
}

func (g GeoTransform) det() float64 { return g[1]*g[5] - g[2]*g[4] }

// Invert returns the pixel-from-native transform.
func (g GeoTransform) Invert() (GeoTransform, error) {
	d := g.det()
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return GeoTransform{}, fmt.Errorf("geotransform %v is not invertible", [6]float64(g))
	}
	inv := 1 / d
	return GeoTransform{
		(g[2]*g[3] - g[0]*g[5]) * inv,
		g[5] * inv,
		-g[2] * inv,
		(g[4]*g[0] - g[1]*g[3]) * inv,
		-g[4] * inv,
		g[1] * inv,
	}, nil
}

// PixelFor maps a native point to fractional pixel coordinates. It works on
// offsets from the origin so the top-left corner lands on exactly (0, 0).
func (g GeoTransform) PixelFor(x, y float64) (col, row float64, err error) {
	d := g.det()
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, 0, fmt.Errorf("geotransform %v is not invertible", [6]float64(g))
	}
	dx, dy := x-g[0], y-g[3]
	return (g[5]*dx - g[2]*dy) / d, (g[1]*dy - g[4]*dx) / d, nil
}

// Corners returns the two diagonal corners used for the footprint: the
// origin column at the far row (x0, y0) and the far column at the origin
// row (x1, y1). For a north-up raster that is bottom-left and top-right.
func (m Metadata) Corners() (x0, y0, x1, y1 float64) {
	w, h := float64(m.Width), float64(m.Height)
	g := m.GeoTransform
	x0 = g[0]
	y0 = g[3] + w*g[4] + h*g[5]
	x1 = g[0] + w*g[1] + h*g[2]
	y1 = g[3]
	return x0, y0, x1, y1
}

// Pixel floors fractional pixel coordinates. Extents are half-open: the
// far edge (col == width or row == height) is outside.
func (m Metadata) Pixel(col, row float64) (int, int, bool) {
	if math.IsNaN(col) || math.IsNaN(row) {
		return 0, 0, false
	}
	c, r := math.Floor(col), math.Floor(row)
	if c < 0 || r < 0 || c >= float64(m.Width) || r >= float64(m.Height) {
		return int(c), int(r), false
	}
	return int(c), int(r), true
}

// ResolutionScore is the ranking proxy: pixels divided by the span between
// a and b, both biased by +500 first. A non-finite or sub-1 score means the
// extent is degenerate.
func ResolutionScore(pixels int, a, b float64) (int, bool) {
	span := math.Abs((500 + a) - (500 + b))
	score := math.Round(float64(pixels) / span)
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 1 || score > math.MaxInt32 {
		return 0, false
	}
	return int(score), true
}
