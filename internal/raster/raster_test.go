package raster

import (
	"errors"
	"math"
	"testing"

	"github.com/mohammed-shakir/elevation-index/internal/core/errs"
)

var northUp = GeoTransform{500000, 10, 0, 5300000, 0, -10}

func TestPixelFor_Corners(t *testing.T) {
	m := Metadata{GeoTransform: northUp, Width: 100, Height: 50}

	col, row, err := northUp.PixelFor(500000, 5300000)
	if err != nil {
		t.Fatal(err)
	}
	c, r, ok := m.Pixel(col, row)
	if !ok || c != 0 || r != 0 {
		t.Fatalf("top-left -> (%d,%d,%v), want (0,0,true)", c, r, ok)
	}

	brx, bry := northUp.Apply(100, 50)
	col, row, _ = northUp.PixelFor(brx, bry)
	c, r, ok = m.Pixel(col, row)
	if ok || c != 100 || r != 50 {
		t.Fatalf("bottom-right -> (%d,%d,%v), want out of range at (100,50)", c, r, ok)
	}

	// last pixel's interior is in range
	col, row, _ = northUp.PixelFor(brx-0.5, bry+0.5)
	c, r, ok = m.Pixel(col, row)
	if !ok || c != 99 || r != 49 {
		t.Fatalf("last pixel -> (%d,%d,%v), want (99,49,true)", c, r, ok)
	}
}

func TestPixelFor_Rotated(t *testing.T) {
	g := GeoTransform{1000, 2, 0.5, 2000, 0.25, -3}
	x, y := g.Apply(7, 11)
	col, row, err := g.PixelFor(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(col-7) > 1e-9 || math.Abs(row-11) > 1e-9 {
		t.Fatalf("got (%v,%v) want (7,11)", col, row)
	}

	inv, err := g.Invert()
	if err != nil {
		t.Fatal(err)
	}
	ic, ir := inv.Apply(x, y)
	if math.Abs(ic-7) > 1e-9 || math.Abs(ir-11) > 1e-9 {
		t.Fatalf("inverse apply got (%v,%v) want (7,11)", ic, ir)
	}
}

func TestInvert_Singular(t *testing.T) {
	g := GeoTransform{0, 0, 0, 0, 0, 0}
	if _, err := g.Invert(); err == nil {
		t.Fatal("expected singular geotransform to fail")
	}
	if _, _, err := g.PixelFor(1, 1); err == nil {
		t.Fatal("expected PixelFor to fail")
	}
}

func TestCorners(t *testing.T) {
	m := Metadata{GeoTransform: northUp, Width: 100, Height: 50}
	x0, y0, x1, y1 := m.Corners()
	if x0 != 500000 || y0 != 5299500 || x1 != 501000 || y1 != 5300000 {
		t.Fatalf("corners = %v %v %v %v", x0, y0, x1, y1)
	}
}

func TestResolutionScore(t *testing.T) {
	cases := []struct {
		pixels int
		a, b   float64
		want   int
		ok     bool
	}{
		{3600, 9, 10, 3600, true},
		{3600, 10, 9, 3600, true},
		{100, -0.5, 0.5, 100, true},
		{10, 0, 4, 3, true},
		{100, 9, 9, 0, false},
		{0, 9, 10, 0, false},
		{1, 0, 10, 0, false},
		{100, math.NaN(), 1, 0, false},
	}
	for _, tc := range cases {
		got, ok := ResolutionScore(tc.pixels, tc.a, tc.b)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ResolutionScore(%d,%v,%v)=(%d,%v) want (%d,%v)", tc.pixels, tc.a, tc.b, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMemOpener(t *testing.T) {
	nd := -9999.0
	o := NewMemOpener()
	o.Put("a.tif", &Grid{GeoTransform: northUp, Width: 2, Height: 1, Values: []float64{42.9, nd}, NoData: &nd})

	if _, err := o.Open("missing.tif"); !errors.Is(err, errs.ErrRasterOpen) {
		t.Fatalf("err=%v want raster open", err)
	}
	ds, err := o.Open("a.tif")
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	if v, err := ds.ReadPixel(0, 0); err != nil || v != 42.9 {
		t.Fatalf("ReadPixel(0,0)=%v,%v", v, err)
	}
	if _, err := ds.ReadPixel(1, 0); !errors.Is(err, ErrNoData) || !errors.Is(err, errs.ErrRasterRead) {
		t.Fatalf("nodata err=%v", err)
	}
	if _, err := ds.ReadPixel(2, 0); !errors.Is(err, errs.ErrRasterRead) {
		t.Fatalf("out of range err=%v", err)
	}
	if o.Opens("a.tif") != 1 {
		t.Fatalf("opens=%d", o.Opens("a.tif"))
	}
}
