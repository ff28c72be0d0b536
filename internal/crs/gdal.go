package crs

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/mohammed-shakir/elevation-index/internal/core/errs"
)

// GDALBackend builds transforms with GDAL/PROJ through godal. The native CRS
// is read from the raster's WKT descriptor. godal.RegisterAll must have run.
type GDALBackend struct{}

func (GDALBackend) Name() string { return "gdal" }

// LonLatOrder is true: godal sets OAMS_TRADITIONAL_GIS_ORDER on every
// SpatialRef it creates, so EPSG:4326 comes back as (lon, lat).
func (GDALBackend) LonLatOrder() bool { return true }

func (GDALBackend) NewTransformer(projection string, epsg int, dir Direction) (Transformer, error) {
	native, err := godal.NewSpatialRefFromWKT(projection)
	if err != nil {
		return nil, errs.New(errs.KindSpatialRef, fmt.Sprintf("spatial ref EPSG:%d", epsg), err)
	}
	geo, err := godal.NewSpatialRefFromEPSG(WGS84)
	if err != nil {
		native.Close()
		return nil, errs.New(errs.KindSpatialRef, "spatial ref EPSG:4326", err)
	}

	src, dst := native, geo
	if dir == FromGeographic {
		src, dst = geo, native
	}
	tr, err := godal.NewTransform(src, dst)
	if err != nil {
		native.Close()
		geo.Close()
		return nil, errs.New(errs.KindTransformBuild, fmt.Sprintf("EPSG:%d %s", epsg, dir), err)
	}
	return &gdalTransformer{tr: tr, native: native, geo: geo}, nil
}

type gdalTransformer struct {
	tr     *godal.Transform
	native *godal.SpatialRef
	geo    *godal.SpatialRef
}

func (g *gdalTransformer) Transform(xs, ys []float64) error {
	ok := make([]bool, len(xs))
	if err := g.tr.TransformEx(xs, ys, nil, ok); err != nil {
		return fmt.Errorf("gdal transform: %w", err)
	}
	for i, v := range ok {
		if !v {
			return fmt.Errorf("gdal transform: point %d (%f, %f) failed", i, xs[i], ys[i])
		}
	}
	return nil
}

func (g *gdalTransformer) Close() {
	g.tr.Close()
	g.native.Close()
	g.geo.Close()
}
