// Package sampler reads the elevation of one point from one raster.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/mohammed-shakir/elevation-index/internal/core/errs"
	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/core/observability"
	"github.com/mohammed-shakir/elevation-index/internal/crs"
	"github.com/mohammed-shakir/elevation-index/internal/raster"
)

type Sampler struct {
	root     string
	opener   raster.Opener
	resolver *crs.Resolver
	log      *slog.Logger
}

// New returns a Sampler resolving record paths against root.
func New(root string, opener raster.Opener, resolver *crs.Resolver, log *slog.Logger) *Sampler {
	if log == nil {
		log = slog.Default()
	}
	return &Sampler{root: root, opener: opener, resolver: resolver, log: log.With("component", "sampler")}
}

// Sample never fails: any error is logged and reported in the result.
func (s *Sampler) Sample(ctx context.Context, path string, lat, lon float64) model.CoordinateResult {
	v, err := s.sample(ctx, path, lat, lon)
	if err != nil {
		observability.IncSample(errs.KindOf(err).String())
		s.log.ErrorContext(ctx, "sample failed", "path", path, "lat", lat, "lon", lon, "err", err)
		return model.Failure(lat, lon, model.InternalError(lat, lon))
	}
	observability.IncSample("ok")
	return model.Elevation(lat, lon, v)
}

func (s *Sampler) sample(ctx context.Context, path string, lat, lon float64) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ds, err := s.opener.Open(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		return 0, err
	}
	defer ds.Close()

	md, err := ds.Metadata()
	if err != nil {
		return 0, err
	}
	tr, err := s.resolver.Resolve(md.Projection, crs.FromGeographic)
	if err != nil {
		return 0, err
	}
	defer tr.Close()

	xs, ys := []float64{lon}, []float64{lat}
	if err := tr.Apply(xs, ys); err != nil {
		return 0, err
	}

	// the inverse geotransform maps any affine grid, rotated or sheared,
	// without the per-axis resolution scores used for ranking
	colF, rowF, err := md.GeoTransform.PixelFor(xs[0], ys[0])
	if err != nil {
		return 0, errs.New(errs.KindRasterRead, "pixel "+path, err)
	}
	col, row, ok := md.Pixel(colF, rowF)
	s.log.DebugContext(ctx, "pixel mapped",
		"path", path, "epsg", tr.EPSG, "x", xs[0], "y", ys[0],
		"col", col, "row", row)
	if !ok {
		return 0, errs.Newf(errs.KindRasterRead, "%s: pixel (%d, %d) outside %dx%d", path, col, row, md.Width, md.Height)
	}

	v, err := ds.ReadPixel(col, row)
	if err != nil {
		return 0, err
	}
	return truncate(v)
}

// truncate casts toward zero like a C cast, rejecting values int32 cannot hold.
func truncate(v float64) (int32, error) {
	if math.IsNaN(v) || v >= math.MaxInt32+1 || v <= math.MinInt32-1 {
		return 0, errs.New(errs.KindRasterRead, "elevation", fmt.Errorf("value %v not representable", v))
	}
	return int32(v), nil
}
