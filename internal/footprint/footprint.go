// Package footprint walks a raster archive and turns every raster into an
// index record: its WGS84 footprint and resolution score.
package footprint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohammed-shakir/elevation-index/internal/core/errs"
	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/core/observability"
	"github.com/mohammed-shakir/elevation-index/internal/crs"
	"github.com/mohammed-shakir/elevation-index/internal/index"
	"github.com/mohammed-shakir/elevation-index/internal/raster"
)

var (
	ErrDegenerate       = errors.New("degenerate raster extent")
	ErrInvalidFootprint = errors.New("invalid footprint polygon")
)

// Skip reasons reported in Stats and metrics.
const (
	ReasonOpen       = "open"
	ReasonMetadata   = "metadata"
	ReasonProjection = "projection"
	ReasonSpatialRef = "spatial_ref"
	ReasonTransform  = "transform"
	ReasonDegenerate = "degenerate"
	ReasonInvalid    = "invalid_footprint"
	ReasonInsert     = "insert"
	ReasonOther      = "other"
)

const (
	resultBuilt   = "built"
	resultIndexed = "indexed"
	resultSkipped = "skipped"
)

var errInsert = errors.New("insert")

// sidecar files GDAL writes next to rasters; never rasters themselves
var sidecars = []string{".aux.xml", ".ovr", ".prj", ".tfw", ".tfwx", ".wld", ".md5", ".msk"}

type Stats struct {
	Seen    int
	Indexed int
	Skipped map[string]int
}

func (s *Stats) skip(reason string) {
	if s.Skipped == nil {
		s.Skipped = map[string]int{}
	}
	s.Skipped[reason]++
}

func (s Stats) SkippedTotal() int {
	n := 0
	for _, v := range s.Skipped {
		n += v
	}
	return n
}

type Builder struct {
	opener   raster.Opener
	resolver *crs.Resolver
	log      *slog.Logger
}

func NewBuilder(opener raster.Opener, resolver *crs.Resolver, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{opener: opener, resolver: resolver, log: log.With("component", "footprint")}
}

// BuildOne computes the record of the raster at root/rel. The record's path
// is rel with forward slashes; its ID is left for the store to assign.
func (b *Builder) BuildOne(root, rel string) (model.FootprintRecord, error) {
	full := filepath.Join(root, rel)
	ds, err := b.opener.Open(full)
	if err != nil {
		return model.FootprintRecord{}, err
	}
	defer ds.Close()

	md, err := ds.Metadata()
	if err != nil {
		return model.FootprintRecord{}, err
	}
	tr, err := b.resolver.Resolve(md.Projection, crs.ToGeographic)
	if err != nil {
		return model.FootprintRecord{}, err
	}
	defer tr.Close()

	x0, y0, x1, y1 := md.Corners()
	xs, ys := []float64{x0, x1}, []float64{y0, y1}
	if err := tr.Apply(xs, ys); err != nil {
		return model.FootprintRecord{}, err
	}

	res, ok := raster.ResolutionScore(md.Width, xs[0], xs[1])
	if !ok {
		return model.FootprintRecord{}, fmt.Errorf("%s: %w (width %d, lon %v..%v)", rel, ErrDegenerate, md.Width, xs[0], xs[1])
	}
	rec := model.FootprintRecord{
		Path:       filepath.ToSlash(rel),
		Resolution: res,
		Footprint:  model.NewFootprint(xs[0], xs[1], ys[0], ys[1]),
	}
	if err := rec.Validate(); err != nil {
		return model.FootprintRecord{}, fmt.Errorf("%s: %w: %w", rel, ErrInvalidFootprint, err)
	}
	b.log.Debug("footprint built",
		"path", rec.Path, "epsg", tr.EPSG, "axis", tr.Axis.String(),
		"resolution", res, "native", [4]float64{x0, y0, x1, y1}, "wgs84", [4]float64{xs[0], ys[0], xs[1], ys[1]})
	return rec, nil
}

// Build computes the records of every raster under root without storing them.
func (b *Builder) Build(ctx context.Context, root string) ([]model.FootprintRecord, Stats, error) {
	var (
		out   []model.FootprintRecord
		stats Stats
	)
	err := b.walk(ctx, root, func(rel string) {
		stats.Seen++
		rec, err := b.BuildOne(root, rel)
		if err != nil {
			b.skipped(&stats, rel, err)
			return
		}
		observability.IncIngest(resultBuilt, "")
		out = append(out, rec)
	})
	return out, stats, err
}

// Regenerate rebuilds the index from scratch. A schema failure or an
// unreadable root aborts; a bad file is logged and skipped.
func (b *Builder) Regenerate(ctx context.Context, root string, store index.Store) (Stats, error) {
	var stats Stats
	if err := store.RecreateSchema(ctx); err != nil {
		return stats, fmt.Errorf("recreate schema: %w", err)
	}
	err := b.walk(ctx, root, func(rel string) {
		stats.Seen++
		rec, err := b.BuildOne(root, rel)
		if err != nil {
			b.skipped(&stats, rel, err)
			return
		}
		id, err := store.Insert(ctx, rec)
		if err != nil {
			b.skipped(&stats, rel, fmt.Errorf("%w: %w", errInsert, err))
			return
		}
		stats.Indexed++
		observability.IncIngest(resultIndexed, "")
		b.log.Debug("raster indexed", "path", rec.Path, "id", id, "resolution", rec.Resolution)
	})
	if err != nil {
		return stats, err
	}
	b.log.Info("index regenerated", "root", root, "seen", stats.Seen, "indexed", stats.Indexed, "skipped", stats.SkippedTotal())
	return stats, nil
}

func (b *Builder) skipped(stats *Stats, rel string, err error) {
	reason := Reason(err)
	stats.skip(reason)
	observability.IncIngest(resultSkipped, reason)
	b.log.Warn("raster skipped", "path", rel, "reason", reason, "err", err)
}

// Reason maps a BuildOne or insert failure to its skip reason.
func Reason(err error) string {
	switch {
	case errors.Is(err, errInsert):
		return ReasonInsert
	case errors.Is(err, ErrDegenerate):
		return ReasonDegenerate
	case errors.Is(err, ErrInvalidFootprint):
		return ReasonInvalid
	}
	switch errs.KindOf(err) {
	case errs.KindRasterOpen:
		return ReasonOpen
	case errs.KindRasterRead:
		return ReasonMetadata
	case errs.KindProjectionParse:
		return ReasonProjection
	case errs.KindSpatialRef:
		return ReasonSpatialRef
	case errs.KindTransformBuild:
		return ReasonTransform
	}
	return ReasonOther
}

// walk calls fn with the root-relative path of every candidate file, in
// lexical order. Errors below the root are logged and the entry skipped.
func (b *Builder) walk(ctx context.Context, root string, fn func(rel string)) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("archive root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root %s: not a directory", root)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == root {
				return err
			}
			b.log.Warn("archive entry unreadable", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !candidate(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fn(rel)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	return nil
}

func candidate(name string) bool {
	name = strings.ToLower(name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, s := range sidecars {
		if strings.HasSuffix(name, s) {
			return false
		}
	}
	return true
}
