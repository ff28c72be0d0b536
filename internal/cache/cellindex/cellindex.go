// Package cellindex buckets cached point keys by H3 cell so a bounding box
// can be turned into the set of cached points it may contain.
package cellindex

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mohammed-shakir/elevation-index/internal/cache/keys"
	"github.com/mohammed-shakir/elevation-index/internal/cache/redisstore"
	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/mapper"
)

type CellIndex interface {
	Add(ctx context.Context, gen int64, lat, lon float64, pointKey string) error
	// PointKeys returns the point keys stored under gen that lie inside bb.
	PointKeys(ctx context.Context, gen int64, bb model.BBox) ([]string, error)
}

type redisCellIndex struct {
	cli *redisstore.Client
	m   mapper.Interface
	res int
	ttl time.Duration
}

// NewRedisIndex stores one Redis set per cell at resolution res. Sets live
// as long as the results they point to.
func NewRedisIndex(cli *redisstore.Client, m mapper.Interface, res int, ttl time.Duration) CellIndex {
	return &redisCellIndex{cli: cli, m: m, res: res, ttl: ttl}
}

func (ci *redisCellIndex) Add(ctx context.Context, gen int64, lat, lon float64, pointKey string) error {
	cell, err := ci.m.CellForPoint(lat, lon, ci.res)
	if err != nil {
		return fmt.Errorf("cellindex: %w", err)
	}
	key := keys.Cell(gen, ci.res, cell)
	if err := ci.cli.SAdd(ctx, key, ci.ttl, pointKey); err != nil {
		return fmt.Errorf("cellindex add %q: %w", key, err)
	}
	return nil
}

func (ci *redisCellIndex) PointKeys(ctx context.Context, gen int64, bb model.BBox) ([]string, error) {
	cells, err := ci.m.CellsForBBox(bb, ci.res)
	if err != nil {
		return nil, fmt.Errorf("cellindex: %w", err)
	}
	seen := map[string]struct{}{}
	var out []string
	for _, cell := range cells {
		members, err := ci.cli.SMembers(ctx, keys.Cell(gen, ci.res, cell))
		if err != nil {
			return nil, fmt.Errorf("cellindex members of %s: %w", cell, err)
		}
		for _, pk := range members {
			if _, dup := seen[pk]; dup {
				continue
			}
			lat, lon, ok := keys.ParsePointKey(pk)
			if !ok || !bb.Contains(lat, lon) {
				continue
			}
			seen[pk] = struct{}{}
			out = append(out, pk)
		}
	}
	sort.Strings(out)
	return out, nil
}
