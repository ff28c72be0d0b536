// Package memstore is an in-memory index.Store: a list of footprints and a
// planar point-in-polygon scan.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/index"
)

var _ index.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	nextID int64
	recs   []model.FootprintRecord
}

func New() *Store { return &Store{} }

func (s *Store) RecreateSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.recs = nil
	s.nextID = 0
	s.mu.Unlock()
	return nil
}

func (s *Store) Insert(ctx context.Context, rec model.FootprintRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	rec.Footprint = clonePolygon(rec.Footprint)
	s.recs = append(s.recs, rec)
	return rec.ID, nil
}

// FindContaining treats the ring boundary as inside.
func (s *Store) FindContaining(ctx context.Context, p orb.Point) ([]model.FootprintRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []model.FootprintRecord
	for _, r := range s.recs {
		if !r.Footprint.Bound().Contains(p) {
			continue
		}
		if planar.PolygonContains(r.Footprint, p) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Resolution != out[j].Resolution {
			return out[i].Resolution > out[j].Resolution
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

func clonePolygon(p orb.Polygon) orb.Polygon {
	if p == nil {
		return nil
	}
	return p.Clone()
}
