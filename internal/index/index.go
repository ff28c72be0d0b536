// Package index defines the spatial index the lookup path queries: raster
// footprints keyed by id, searchable by point containment.
package index

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/elevation-index/internal/core/model"
)

type Store interface {
	// RecreateSchema drops every record and rebuilds an empty index.
	RecreateSchema(ctx context.Context) error
	// Insert stores rec and returns the id it was assigned.
	Insert(ctx context.Context, rec model.FootprintRecord) (int64, error)
	// FindContaining returns the records whose footprint contains p
	// (lon, lat), highest resolution first, ties by ascending id. An empty
	// result means no coverage.
	FindContaining(ctx context.Context, p orb.Point) ([]model.FootprintRecord, error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
