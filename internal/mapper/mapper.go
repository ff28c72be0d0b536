// Package mapper converts between geographic coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/elevation-index/internal/core/model"
)

type Interface interface {
	CellForPoint(lat, lon float64, res int) (string, error)
	// CellsForBBox returns every cell that may hold a point inside bb.
	CellsForBBox(bb model.BBox, res int) ([]string, error)
}
