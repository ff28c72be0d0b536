package kafka

import "time"

// WireEvent is the compact form: invalidate the areas of the named H3 cells.
// Version orders events per cell; a cell ignores versions it has seen.
type WireEvent struct {
	H3Cells []string  `json:"h3_cells,omitempty"`
	Version uint64    `json:"version"`
	TS      time.Time `json:"ts"`
}
