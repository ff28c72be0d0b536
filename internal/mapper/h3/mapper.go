package h3mapper

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/elevation-index/internal/core/model"
	"github.com/mohammed-shakir/elevation-index/internal/mapper"
)

var _ mapper.Interface = (*Mapper)(nil)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

func (m *Mapper) CellForPoint(lat, lon float64, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell for %v,%v: %w", lat, lon, err)
	}
	return c.String(), nil
}

// CellsForBBox over-covers: polyfill only returns cells whose centre lies in
// the box, so the corner and centre cells are added and the set is grown by
// one ring.
func (m *Mapper) CellsForBBox(bb model.BBox, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if !bb.Valid() {
		return nil, fmt.Errorf("invalid bbox %s", bb)
	}

	seeds := map[h3.Cell]struct{}{}
	if bb.X1 < bb.X2 && bb.Y1 < bb.Y2 {
		outer := h3.GeoLoop{
			{Lat: bb.Y1, Lng: bb.X1},
			{Lat: bb.Y1, Lng: bb.X2},
			{Lat: bb.Y2, Lng: bb.X2},
			{Lat: bb.Y2, Lng: bb.X1},
		}
		// v4 returns ([]h3.Cell, error)
		cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 polyfill: %w", err)
		}
		for _, c := range cells {
			seeds[c] = struct{}{}
		}
	}
	for _, ll := range []h3.LatLng{
		{Lat: bb.Y1, Lng: bb.X1},
		{Lat: bb.Y1, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X1},
		{Lat: (bb.Y1 + bb.Y2) / 2, Lng: (bb.X1 + bb.X2) / 2},
	} {
		c, err := h3.LatLngToCell(ll, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell: %w", err)
		}
		seeds[c] = struct{}{}
	}

	out := make(map[string]struct{}, len(seeds)*7)
	for c := range seeds {
		disk, err := h3.GridDisk(c, 1)
		if err != nil {
			return nil, fmt.Errorf("h3 grid disk: %w", err)
		}
		for _, d := range disk {
			out[d.String()] = struct{}{}
		}
	}
	return sorted(out), nil
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
