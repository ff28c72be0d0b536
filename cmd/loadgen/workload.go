package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"sort"
	"strconv"
	"strings"

	h3 "github.com/uber/h3-go/v4"
)

type point struct{ Lat, Lon float64 }

// gridPoints returns the centres of the H3 cells within k rings of the cell
// holding (lat, lon), in a stable order, hottest (the centre) first.
func gridPoints(lat, lon float64, res, k int) ([]point, error) {
	centre, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, res)
	if err != nil {
		return nil, fmt.Errorf("centre cell: %w", err)
	}
	// ring by ring so nearer cells come first
	seen := map[h3.Cell]bool{}
	var disk []h3.Cell
	for d := 0; d <= k; d++ {
		ring, err := h3.GridDisk(centre, d)
		if err != nil {
			return nil, fmt.Errorf("grid disk: %w", err)
		}
		sort.Slice(ring, func(i, j int) bool { return ring[i] < ring[j] })
		for _, c := range ring {
			if !seen[c] {
				seen[c] = true
				disk = append(disk, c)
			}
		}
	}

	out := make([]point, 0, len(disk))
	for _, c := range disk {
		ll, err := h3.CellToLatLng(c)
		if err != nil {
			return nil, fmt.Errorf("cell centre %s: %w", c, err)
		}
		out = append(out, point{Lat: round6(ll.Lat), Lon: round6(ll.Lng)})
	}
	return out, nil
}

// round6 keeps query strings short and repeated points identical.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// pickBatch draws n points with a Zipf skew toward the start of pts.
func pickBatch(z *rand.Zipf, pts []point, n int) []point {
	out := make([]point, 0, n)
	for len(out) < n {
		v := z.Uint64()
		if v >= uint64(len(pts)) {
			continue
		}
		out = append(out, pts[v])
	}
	return out
}

func getURL(base string, batch []point) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("bad target: %w", err)
	}
	items := make([]string, len(batch))
	for i, p := range batch {
		items[i] = strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
	}
	q := u.Query()
	q.Set("locations", strings.Join(items, "|"))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func postBody(batch []point) ([]byte, error) {
	type loc struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	req := struct {
		Locations []loc `json:"locations"`
	}{Locations: make([]loc, len(batch))}
	for i, p := range batch {
		req.Locations[i] = loc{Latitude: p.Lat, Longitude: p.Lon}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return buf.Bytes(), nil
}

// countErrors returns how many results in a lookup response carry an error.
func countErrors(body []byte) (int, error) {
	var resp struct {
		Results []struct {
			Error *string `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	n := 0
	for _, r := range resp.Results {
		if r.Error != nil {
			n++
		}
	}
	return n, nil
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
