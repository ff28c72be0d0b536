// Package keys derives cache keys for lookup results.
package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	prefix = "elev"

	// Generation holds the index generation; bumping it orphans every
	// result cached under the previous one.
	Generation = prefix + ":gen"
)

// PointKey is the L1 key of a query point. Bit-identical coordinates give
// the same key; no rounding is applied.
func PointKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'g', -1, 64) + "," + strconv.FormatFloat(lon, 'g', -1, 64)
}

// ParsePointKey reverses PointKey.
func ParsePointKey(k string) (lat, lon float64, ok bool) {
	a, b, found := strings.Cut(k, ",")
	if !found {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// Result is the Redis key of a cached result. The point key is hashed so
// the key length stays fixed; the full key is stored with the value.
func Result(gen int64, pointKey string) string {
	return fmt.Sprintf("%s:r:%d:%016x", prefix, gen, xxhash.Sum64String(pointKey))
}

// Cell is the Redis set listing the point keys cached inside one H3 cell.
func Cell(gen int64, res int, cell string) string {
	return fmt.Sprintf("%s:c:%d:%d:%s", prefix, gen, res, strings.ToLower(strings.TrimSpace(cell)))
}
