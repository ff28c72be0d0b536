// Package crs resolves a raster's native coordinate reference system and
// builds transforms between it and WGS84 longitude/latitude.
package crs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/elevation-index/internal/core/errs"
)

// EPSG code of WGS84 geographic coordinates.
const WGS84 = 4326

// epsgMarker precedes the code in both AUTHORITY["EPSG","25832"] and ID["EPSG",25832].
const epsgMarker = `"EPSG",`

// ParseEPSG extracts the EPSG code of the outermost CRS in a WKT projection
// descriptor: the last EPSG authority block wins. It is a narrow string
// parser, not a WKT reader.
func ParseEPSG(descriptor string) (int, error) {
	i := strings.LastIndex(descriptor, epsgMarker)
	if i < 0 {
		return 0, errs.New(errs.KindProjectionParse, "parse epsg", errors.New("no EPSG authority block"))
	}
	rest := strings.TrimSpace(descriptor[i+len(epsgMarker):])
	rest = strings.TrimPrefix(rest, `"`)
	end := strings.IndexAny(rest, `"],`)
	if end < 0 {
		end = len(rest)
	}
	token := strings.TrimSpace(rest[:end])
	code, err := strconv.Atoi(token)
	if err != nil {
		return 0, errs.New(errs.KindProjectionParse, "parse epsg", fmt.Errorf("code %q: %w", token, err))
	}
	if code <= 0 {
		return 0, errs.New(errs.KindProjectionParse, "parse epsg", fmt.Errorf("code %d out of range", code))
	}
	return code, nil
}
