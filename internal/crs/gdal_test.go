//go:build cgo

package crs

import (
	"math"
	"testing"
)

const utm32FullWKT = `PROJCS["ETRS89 / UTM zone 32N",GEOGCS["ETRS89",DATUM["European_Terrestrial_Reference_System_1989",` +
	`SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],TOWGS84[0,0,0,0,0,0,0],AUTHORITY["EPSG","6258"]],` +
	`PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],` +
	`AUTHORITY["EPSG","4258"]],PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],` +
	`PARAMETER["central_meridian",9],PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",500000],` +
	`PARAMETER["false_northing",0],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],` +
	`AXIS["Northing",NORTH],AUTHORITY["EPSG","25832"]]`

// 500000E on the central meridian, northing of 48N on GRS80.
const utm32Northing48 = 5316300.224

func TestGDALBackend_UTM32DefaultTable(t *testing.T) {
	b := GDALBackend{}
	r := NewResolver(b, DefaultAxisTableFor(b))

	fwd, err := r.Resolve(utm32FullWKT, ToGeographic)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer fwd.Close()
	xs, ys := []float64{500000}, []float64{utm32Northing48}
	if err := fwd.Apply(xs, ys); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if math.Abs(xs[0]-9) > 1e-6 || math.Abs(ys[0]-48) > 1e-4 {
		t.Fatalf("got lon=%f lat=%f want lon=9 lat=48", xs[0], ys[0])
	}

	inv, err := r.Resolve(utm32FullWKT, FromGeographic)
	if err != nil {
		t.Fatalf("resolve inverse: %v", err)
	}
	defer inv.Close()
	if err := inv.Apply(xs, ys); err != nil {
		t.Fatalf("apply inverse: %v", err)
	}
	if math.Abs(xs[0]-500000) > 0.01 || math.Abs(ys[0]-utm32Northing48) > 0.01 {
		t.Fatalf("round trip got %f,%f", xs[0], ys[0])
	}
}
