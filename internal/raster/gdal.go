package raster

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/mohammed-shakir/elevation-index/internal/core/errs"
)

var registerOnce sync.Once

// GDALOpener opens rasters read-only through godal.
type GDALOpener struct{}

func NewGDALOpener() GDALOpener {
	registerOnce.Do(godal.RegisterAll)
	return GDALOpener{}
}

func (GDALOpener) Open(path string) (Dataset, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, errs.New(errs.KindRasterOpen, "open "+path, err)
	}
	return &gdalDataset{path: path, ds: ds}, nil
}

type gdalDataset struct {
	path string
	ds   *godal.Dataset
}

func (d *gdalDataset) Metadata() (Metadata, error) {
	gt, err := d.ds.GeoTransform()
	if err != nil {
		return Metadata{}, errs.New(errs.KindRasterRead, "geotransform "+d.path, err)
	}
	st := d.ds.Structure()
	return Metadata{
		Path:         d.path,
		Projection:   d.ds.Projection(),
		GeoTransform: GeoTransform(gt),
		Width:        st.SizeX,
		Height:       st.SizeY,
	}, nil
}

func (d *gdalDataset) ReadPixel(col, row int) (float64, error) {
	op := fmt.Sprintf("read %s pixel (%d, %d)", d.path, col, row)
	bands := d.ds.Bands()
	if len(bands) == 0 {
		return 0, errs.Newf(errs.KindRasterRead, "%s: no raster bands", op)
	}
	band := bands[0]
	st := d.ds.Structure()
	if col < 0 || row < 0 || col >= st.SizeX || row >= st.SizeY {
		return 0, errs.Newf(errs.KindRasterRead, "%s: outside %dx%d", op, st.SizeX, st.SizeY)
	}

	v, err := readOne(band, col, row)
	if err != nil {
		return 0, errs.New(errs.KindRasterRead, op, err)
	}
	if nodata, ok := band.NoData(); ok && v == nodata {
		return 0, errs.New(errs.KindRasterRead, op, ErrNoData)
	}
	return v, nil
}

func readOne(band godal.Band, col, row int) (float64, error) {
	switch dt := band.Structure().DataType; dt {
	case godal.Byte:
		buf := make([]byte, 1)
		err := band.Read(col, row, buf, 1, 1)
		return float64(buf[0]), err
	case godal.Int16:
		buf := make([]int16, 1)
		err := band.Read(col, row, buf, 1, 1)
		return float64(buf[0]), err
	case godal.UInt16:
		buf := make([]uint16, 1)
		err := band.Read(col, row, buf, 1, 1)
		return float64(buf[0]), err
	case godal.Int32:
		buf := make([]int32, 1)
		err := band.Read(col, row, buf, 1, 1)
		return float64(buf[0]), err
	case godal.UInt32:
		buf := make([]uint32, 1)
		err := band.Read(col, row, buf, 1, 1)
		return float64(buf[0]), err
	case godal.Float32:
		buf := make([]float32, 1)
		err := band.Read(col, row, buf, 1, 1)
		return float64(buf[0]), err
	case godal.Float64:
		buf := make([]float64, 1)
		err := band.Read(col, row, buf, 1, 1)
		return buf[0], err
	default:
		return 0, fmt.Errorf("unsupported band data type %s", dt)
	}
}

func (d *gdalDataset) Close() {
	_ = d.ds.Close()
}
