//go:build gdal

package raster

import (
	"fmt"

	"github.com/lukeroth/gdal"
)

// GDALReader reads the first band of any raster format GDAL supports,
// including Float32 GeoTIFFs. It needs cgo and libgdal.
type GDALReader struct{}

func (GDALReader) ReadPixels(path string) (Grid, error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return Grid{}, fmt.Errorf("failed to open raster %s: %w", path, err)
	}
	defer ds.Close()

	band := ds.RasterBand(1)
	xSize, ySize := band.XSize(), band.YSize()
	data := make([]float64, xSize*ySize)
	if err := band.IO(gdal.RWFlag(gdal.Read), 0, 0, xSize, ySize, data, xSize, ySize, 0, 0); err != nil {
		return Grid{}, fmt.Errorf("failed to read band of %s: %w", path, err)
	}
	return Grid{Width: xSize, Height: ySize, Pixels: data}, nil
}

func init() {
	defaultReader = GDALReader{}
}
