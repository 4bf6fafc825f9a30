package raster

// PixelReader flattens the first band of a raster in row-major order.
type PixelReader interface {
	ReadPixels(path string) (Grid, error)
}

var defaultReader PixelReader = TIFFReader{}

// DefaultReader is the GDAL reader when built with the gdal tag, the TIFF
// reader otherwise.
func DefaultReader() PixelReader { return defaultReader }
