package raster

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/tiff"
)

// Grid is a single band in row-major order.
type Grid struct {
	Width, Height int
	Pixels        []float64
}

// TIFFReader reads integer gray TIFF rasters. Floating point GeoTIFFs need
// the GDAL reader (built with the gdal tag).
type TIFFReader struct{}

func (TIFFReader) ReadPixels(path string) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return Grid{}, fmt.Errorf("failed to open raster: %w", err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return Grid{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return gridOf(img), nil
}

func gridOf(img image.Image) Grid {
	b := img.Bounds()
	g := Grid{Width: b.Dx(), Height: b.Dy(), Pixels: make([]float64, 0, b.Dx()*b.Dy())}
	switch m := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g.Pixels = append(g.Pixels, float64(m.GrayAt(x, y).Y))
			}
		}
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g.Pixels = append(g.Pixels, float64(m.Gray16At(x, y).Y))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				v := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				g.Pixels = append(g.Pixels, float64(v.Y))
			}
		}
	}
	return g
}

// WriteMask writes a flood mask as an 8-bit gray TIFF, 1 for flooded and 0
// for dry pixels.
func WriteMask(path string, width, height int, flooded []bool) error {
	if len(flooded) != width*height {
		return fmt.Errorf("mask has %d pixels, want %dx%d", len(flooded), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range flooded {
		if v {
			img.Pix[i] = 1
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mask: %w", err)
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode mask: %w", err)
	}
	return f.Close()
}
