package raster

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// BoundingBox is a georeferenced extent with its size in pixels.
type BoundingBox struct {
	UpperLeftX, UpperLeftY   float64
	LowerRightX, LowerRightY float64
	Width, Height            int
}

// Toolkit is the external geospatial toolkit used to bring raw products onto
// a common grid.
type Toolkit interface {
	// SRS returns the coordinate reference of a raster, e.g. EPSG:32630.
	SRS(ctx context.Context, path string) (string, error)
	Reproject(ctx context.Context, src, dst, srs string) error
	Mosaic(ctx context.Context, dst string, srcs []string) error
	Crop(ctx context.Context, src, dst string, box BoundingBox, srs string) error
	Bounds(ctx context.Context, path string) (BoundingBox, error)
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

var _ Toolkit = (*GDALTools)(nil)

// GDALTools drives the GDAL command line utilities.
type GDALTools struct {
	run Runner
}

// NewGDALTools returns a Toolkit running GDAL binaries from PATH. A nil
// runner uses os/exec.
func NewGDALTools(run Runner) *GDALTools {
	if run == nil {
		run = execRunner
	}
	return &GDALTools{run: run}
}

func (g *GDALTools) SRS(ctx context.Context, path string) (string, error) {
	out, err := g.run(ctx, "gdalsrsinfo", "--single-line", "-o", "epsg", path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (g *GDALTools) Reproject(ctx context.Context, src, dst, srs string) error {
	_, err := g.run(ctx, "gdalwarp", "-t_srs", srs, "-overwrite", src, dst)
	return err
}

func (g *GDALTools) Mosaic(ctx context.Context, dst string, srcs []string) error {
	_, err := g.run(ctx, "gdalbuildvrt", append([]string{dst}, srcs...)...)
	return err
}

func (g *GDALTools) Crop(ctx context.Context, src, dst string, box BoundingBox, srs string) error {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	_, err := g.run(ctx, "gdal_translate",
		"-strict", "-r", "bilinear",
		"-outsize", strconv.Itoa(box.Width), strconv.Itoa(box.Height),
		"-projwin_srs", srs,
		"-projwin", f(box.UpperLeftX), f(box.UpperLeftY), f(box.LowerRightX), f(box.LowerRightY),
		src, dst,
	)
	return err
}

// Bounds reads the extent from gdalinfo's JSON report. Corners follow the
// affine geotransform.
func (g *GDALTools) Bounds(ctx context.Context, path string) (BoundingBox, error) {
	out, err := g.run(ctx, "gdalinfo", "-json", path)
	if err != nil {
		return BoundingBox{}, err
	}
	var info struct {
		Size         []int     `json:"size"`
		GeoTransform []float64 `json:"geoTransform"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return BoundingBox{}, fmt.Errorf("failed to parse gdalinfo output: %w", err)
	}
	if len(info.Size) != 2 || len(info.GeoTransform) != 6 {
		return BoundingBox{}, fmt.Errorf("gdalinfo: %s has no size or geotransform", path)
	}
	return boundsOf(info.Size[0], info.Size[1], info.GeoTransform), nil
}

func boundsOf(width, height int, gt []float64) BoundingBox {
	geo := func(px, py float64) (float64, float64) {
		return gt[0] + px*gt[1] + py*gt[2], gt[3] + px*gt[4] + py*gt[5]
	}
	ulx, uly := geo(0, 0)
	lrx, lry := geo(float64(width), float64(height))
	return BoundingBox{
		UpperLeftX: ulx, UpperLeftY: uly,
		LowerRightX: lrx, LowerRightY: lry,
		Width: width, Height: height,
	}
}
