package raster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/pool"
)

// Cache subdirectories written by Prepare.
const (
	ReprojectedDir = "reprojected"
	MosaicDir      = "vrt"
	CroppedDir     = "cropped"
)

// Preparer aligns raw acquisitions onto the area of interest grid.
type Preparer struct {
	Tools    Toolkit
	CacheDir string
	// SRS is the target reference, e.g. EPSG:32630.
	SRS     string
	Workers int
	Logger  *zap.Logger
}

// Prepare reprojects rasters not in the target SRS, mosaics acquisitions
// sharing a (polarization, date) and crops every result to the bounding box
// of aoi. It returns the cropped rasters.
func (p *Preparer) Prepare(ctx context.Context, infos []Info, aoi string) ([]Info, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{ReprojectedDir, MosaicDir, CroppedDir} {
		if err := os.MkdirAll(filepath.Join(p.CacheDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	infos = slices.Clone(infos)
	var reprojected atomic.Int64
	err := pool.Each(ctx, p.Workers, len(infos), func(ctx context.Context, i int) error {
		info := &infos[i]
		srs, err := p.Tools.SRS(ctx, info.Path)
		if err != nil {
			return fmt.Errorf("failed to read SRS of %s: %w", info.Path, err)
		}
		info.SRS = srs
		if srs == p.SRS {
			return nil
		}
		base := strings.TrimSuffix(filepath.Base(info.Path), filepath.Ext(info.Path))
		dst := filepath.Join(p.CacheDir, ReprojectedDir, "repd_"+base)
		if err := p.Tools.Reproject(ctx, info.Path, dst, p.SRS); err != nil {
			return fmt.Errorf("failed to reproject %s: %w", info.Path, err)
		}
		info.Path, info.SRS = dst, p.SRS
		reprojected.Add(1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("reprojection done",
		zap.Int64("reprojected", reprojected.Load()),
		zap.Int64("skipped", int64(len(infos))-reprojected.Load()))

	mosaics, err := p.mosaic(ctx, infos, logger)
	if err != nil {
		return nil, err
	}

	box, err := p.Tools.Bounds(ctx, aoi)
	if err != nil {
		return nil, fmt.Errorf("failed to read area of interest: %w", err)
	}
	cropped := make([]Info, len(mosaics))
	err = pool.Each(ctx, p.Workers, len(mosaics), func(ctx context.Context, i int) error {
		m := mosaics[i]
		dst := filepath.Join(p.CacheDir, CroppedDir, CroppedName(m.Polarization, m.Date))
		if err := p.Tools.Crop(ctx, m.Path, dst, box, p.SRS); err != nil {
			return fmt.Errorf("failed to crop %s: %w", m.Path, err)
		}
		cropped[i] = Info{Path: dst, Polarization: m.Polarization, Date: m.Date, SRS: p.SRS}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("cropping done", zap.Int("rasters", len(cropped)))
	return cropped, nil
}

func (p *Preparer) mosaic(ctx context.Context, infos []Info, logger *zap.Logger) ([]Info, error) {
	groups := make(map[string][]Info)
	for _, info := range infos {
		key := string(info.Polarization) + "_" + info.Date
		groups[key] = append(groups[key], info)
	}
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var (
		out = make([]Info, len(keys))
		n   atomic.Int64
	)
	err := pool.Each(ctx, p.Workers, len(keys), func(ctx context.Context, i int) error {
		group := groups[keys[i]]
		if len(group) == 1 {
			out[i] = group[0]
			return nil
		}
		dst := filepath.Join(p.CacheDir, MosaicDir, keys[i]+".vrt")
		srcs := make([]string, len(group))
		for j, info := range group {
			srcs[j] = info.Path
		}
		if err := p.Tools.Mosaic(ctx, dst, srcs); err != nil {
			return fmt.Errorf("failed to mosaic %s: %w", keys[i], err)
		}
		out[i] = Info{Path: dst, Polarization: group[0].Polarization, Date: group[0].Date, SRS: group[0].SRS}
		n.Add(1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("mosaicking done", zap.Int("rasters", len(out)), zap.Int64("mosaicked", n.Load()))
	return out, nil
}
