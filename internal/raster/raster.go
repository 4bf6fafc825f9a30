// Package raster locates and reads single-band SAR rasters.
package raster

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

var (
	ErrUnknownPolarization = errors.New("unknown polarization")
	ErrUnrecognizedName    = errors.New("unrecognized raster file name")
)

type Polarization string

const (
	VH Polarization = "VH"
	VV Polarization = "VV"
)

// Polarizations in processing order.
var Polarizations = []Polarization{VH, VV}

func ParsePolarization(s string) (Polarization, error) {
	switch p := Polarization(strings.ToUpper(strings.TrimSpace(s))); p {
	case VH, VV:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolarization, s)
}

// Info describes one acquisition file.
type Info struct {
	Path         string
	Polarization Polarization
	// Date is YYYYMMDD.
	Date string
	// SRS is the coordinate reference, e.g. EPSG:32630. Empty until looked up.
	SRS string
}

var (
	asfDate = regexp.MustCompile(`(\d{8})T\d{6}`)
	asfPol  = regexp.MustCompile(`_(VH|VV)(?:[._]|$)`)
)

// ParseASFName extracts the acquisition date and polarization from an ASF
// Sentinel-1 RTC product name such as
// S1A_IW_20190221T050123_DVP_RTC10_G_gpuned_5C2B_VH.tif.
func ParseASFName(path string) (Info, error) {
	name := filepath.Base(path)
	date := asfDate.FindStringSubmatch(name)
	pol := asfPol.FindStringSubmatch(name)
	if date == nil || pol == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrUnrecognizedName, name)
	}
	return Info{Path: path, Polarization: Polarization(pol[1]), Date: date[1]}, nil
}

// Scan walks dir for files with the extension whose names parse as ASF
// products. Hidden directories are skipped so a cache inside dir is not read
// back as input.
func Scan(dir, ext string) ([]Info, error) {
	var infos []Info
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ext {
			return nil
		}
		name := d.Name()
		if !strings.Contains(name, string(VH)) && !strings.Contains(name, string(VV)) {
			return nil
		}
		if info, err := ParseASFName(path); err == nil {
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(a.Date+string(a.Polarization)+a.Path, b.Date+string(b.Polarization)+b.Path)
	})
	return infos, nil
}

// CroppedName is the file name of the aligned raster for a date.
func CroppedName(pol Polarization, date string) string {
	return "resampled__" + string(pol) + "_" + date
}

// Catalog resolves aligned rasters inside a cropped directory.
type Catalog struct {
	Dir string
}

// Lookup returns the aligned raster for (date, pol) if it exists.
func (c Catalog) Lookup(date string, pol Polarization) (string, bool) {
	path := filepath.Join(c.Dir, CroppedName(pol, date))
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		return "", false
	}
	return path, true
}
