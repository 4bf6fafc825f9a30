// Package dataset joins gauge observations with aligned rasters into the
// pixel series the sweeps run on.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/area"
	"github.com/yyyoichi/floodsar/internal/hydro"
	"github.com/yyyoichi/floodsar/internal/raster"
)

var (
	ErrEmpty    = errors.New("no date has both an observation and an aligned raster")
	ErrMismatch = errors.New("raster sizes do not match")
)

// LogPowerFloor replaces non-positive intensities in the log-power
// transform.
const LogPowerFloor = -40.0

// DateRecord is one observation date and the pixels it owns.
type DateRecord struct {
	Date      string     `msgpack:"date"`
	Elevation float64    `msgpack:"elevation"`
	Range     area.Range `msgpack:"range"`
}

// Series is the single-polarization pixel series of all usable dates,
// concatenated in date order.
type Series struct {
	Polarization  raster.Polarization
	Records       []DateRecord
	Pixels        []float64
	Width, Height int
}

func (s *Series) Elevations() []float64 { return elevations(s.Records) }
func (s *Series) Ranges() []area.Range  { return ranges(s.Records) }
func (s *Series) Dates() []string       { return dates(s.Records) }

// SampleSet is the dual-polarization pixel set. VH[i] and VV[i] are the same
// physical pixel.
type SampleSet struct {
	Records []DateRecord
	VH, VV  []float64
	// RowsPerDate is the pixel count of the first date.
	RowsPerDate   int
	Width, Height int
}

func (s *SampleSet) Len() int              { return len(s.VH) }
func (s *SampleSet) Elevations() []float64 { return elevations(s.Records) }
func (s *SampleSet) Ranges() []area.Range  { return ranges(s.Records) }
func (s *SampleSet) Dates() []string       { return dates(s.Records) }

// Clip returns a copy with VV values above maxVV and VH values above maxVH
// replaced by the cap. NaN caps leave the band unchanged.
func (s *SampleSet) Clip(maxVV, maxVH float64) *SampleSet {
	out := s.clone()
	clip(out.VV, maxVV)
	clip(out.VH, maxVH)
	return out
}

func clip(values []float64, max float64) {
	if math.IsNaN(max) {
		return
	}
	for i, v := range values {
		if v > max {
			values[i] = max
		}
	}
}

// LogPower returns a copy in decibels, 10·log10(v). Non-positive values map
// to LogPowerFloor.
func (s *SampleSet) LogPower() *SampleSet {
	out := s.clone()
	for _, values := range [][]float64{out.VH, out.VV} {
		for i, v := range values {
			if v > 0 {
				values[i] = 10 * math.Log10(v)
			} else {
				values[i] = LogPowerFloor
			}
		}
	}
	return out
}

func (s *SampleSet) clone() *SampleSet {
	out := *s
	out.Records = slices.Clone(s.Records)
	out.VH = slices.Clone(s.VH)
	out.VV = slices.Clone(s.VV)
	return &out
}

// NewSeries concatenates per-date pixel slices. Dates must be in ascending
// order and index-aligned with elevations.
func NewSeries(pol raster.Polarization, dates []string, elevations []float64, pixels [][]float64) (*Series, error) {
	if len(dates) != len(elevations) || len(dates) != len(pixels) {
		return nil, fmt.Errorf("%w: %d dates, %d elevations, %d rasters", ErrMismatch, len(dates), len(elevations), len(pixels))
	}
	if len(dates) == 0 {
		return nil, ErrEmpty
	}
	s := &Series{Polarization: pol, Width: len(pixels[0]), Height: 1}
	for i, p := range pixels {
		start := len(s.Pixels)
		s.Pixels = append(s.Pixels, p...)
		s.Records = append(s.Records, DateRecord{Date: dates[i], Elevation: elevations[i], Range: area.Range{Start: start, End: len(s.Pixels)}})
	}
	return s, nil
}

// NewSampleSet concatenates per-date VH and VV pixel slices.
func NewSampleSet(dates []string, elevations []float64, vh, vv [][]float64) (*SampleSet, error) {
	if len(dates) != len(elevations) || len(dates) != len(vh) || len(dates) != len(vv) {
		return nil, fmt.Errorf("%w: %d dates, %d elevations, %d VH and %d VV rasters", ErrMismatch, len(dates), len(elevations), len(vh), len(vv))
	}
	if len(dates) == 0 {
		return nil, ErrEmpty
	}
	s := &SampleSet{RowsPerDate: len(vh[0]), Width: len(vh[0]), Height: 1}
	for i := range dates {
		if len(vh[i]) != len(vv[i]) {
			return nil, fmt.Errorf("%w: %s has %d VH and %d VV pixels", ErrMismatch, dates[i], len(vh[i]), len(vv[i]))
		}
		start := len(s.VH)
		s.VH = append(s.VH, vh[i]...)
		s.VV = append(s.VV, vv[i]...)
		s.Records = append(s.Records, DateRecord{Date: dates[i], Elevation: elevations[i], Range: area.Range{Start: start, End: len(s.VH)}})
	}
	return s, nil
}

// Lookup resolves the aligned raster for a date and polarization.
type Lookup interface {
	Lookup(date string, pol raster.Polarization) (string, bool)
}

// Builder assembles series from observations, a raster lookup and a pixel
// reader. Dates missing a raster are skipped.
type Builder struct {
	Catalog Lookup
	Reader  raster.PixelReader
	Logger  *zap.Logger
	// Strict rejects dates whose pixel count differs from the first date.
	Strict bool
}

func (b *Builder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// Series builds the single-polarization series for pol.
func (b *Builder) Series(obs hydro.Observations, pol raster.Polarization) (*Series, error) {
	s := &Series{Polarization: pol}
	for _, date := range obs.Dates() {
		path, ok := b.Catalog.Lookup(date, pol)
		if !ok {
			continue
		}
		g, err := b.Reader.ReadPixels(path)
		if err != nil {
			return nil, err
		}
		if len(s.Records) == 0 {
			s.Width, s.Height = g.Width, g.Height
		} else if err := b.checkSize(date, s.Width*s.Height, len(g.Pixels)); err != nil {
			return nil, err
		}
		start := len(s.Pixels)
		s.Pixels = append(s.Pixels, g.Pixels...)
		s.Records = append(s.Records, DateRecord{
			Date:      date,
			Elevation: obs[date],
			Range:     area.Range{Start: start, End: len(s.Pixels)},
		})
	}
	if len(s.Records) == 0 {
		return nil, fmt.Errorf("%w: polarization %s", ErrEmpty, pol)
	}
	return s, nil
}

// SampleSet builds the dual-polarization sample set from dates that have
// both a VH and a VV raster.
func (b *Builder) SampleSet(obs hydro.Observations) (*SampleSet, error) {
	s := new(SampleSet)
	for _, date := range obs.Dates() {
		vhPath, okVH := b.Catalog.Lookup(date, raster.VH)
		vvPath, okVV := b.Catalog.Lookup(date, raster.VV)
		if !okVH || !okVV {
			continue
		}
		vh, err := b.Reader.ReadPixels(vhPath)
		if err != nil {
			return nil, err
		}
		vv, err := b.Reader.ReadPixels(vvPath)
		if err != nil {
			return nil, err
		}
		if len(vh.Pixels) != len(vv.Pixels) {
			return nil, fmt.Errorf("%w: %s has %d VH and %d VV pixels", ErrMismatch, date, len(vh.Pixels), len(vv.Pixels))
		}
		if len(s.Records) == 0 {
			s.RowsPerDate = len(vh.Pixels)
			s.Width, s.Height = vh.Width, vh.Height
		} else if err := b.checkSize(date, s.RowsPerDate, len(vh.Pixels)); err != nil {
			return nil, err
		}
		start := len(s.VH)
		s.VH = append(s.VH, vh.Pixels...)
		s.VV = append(s.VV, vv.Pixels...)
		s.Records = append(s.Records, DateRecord{
			Date:      date,
			Elevation: obs[date],
			Range:     area.Range{Start: start, End: len(s.VH)},
		})
		b.logger().Debug("date added", zap.String("date", date), zap.Float64("elevation", obs[date]))
	}
	if len(s.Records) == 0 {
		return nil, ErrEmpty
	}
	b.logger().Info("sample set ready",
		zap.Int("dates", len(s.Records)),
		zap.Int("pixels", s.Len()),
		zap.Int("rowsPerDate", s.RowsPerDate))
	return s, nil
}

func (b *Builder) checkSize(date string, want, got int) error {
	if got == want {
		return nil
	}
	if b.Strict {
		return fmt.Errorf("%w: %s has %d pixels, want %d", ErrMismatch, date, got, want)
	}
	b.logger().Warn("suspicious pixel count",
		zap.String("date", date),
		zap.Int("want", want),
		zap.Int("got", got))
	return nil
}

func elevations(records []DateRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Elevation
	}
	return out
}

func ranges(records []DateRecord) []area.Range {
	out := make([]area.Range, len(records))
	for i, r := range records {
		out[i] = r.Range
	}
	return out
}

func dates(records []DateRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Date
	}
	return out
}
