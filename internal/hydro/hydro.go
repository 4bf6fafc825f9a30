// Package hydro reads gauge observations (water level or discharge) keyed by
// date.
package hydro

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidValue = errors.New("invalid observation value")
)

// DateLayout is the canonical date key, e.g. 20190221.
const DateLayout = "20060102"

// Format selects the column layout of the CSV file.
type Format string

const (
	// Plain rows are date,value with the date as YYYYMMDD or YYYY-MM-DD.
	Plain Format = "plain"
	// Hydrological rows are year,month,day,value where months are counted
	// from November of the previous year.
	Hydrological Format = "hydrological"
)

// Observations maps a canonical date to its observed value.
type Observations map[string]float64

// Dates returns the observation dates in ascending order.
func (o Observations) Dates() []string {
	dates := make([]string, 0, len(o))
	for d := range o {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates
}

// ReadFile reads observations from a CSV file.
func ReadFile(path string, format Format) (Observations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hydrological data: %w", err)
	}
	defer f.Close()
	return Read(f, format)
}

// Read parses CSV observations. A first row whose value column is not
// numeric is taken as a header. Later rows for the same date win.
func Read(r io.Reader, format Format) (Observations, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	columns := 2
	if format == Hydrological {
		columns = 4
	}

	obs := make(Observations)
	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read hydrological data: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) < columns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, columns, len(record))
		}
		raw := strings.TrimSpace(record[columns-1])
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if row == 0 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w: %q", line, ErrInvalidValue, raw)
		}

		var date string
		if format == Hydrological {
			date, err = HydrologicalDate(record[0], record[1], record[2])
		} else {
			date, err = NormalizeDate(record[0])
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		obs[date] = value
	}
	return obs, nil
}

// NormalizeDate converts YYYYMMDD or YYYY-MM-DD to YYYYMMDD.
func NormalizeDate(s string) (string, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	for _, layout := range []string{DateLayout, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// HydrologicalDate converts a hydrological year/month/day to YYYYMMDD.
// Hydrological month 1 is November and month 2 December of the previous
// calendar year; month n > 2 is calendar month n-2.
func HydrologicalDate(year, month, day string) (string, error) {
	var v [3]int
	for i, s := range []string{year, month, day} {
		n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(s), `"`))
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		v[i] = n
	}
	y, m, d := v[0], v[1], v[2]
	if m < 1 || m > 12 {
		return "", fmt.Errorf("%w: hydrological month %d", ErrInvalidDate, m)
	}
	switch m {
	case 1, 2:
		y, m = y-1, m+10
	default:
		m -= 2
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return "", fmt.Errorf("%w: day %d of %04d-%02d", ErrInvalidDate, d, y, m)
	}
	return t.Format(DateLayout), nil
}
