package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMissingColumn is returned when a catalog header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"time", "latitude", "longitude", "mag"}

// ParseCatalog reads a USGS CSV response. Rows that cannot be parsed are
// skipped and reported in the returned ParseError slice; a malformed header
// or a CSV syntax error aborts with an error.
func ParseCatalog(r io.Reader, window int) ([]Quake, []ParseError, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}

	var (
		quakes  []Quake
		skipped []ParseError
		line    = 1
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("read catalog line %d: %w", line, err)
		}

		q, perr := parseRow(rec, cols)
		if perr != nil {
			perr.Window = window
			perr.Line = line
			skipped = append(skipped, *perr)
			continue
		}
		q.Window = window
		quakes = append(quakes, q)
	}

	return quakes, skipped, nil
}

func parseRow(rec []string, cols map[string]int) (Quake, *ParseError) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	t, err := time.Parse(time.RFC3339Nano, field("time"))
	if err != nil {
		return Quake{}, &ParseError{Field: "time", Err: err}
	}
	lat, err := parseFinite(field("latitude"))
	if err != nil || lat < -90 || lat > 90 {
		return Quake{}, &ParseError{Field: "latitude", Err: coordErr(err, lat)}
	}
	lon, err := parseFinite(field("longitude"))
	if err != nil || lon < -180 || lon > 180 {
		return Quake{}, &ParseError{Field: "longitude", Err: coordErr(err, lon)}
	}
	mag, err := parseFinite(field("mag"))
	if err != nil {
		return Quake{}, &ParseError{Field: "mag", Err: err}
	}

	return Quake{
		ID:        field("id"),
		Time:      t.UTC(),
		Latitude:  lat,
		Longitude: lon,
		Depth:     parseFloatOrZero(field("depth")),
		Magnitude: mag,
		MagType:   field("magType"),
		Place:     field("place"),
	}, nil
}

func coordErr(err error, v float64) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("value %g out of range", v)
}

// errNotFinite rejects NaN and Inf, which strconv.ParseFloat accepts.
var errNotFinite = errors.New("value is not a finite number")

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q: %w", s, errNotFinite)
	}
	return v, nil
}

// parseFloatOrZero parses a finite float64, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := parseFinite(s)
	if err != nil {
		return 0
	}
	return v
}

// Concat appends batches in order. Rows are neither deduplicated nor dropped.
func Concat(batches ...[]Quake) []Quake {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	out := make([]Quake, 0, n)
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}
