package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// BoundingBox is a rectangular lon/lat query region.
type BoundingBox struct {
	orb.Bound
}

// NewBoundingBox builds a box from its corners. Longitude is X, latitude is Y.
func NewBoundingBox(minLon, minLat, maxLon, maxLat float64) (BoundingBox, error) {
	if minLat < -90 || maxLat > 90 || minLon < -180 || maxLon > 180 {
		return BoundingBox{}, fmt.Errorf("bounding box out of range: %g,%g,%g,%g", minLon, minLat, maxLon, maxLat)
	}
	if minLat >= maxLat || minLon >= maxLon {
		return BoundingBox{}, fmt.Errorf("bounding box is empty: %g,%g,%g,%g", minLon, minLat, maxLon, maxLat)
	}
	return BoundingBox{Bound: orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{maxLon, maxLat},
	}}, nil
}

// ParseBoundingBox parses "minLon,minLat,maxLon,maxLat".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bounding box %q: want minLon,minLat,maxLon,maxLat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("bounding box %q: %w", s, err)
		}
		v[i] = f
	}
	return NewBoundingBox(v[0], v[1], v[2], v[3])
}

func (b BoundingBox) MinLat() float64 { return b.Min.Lat() }
func (b BoundingBox) MaxLat() float64 { return b.Max.Lat() }
func (b BoundingBox) MinLon() float64 { return b.Min.Lon() }
func (b BoundingBox) MaxLon() float64 { return b.Max.Lon() }

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return b.Bound.Contains(orb.Point{lon, lat})
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon(), b.MinLat(), b.MaxLon(), b.MaxLat())
}

// Window is a half-open [Start, End) time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls in the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return w.Start.Format(time.DateOnly) + "/" + w.End.Format(time.DateOnly)
}

// SplitWindows cuts [start, end) into consecutive windows of the given number
// of months. The last window is clipped at end.
func SplitWindows(start, end time.Time, months int) ([]Window, error) {
	if months <= 0 {
		return nil, errors.New("window months must be positive")
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("window start %s is not before end %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	var windows []Window
	for cur := start.UTC(); cur.Before(end); {
		next := cur.AddDate(0, months, 0)
		if next.After(end) {
			next = end.UTC()
		}
		windows = append(windows, Window{Start: cur, End: next})
		cur = next
	}
	return windows, nil
}

// DefaultBoundingBox covers the Noto Peninsula and the surrounding Sea of
// Japan coast.
func DefaultBoundingBox() BoundingBox {
	b, _ := NewBoundingBox(136.0, 36.5, 138.0, 38.0)
	return b
}

// DefaultWindows returns eight six-month windows from 2020-12-01 to
// 2024-12-01 UTC.
func DefaultWindows() []Window {
	w, _ := SplitWindows(
		time.Date(2020, time.December, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC),
		6,
	)
	return w
}
