package domain

import (
	"fmt"
	"time"
)

// Quake is a single catalog event after parsing.
type Quake struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Depth     float64   `json:"depth_km"`
	Magnitude float64   `json:"magnitude"`
	MagType   string    `json:"mag_type,omitempty"`
	Place     string    `json:"place,omitempty"`

	// Energy is the radiated energy in joules, set by Enrich.
	Energy float64 `json:"energy_joules"`

	// Window is the index of the query window the row was fetched in.
	Window int `json:"window"`

	ProcessedAt time.Time `json:"processed_at"`
}

// ParseError describes a catalog row that was skipped.
type ParseError struct {
	Window int
	Line   int
	Field  string
	Err    error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("window %d line %d: %s: %v", e.Window, e.Line, e.Field, e.Err)
}

func (e ParseError) Unwrap() error { return e.Err }

// CumulativePoint is one step of a time-ordered cumulative energy curve.
type CumulativePoint struct {
	Time       time.Time `json:"time"`
	Energy     float64   `json:"energy"`
	Cumulative float64   `json:"cumulative"`
	Fraction   float64   `json:"fraction"`
}

// YearEnergy is the energy released in one calendar year.
type YearEnergy struct {
	Year       int     `json:"year"`
	Count      int     `json:"count"`
	Energy     float64 `json:"energy"`
	Cumulative float64 `json:"cumulative"`
	Fraction   float64 `json:"fraction"`
	Share      float64 `json:"share"`
}

// Summary holds the headline numbers of one analysis run.
type Summary struct {
	Events              int          `json:"events"`
	TotalEnergy         float64      `json:"total_energy"`
	EquivalentMagnitude float64      `json:"equivalent_magnitude"`
	Largest             Quake        `json:"largest"`
	LargestShare        float64      `json:"largest_share"`
	BeforeLargestShare  float64      `json:"before_largest_share"`
	Years               []YearEnergy `json:"years"`
	GeneratedAt         time.Time    `json:"generated_at"`
}
