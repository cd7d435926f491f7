package domain

import (
	"slices"
	"sort"
)

// SortByTime returns a copy of quakes stable-sorted by origin time, so events
// with identical timestamps keep their input order.
func SortByTime(quakes []Quake) []Quake {
	out := slices.Clone(quakes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// CumulativeFraction returns the time-ordered running energy sum and its
// fraction of the grand total. The last point's Fraction is exactly 1.
func CumulativeFraction(quakes []Quake) []CumulativePoint {
	if len(quakes) == 0 {
		return nil
	}

	sorted := SortByTime(quakes)
	points := make([]CumulativePoint, len(sorted))
	var running float64
	for i, q := range sorted {
		running += q.Energy
		points[i] = CumulativePoint{Time: q.Time, Energy: q.Energy, Cumulative: running}
	}
	normalize(running, len(points), func(i int) (float64, *float64) {
		return points[i].Cumulative, &points[i].Fraction
	})
	return points
}

// YearlyEnergy groups quakes by UTC calendar year and returns per-year totals
// in chronological order with cumulative fractions across years.
func YearlyEnergy(quakes []Quake) []YearEnergy {
	if len(quakes) == 0 {
		return nil
	}

	byYear := make(map[int]*YearEnergy)
	for _, q := range quakes {
		y := q.Time.UTC().Year()
		ye, ok := byYear[y]
		if !ok {
			ye = &YearEnergy{Year: y}
			byYear[y] = ye
		}
		ye.Count++
		ye.Energy += q.Energy
	}

	years := make([]YearEnergy, 0, len(byYear))
	for _, ye := range byYear {
		years = append(years, *ye)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })

	var running float64
	for i := range years {
		running += years[i].Energy
		years[i].Cumulative = running
	}
	for i := range years {
		if running > 0 {
			years[i].Share = years[i].Energy / running
		}
	}
	normalize(running, len(years), func(i int) (float64, *float64) {
		return years[i].Cumulative, &years[i].Fraction
	})
	return years
}

// normalize divides each cumulative value by total and pins the last
// fraction to 1 so floating point drift cannot leave it at 0.9999999.
func normalize(total float64, n int, at func(i int) (float64, *float64)) {
	if n == 0 || total <= 0 {
		return
	}
	for i := 0; i < n; i++ {
		cum, frac := at(i)
		f := cum / total
		if f > 1 {
			f = 1
		}
		*frac = f
	}
	_, last := at(n - 1)
	*last = 1
}

// EnergyShare returns the fraction of total carried by subset. Returns 0 when
// total is not positive.
func EnergyShare(subset, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return subset / total
}

// Largest returns the event with the greatest magnitude. Ties go to the
// earliest event in input order.
func Largest(quakes []Quake) (Quake, bool) {
	if len(quakes) == 0 {
		return Quake{}, false
	}
	best := quakes[0]
	for _, q := range quakes[1:] {
		if q.Magnitude > best.Magnitude {
			best = q
		}
	}
	return best, true
}

// Summarize computes the headline statistics for an enriched catalog.
func Summarize(quakes []Quake) Summary {
	s := Summary{
		Events:      len(quakes),
		GeneratedAt: clock.Now().UTC(),
	}
	if len(quakes) == 0 {
		return s
	}

	s.TotalEnergy = TotalEnergy(quakes)
	s.EquivalentMagnitude = EquivalentMagnitude(s.TotalEnergy)
	s.Years = YearlyEnergy(quakes)

	largest, _ := Largest(quakes)
	s.Largest = largest
	s.LargestShare = EnergyShare(largest.Energy, s.TotalEnergy)

	var before float64
	for _, q := range quakes {
		if q.Time.Before(largest.Time) {
			before += q.Energy
		}
	}
	s.BeforeLargestShare = EnergyShare(before, s.TotalEnergy)
	return s
}
