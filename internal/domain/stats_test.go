package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(y int, m time.Month, d, hh int) time.Time {
	return time.Date(y, m, d, hh, 0, 0, 0, time.UTC)
}

func sampleQuakes() []Quake {
	return Enrich([]Quake{
		{ID: "c", Time: at(2023, time.May, 5, 5), Magnitude: 6.2},
		{ID: "a", Time: at(2021, time.March, 1, 0), Magnitude: 4.0},
		{ID: "e", Time: at(2024, time.January, 1, 7), Magnitude: 7.5},
		{ID: "b", Time: at(2022, time.June, 19, 6), Magnitude: 5.4},
		{ID: "f", Time: at(2024, time.January, 1, 8), Magnitude: 5.8},
		{ID: "d", Time: at(2023, time.December, 31, 23), Magnitude: 3.1},
	})
}

func TestSortByTime_StableForTies(t *testing.T) {
	ts := at(2024, time.January, 1, 7)
	in := []Quake{{ID: "x", Time: ts}, {ID: "early", Time: ts.Add(-time.Hour)}, {ID: "y", Time: ts}, {ID: "z", Time: ts}}

	out := SortByTime(in)

	ids := []string{out[0].ID, out[1].ID, out[2].ID, out[3].ID}
	assert.Equal(t, []string{"early", "x", "y", "z"}, ids)
	assert.Equal(t, "x", in[0].ID, "input must not be reordered")
}

func TestCumulativeFraction(t *testing.T) {
	quakes := sampleQuakes()
	points := CumulativeFraction(quakes)

	require.Len(t, points, len(quakes))
	for i := 1; i < len(points); i++ {
		assert.False(t, points[i].Time.Before(points[i-1].Time), "points must be time ordered")
		assert.GreaterOrEqual(t, points[i].Fraction, points[i-1].Fraction, "fraction must not decrease")
	}
	assert.Equal(t, 1.0, points[len(points)-1].Fraction)
	assert.InEpsilon(t, TotalEnergy(quakes), points[len(points)-1].Cumulative, 1e-12)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.Fraction, 0.0)
		assert.LessOrEqual(t, p.Fraction, 1.0)
	}
}

func TestCumulativeFraction_Empty(t *testing.T) {
	assert.Empty(t, CumulativeFraction(nil))
}

func TestCumulativeFraction_SingleEvent(t *testing.T) {
	points := CumulativeFraction(Enrich([]Quake{{Time: at(2024, 1, 1, 0), Magnitude: 3}}))
	require.Len(t, points, 1)
	assert.Equal(t, 1.0, points[0].Fraction)
}

func TestCumulativeFraction_ManySmallEventsEndAtOne(t *testing.T) {
	var quakes []Quake
	base := at(2021, time.January, 1, 0)
	for i := 0; i < 5000; i++ {
		quakes = append(quakes, Quake{Time: base.Add(time.Duration(i) * time.Minute), Magnitude: 1 + float64(i%50)/10})
	}
	points := CumulativeFraction(Enrich(quakes))
	assert.Equal(t, 1.0, points[len(points)-1].Fraction)
}

func TestYearlyEnergy(t *testing.T) {
	quakes := sampleQuakes()
	years := YearlyEnergy(quakes)

	require.Len(t, years, 4)
	gotYears := []int{years[0].Year, years[1].Year, years[2].Year, years[3].Year}
	assert.Equal(t, []int{2021, 2022, 2023, 2024}, gotYears)

	assert.Equal(t, 2, years[2].Count)
	assert.InEpsilon(t, Energy(6.2)+Energy(3.1), years[2].Energy, 1e-12)
	assert.Equal(t, 1.0, years[3].Fraction)

	var shares float64
	for i := 1; i < len(years); i++ {
		assert.GreaterOrEqual(t, years[i].Fraction, years[i-1].Fraction)
	}
	for _, y := range years {
		shares += y.Share
	}
	assert.InDelta(t, 1.0, shares, 1e-12)
}

func TestYearlyEnergy_AggregationInvariance(t *testing.T) {
	quakes := sampleQuakes()
	years := YearlyEnergy(quakes)
	points := CumulativeFraction(quakes)

	var yearly float64
	for _, y := range years {
		yearly += y.Energy
	}
	assert.InEpsilon(t, points[len(points)-1].Cumulative, yearly, 1e-12)
	assert.InEpsilon(t, years[len(years)-1].Cumulative, points[len(points)-1].Cumulative, 1e-12)
}

func TestYearlyEnergy_Empty(t *testing.T) {
	assert.Empty(t, YearlyEnergy(nil))
}

func TestEnergyShare(t *testing.T) {
	assert.Equal(t, 0.25, EnergyShare(1, 4))
	assert.Zero(t, EnergyShare(1, 0))
}

func TestLargest(t *testing.T) {
	q, ok := Largest(sampleQuakes())
	require.True(t, ok)
	assert.Equal(t, "e", q.ID)

	_, ok = Largest(nil)
	assert.False(t, ok)

	tied := []Quake{{ID: "first", Magnitude: 5}, {ID: "second", Magnitude: 5}}
	q, _ = Largest(tied)
	assert.Equal(t, "first", q.ID)
}

func TestSummarize(t *testing.T) {
	quakes := sampleQuakes()
	s := Summarize(quakes)

	total := TotalEnergy(quakes)
	assert.Equal(t, 6, s.Events)
	assert.InEpsilon(t, total, s.TotalEnergy, 1e-12)
	assert.Equal(t, "e", s.Largest.ID)
	assert.InEpsilon(t, Energy(7.5)/total, s.LargestShare, 1e-12)

	before := Energy(4.0) + Energy(5.4) + Energy(6.2) + Energy(3.1)
	assert.InEpsilon(t, before/total, s.BeforeLargestShare, 1e-12)
	assert.InDelta(t, EquivalentMagnitude(total), s.EquivalentMagnitude, 1e-12)
	assert.Greater(t, s.EquivalentMagnitude, 7.5)
	assert.Len(t, s.Years, 4)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	want := Summary{GeneratedAt: s.GeneratedAt}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Summarize(nil) mismatch (-want +got):\n%s", diff)
	}
}
