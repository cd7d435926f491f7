package pipeline_test

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-energy/internal/domain"
	"github.com/couchcryptid/quake-energy/internal/observability"
	"github.com/couchcryptid/quake-energy/internal/pipeline"
	"github.com/couchcryptid/quake-energy/internal/render"
)

// --- mocks ---

type mockFetcher struct {
	byWindow map[int][]domain.Quake
	skipped  map[int][]domain.ParseError
	failAt   int
	calls    []int
}

func (m *mockFetcher) FetchWindow(_ context.Context, _ domain.BoundingBox, index int, _ domain.Window) ([]domain.Quake, []domain.ParseError, error) {
	m.calls = append(m.calls, index)
	if m.failAt >= 0 && index == m.failAt {
		return nil, nil, errors.New("connection reset")
	}
	return m.byWindow[index], m.skipped[index], nil
}

type mockRenderer struct {
	input render.Input
	calls int
	err   error
}

func (m *mockRenderer) BaseMapSize() (int, int) { return 80, 60 }

func (m *mockRenderer) RenderAll(_ string, in render.Input) ([]string, error) {
	m.calls++
	m.input = in
	return []string{"a.png"}, m.err
}

type mockBaseMap struct {
	err error
}

func (m *mockBaseMap) BaseMap(_ context.Context, _ domain.BoundingBox, w, h int) (image.Image, error) {
	if m.err != nil {
		return nil, m.err
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

type mockPublisher struct {
	loaded []domain.Quake
	err    error
}

func (m *mockPublisher) LoadBatch(_ context.Context, quakes []domain.Quake) error {
	m.loaded = append(m.loaded, quakes...)
	return m.err
}

type mockArtifacts struct {
	events  []domain.Quake
	summary *domain.Summary
}

func (m *mockArtifacts) WriteEvents(quakes []domain.Quake) (string, error) {
	m.events = quakes
	return "events.geojson", nil
}

func (m *mockArtifacts) WriteSummary(s domain.Summary) (string, error) {
	m.summary = &s
	return "summary.json", nil
}

type mockGeocoder struct{ calls int }

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	m.calls++
	return domain.GeocodingResult{FormattedAddress: "Suzu, Ishikawa, Japan"}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func q(id string, ts time.Time, mag float64, window int) domain.Quake {
	return domain.Quake{ID: id, Time: ts, Latitude: 37.3, Longitude: 137.1, Magnitude: mag, Place: "near " + id, Window: window}
}

func fixtureFetcher() *mockFetcher {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
	return &mockFetcher{
		failAt: -1,
		byWindow: map[int][]domain.Quake{
			0: {q("w0-a", day(2021, 1, 5), 3.2, 0), q("w0-b", day(2021, 2, 1), 4.0, 0)},
			2: {q("w2-a", day(2022, 6, 19), 5.4, 2)},
			5: {q("w5-a", day(2023, 5, 5), 6.2, 5)},
			6: {q("w6-a", day(2024, 1, 1), 7.5, 6), q("w6-b", day(2024, 1, 2), 5.8, 6)},
			7: {q("w7-a", day(2024, 9, 21), 4.9, 7)},
		},
		skipped: map[int][]domain.ParseError{
			2: {{Window: 2, Line: 3, Field: "mag", Err: errors.New("empty")}},
		},
	}
}

func newPipeline(f pipeline.CatalogFetcher, r pipeline.ChartRenderer, opts pipeline.Options) *pipeline.Pipeline {
	return pipeline.New(f, r, opts, domain.DefaultBoundingBox(), domain.DefaultWindows(), "out", discardLogger(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fetcher := fixtureFetcher()
	rdr := &mockRenderer{}
	pub := &mockPublisher{}
	art := &mockArtifacts{}
	p := newPipeline(fetcher, rdr, pipeline.Options{Publisher: pub, Artifacts: art})

	require.Error(t, p.CheckReadiness(context.Background()))

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, fetcher.calls, "windows are fetched in order")
	assert.Equal(t, 7, summary.Events)
	assert.Equal(t, "w6-a", summary.Largest.ID)
	assert.InEpsilon(t, domain.Energy(7.5)/summary.TotalEnergy, summary.LargestShare, 1e-12)

	require.Len(t, rdr.input.Quakes, 7)
	assert.Nil(t, rdr.input.BaseMap)
	assert.Equal(t, 1.0, rdr.input.Cumulative[len(rdr.input.Cumulative)-1].Fraction)
	assert.Len(t, rdr.input.Years, 4)

	assert.Len(t, pub.loaded, 7)
	assert.Len(t, art.events, 7)
	require.NotNil(t, art.summary)
	if diff := cmp.Diff(summary, *art.summary); diff != "" {
		t.Errorf("written summary mismatch (-run +written):\n%s", diff)
	}

	require.NoError(t, p.CheckReadiness(context.Background()))
	report, ok := p.Report()
	require.True(t, ok)
	assert.Equal(t, summary.Events, report.Events)
}

func TestPipeline_Run_ConcatPreservesEveryRowOnce(t *testing.T) {
	fetcher := fixtureFetcher()
	rdr := &mockRenderer{}
	p := newPipeline(fetcher, rdr, pipeline.Options{})

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	var want []string
	for i := 0; i < 8; i++ {
		for _, q := range fetcher.byWindow[i] {
			want = append(want, q.ID)
		}
	}
	got := make([]string, len(rdr.input.Quakes))
	for i, q := range rdr.input.Quakes {
		got[i] = q.ID
	}
	assert.Equal(t, want, got)
}

func TestPipeline_Run_FetchErrorAborts(t *testing.T) {
	fetcher := fixtureFetcher()
	fetcher.failAt = 3
	rdr := &mockRenderer{}
	pub := &mockPublisher{}
	p := newPipeline(fetcher, rdr, pipeline.Options{Publisher: pub})

	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch window 3")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, []int{0, 1, 2, 3}, fetcher.calls)
	assert.Zero(t, rdr.calls)
	assert.Empty(t, pub.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.Report()
	assert.False(t, ok)
}

func TestPipeline_Run_BaseMapAttached(t *testing.T) {
	rdr := &mockRenderer{}
	p := newPipeline(fixtureFetcher(), rdr, pipeline.Options{BaseMapper: &mockBaseMap{}})

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, rdr.input.BaseMap)
	assert.Equal(t, 80, rdr.input.BaseMap.Bounds().Dx())
}

func TestPipeline_Run_BaseMapFailureIsNotFatal(t *testing.T) {
	rdr := &mockRenderer{}
	p := newPipeline(fixtureFetcher(), rdr, pipeline.Options{BaseMapper: &mockBaseMap{err: errors.New("401")}})

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rdr.calls)
	assert.Nil(t, rdr.input.BaseMap)
}

func TestPipeline_Run_RenderError(t *testing.T) {
	rdr := &mockRenderer{err: errors.New("disk full")}
	p := newPipeline(fixtureFetcher(), rdr, pipeline.Options{})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render charts")
}

func TestPipeline_Run_PublishError(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	p := newPipeline(fixtureFetcher(), &mockRenderer{}, pipeline.Options{Publisher: pub})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish events")
}

func TestPipeline_Run_EmptyCatalog(t *testing.T) {
	fetcher := &mockFetcher{failAt: -1}
	rdr := &mockRenderer{}
	pub := &mockPublisher{}
	p := newPipeline(fetcher, rdr, pipeline.Options{Publisher: pub})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Events)
	assert.Zero(t, rdr.calls, "nothing to draw")
	assert.Empty(t, pub.loaded)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_GeocodesLargestWithoutPlace(t *testing.T) {
	fetcher := fixtureFetcher()
	largest := fetcher.byWindow[6][0]
	largest.Place = ""
	fetcher.byWindow[6][0] = largest
	geo := &mockGeocoder{}
	p := newPipeline(fetcher, &mockRenderer{}, pipeline.Options{Geocoder: geo})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Suzu, Ishikawa, Japan", summary.Largest.Place)
	assert.Equal(t, 1, geo.calls)
}
