package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-energy/internal/domain"
	"github.com/couchcryptid/quake-energy/internal/observability"
	"github.com/couchcryptid/quake-energy/internal/render"
)

// CatalogFetcher downloads one catalog window.
type CatalogFetcher interface {
	FetchWindow(ctx context.Context, bbox domain.BoundingBox, index int, w domain.Window) ([]domain.Quake, []domain.ParseError, error)
}

// BaseMapper fetches a base map image for the chart extent.
type BaseMapper interface {
	BaseMap(ctx context.Context, bbox domain.BoundingBox, width, height int) (image.Image, error)
}

// ChartRenderer writes the chart images.
type ChartRenderer interface {
	BaseMapSize() (width, height int)
	RenderAll(dir string, in render.Input) ([]string, error)
}

// Publisher writes enriched events to a sink.
type Publisher interface {
	LoadBatch(ctx context.Context, quakes []domain.Quake) error
}

// ArtifactWriter persists the event layer and the summary.
type ArtifactWriter interface {
	WriteEvents(quakes []domain.Quake) (string, error)
	WriteSummary(s domain.Summary) (string, error)
}

// Options wires the optional stages. Nil fields disable the stage.
type Options struct {
	BaseMapper BaseMapper
	Geocoder   domain.Geocoder
	Publisher  Publisher
	Artifacts  ArtifactWriter
}

// Pipeline runs fetch, concatenate, enrich, analyze, render and publish once.
type Pipeline struct {
	fetcher  CatalogFetcher
	renderer ChartRenderer
	opts     Options
	bbox     domain.BoundingBox
	windows  []domain.Window
	outDir   string
	logger   *slog.Logger
	metrics  *observability.Metrics

	ready  atomic.Bool
	mu     sync.RWMutex
	report *domain.Summary
}

// New creates a Pipeline over the given region and windows.
func New(fetcher CatalogFetcher, renderer ChartRenderer, opts Options, bbox domain.BoundingBox, windows []domain.Window, outDir string, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		renderer: renderer,
		opts:     opts,
		bbox:     bbox,
		windows:  windows,
		outDir:   outDir,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("analysis has not completed yet")
	}
	return nil
}

// Report returns the summary of the last completed run.
func (p *Pipeline) Report() (domain.Summary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.report == nil {
		return domain.Summary{}, false
	}
	return *p.report, true
}

// Run executes one analysis. Any fetch failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (domain.Summary, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.logger.Info("analysis started", "bbox", p.bbox.String(), "windows", len(p.windows))

	raw, err := p.extract(ctx)
	if err != nil {
		return domain.Summary{}, err
	}

	quakes := domain.Enrich(raw)
	summary := domain.Summarize(quakes)
	summary.Largest = domain.ResolvePlace(ctx, summary.Largest, p.opts.Geocoder, p.logger)
	p.metrics.TotalEnergy.Set(summary.TotalEnergy)

	p.logger.Info("catalog analysed",
		"events", summary.Events,
		"total_energy_j", summary.TotalEnergy,
		"equivalent_magnitude", summary.EquivalentMagnitude,
		"largest_id", summary.Largest.ID,
		"largest_magnitude", summary.Largest.Magnitude,
	)

	if err := p.renderCharts(ctx, quakes); err != nil {
		return domain.Summary{}, err
	}

	if err := p.load(ctx, quakes, summary); err != nil {
		return domain.Summary{}, err
	}

	p.mu.Lock()
	p.report = &summary
	p.mu.Unlock()
	p.ready.Store(true)

	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("analysis complete", "duration", time.Since(start).Round(time.Millisecond))
	return summary, nil
}

// extract fetches every window in order and concatenates the rows.
func (p *Pipeline) extract(ctx context.Context) ([]domain.Quake, error) {
	batches := make([][]domain.Quake, 0, len(p.windows))
	for i, w := range p.windows {
		fetchStart := time.Now()
		quakes, skipped, err := p.fetcher.FetchWindow(ctx, p.bbox, i, w)
		p.metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
		if err != nil {
			p.metrics.FetchErrors.Inc()
			return nil, fmt.Errorf("fetch window %d (%s): %w", i, w, err)
		}

		p.metrics.WindowsFetched.Inc()
		p.metrics.RowsParsed.Add(float64(len(quakes)))
		p.metrics.RowsSkipped.Add(float64(len(skipped)))
		for _, s := range skipped {
			p.logger.Warn("catalog row skipped", "window", s.Window, "line", s.Line, "field", s.Field, "error", s.Err)
		}
		p.logger.Info("window fetched", "window", i, "range", w.String(), "events", len(quakes), "skipped", len(skipped))

		batches = append(batches, quakes)
	}
	return domain.Concat(batches...), nil
}

func (p *Pipeline) renderCharts(ctx context.Context, quakes []domain.Quake) error {
	if p.renderer == nil {
		return nil
	}
	if len(quakes) == 0 {
		p.logger.Warn("no events in catalog, skipping charts")
		return nil
	}

	in := render.Input{
		Quakes:     quakes,
		Cumulative: domain.CumulativeFraction(quakes),
		Years:      domain.YearlyEnergy(quakes),
		BBox:       p.bbox,
	}
	if p.opts.BaseMapper != nil {
		w, h := p.renderer.BaseMapSize()
		img, err := p.opts.BaseMapper.BaseMap(ctx, p.bbox, w, h)
		if err != nil {
			// Charts stay readable without the base map.
			p.logger.Warn("base map unavailable", "error", err)
		} else {
			in.BaseMap = img
		}
	}

	paths, err := p.renderer.RenderAll(p.outDir, in)
	if err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	p.logger.Info("charts rendered", "dir", p.outDir, "count", len(paths))
	return nil
}

func (p *Pipeline) load(ctx context.Context, quakes []domain.Quake, summary domain.Summary) error {
	if p.opts.Artifacts != nil {
		if _, err := p.opts.Artifacts.WriteEvents(quakes); err != nil {
			return fmt.Errorf("write events: %w", err)
		}
		if _, err := p.opts.Artifacts.WriteSummary(summary); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if p.opts.Publisher != nil && len(quakes) > 0 {
		if err := p.opts.Publisher.LoadBatch(ctx, quakes); err != nil {
			return fmt.Errorf("publish events: %w", err)
		}
		p.metrics.EventsPublished.Add(float64(len(quakes)))
		p.logger.Info("events published", "count", len(quakes))
	}
	return nil
}
