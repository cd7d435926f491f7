package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/quake-energy/internal/domain"
	"github.com/couchcryptid/quake-energy/internal/observability"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no events to plot")

// Chart file names written by RenderAll.
const (
	DensityChart    = "density.png"
	MagnitudeChart  = "magnitude.png"
	PointChart      = "points.png"
	CumulativeChart = "cumulative.png"
	YearlyChart     = "yearly.png"
)

const paletteSize = 64

// Input is everything the charts are drawn from.
type Input struct {
	Quakes     []domain.Quake
	Cumulative []domain.CumulativePoint
	Years      []domain.YearEnergy
	BBox       domain.BoundingBox

	// BaseMap is drawn under the map charts when set.
	BaseMap image.Image
}

// Renderer writes PNG charts with gonum/plot.
type Renderer struct {
	bins    int
	width   vg.Length
	height  vg.Length
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRenderer creates a Renderer binning maps into bins x bins cells.
func NewRenderer(bins int, metrics *observability.Metrics, logger *slog.Logger) *Renderer {
	return &Renderer{
		bins:    bins,
		width:   8 * vg.Inch,
		height:  6 * vg.Inch,
		metrics: metrics,
		logger:  logger,
	}
}

// BaseMapSize is the pixel size to request for a base map matching the charts.
func (r *Renderer) BaseMapSize() (width, height int) {
	return int(r.width.Dots(96)), int(r.height.Dots(96))
}

// RenderAll writes every chart into dir and returns the written paths. A chart
// with nothing to draw is skipped; only an empty event list is an error.
func (r *Renderer) RenderAll(dir string, in Input) ([]string, error) {
	if len(in.Quakes) == 0 {
		return nil, ErrNoData
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	charts := []struct {
		name  string
		build func(Input) (*plot.Plot, error)
	}{
		{DensityChart, r.DensityMap},
		{MagnitudeChart, r.MagnitudeMap},
		{PointChart, r.PointMap},
		{CumulativeChart, r.CumulativeLine},
		{YearlyChart, r.YearlyBars},
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		p, err := c.build(in)
		if errors.Is(err, ErrNoData) {
			// Happens when BBOX excludes every event; the other charts still apply.
			r.logger.Warn("chart skipped, nothing to draw", "chart", c.name)
			continue
		}
		if err != nil {
			return paths, fmt.Errorf("build %s: %w", c.name, err)
		}
		path := filepath.Join(dir, c.name)
		if err := p.Save(r.width, r.height, path); err != nil {
			return paths, fmt.Errorf("save %s: %w", c.name, err)
		}
		r.metrics.ChartsRendered.WithLabelValues(c.name).Inc()
		r.logger.Debug("chart written", "chart", c.name, "path", path)
		paths = append(paths, path)
	}
	return paths, nil
}

// DensityMap bins event counts over the bounding box.
func (r *Renderer) DensityMap(in Input) (*plot.Plot, error) {
	g := newGrid(in.BBox, r.bins, in.Quakes, func(domain.Quake) float64 { return 1 }, countAgg)
	return r.heatMap(in, g, "Event density", palette.Heat(paletteSize, 0.8))
}

// MagnitudeMap colours each bin by the largest magnitude inside it.
func (r *Renderer) MagnitudeMap(in Input) (*plot.Plot, error) {
	g := newGrid(in.BBox, r.bins, in.Quakes, func(q domain.Quake) float64 { return q.Magnitude }, maxAgg)
	cm := moreland.SmoothBlueRed()
	cm.SetMin(0)
	cm.SetMax(1)
	return r.heatMap(in, g, "Maximum magnitude per bin", cm.Palette(paletteSize))
}

func (r *Renderer) heatMap(in Input, g *grid, title string, pal palette.Palette) (*plot.Plot, error) {
	lo, hi, ok := g.zRange()
	if !ok {
		return nil, ErrNoData
	}
	if hi <= lo {
		hi = lo + 1
	}

	p := r.mapPlot(in, title)
	h := plotter.NewHeatMap(g, pal)
	h.Min, h.Max = lo, hi
	h.NaN = color.Transparent
	p.Add(h)

	p.Legend.Top = true
	p.Legend.Add(fmt.Sprintf("min %s", strconv.FormatFloat(lo, 'g', 3, 64)), swatch{pal.Colors()[0]})
	p.Legend.Add(fmt.Sprintf("max %s", strconv.FormatFloat(hi, 'g', 3, 64)), swatch{pal.Colors()[len(pal.Colors())-1]})
	return p, nil
}

// PointMap scatters events with glyph radius growing with magnitude.
func (r *Renderer) PointMap(in Input) (*plot.Plot, error) {
	pts := make(plotter.XYs, 0, len(in.Quakes))
	mags := make([]float64, 0, len(in.Quakes))
	for _, q := range in.Quakes {
		pts = append(pts, plotter.XY{X: q.Longitude, Y: q.Latitude})
		mags = append(mags, q.Magnitude)
	}
	if len(pts) == 0 {
		return nil, ErrNoData
	}

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{
			Color:  color.RGBA{R: 200, G: 30, B: 30, A: 160},
			Radius: magnitudeRadius(mags[i]),
			Shape:  draw.CircleGlyph{},
		}
	}

	p := r.mapPlot(in, "Events")
	p.Add(s)
	return p, nil
}

func magnitudeRadius(m float64) vg.Length {
	return vg.Points(math.Max(0.5, 0.6*math.Pow(1.6, m-1)))
}

// mapPlot returns a lon/lat plot fixed to the bounding box, with the base
// map underneath when one was fetched.
func (r *Renderer) mapPlot(in Input, title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	if in.BaseMap != nil {
		p.Add(plotter.NewImage(in.BaseMap, in.BBox.MinLon(), in.BBox.MinLat(), in.BBox.MaxLon(), in.BBox.MaxLat()))
	}
	p.X.Min, p.X.Max = in.BBox.MinLon(), in.BBox.MaxLon()
	p.Y.Min, p.Y.Max = in.BBox.MinLat(), in.BBox.MaxLat()
	return p
}

// CumulativeLine plots the cumulative energy fraction against origin time.
func (r *Renderer) CumulativeLine(in Input) (*plot.Plot, error) {
	if len(in.Cumulative) == 0 {
		return nil, ErrNoData
	}

	pts := make(plotter.XYs, len(in.Cumulative))
	for i, c := range in.Cumulative {
		pts[i] = plotter.XY{X: float64(c.Time.Unix()), Y: c.Fraction}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = color.RGBA{R: 30, G: 90, B: 180, A: 255}
	line.StepStyle = plotter.PostStep

	p := plot.New()
	p.Title.Text = "Cumulative energy fraction"
	p.X.Label.Text = "Origin time"
	p.Y.Label.Text = "Fraction of total energy"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid(), line)
	return p, nil
}

// YearlyBars plots each year's share of the total energy with the cumulative
// fraction as a line across the bar centres.
func (r *Renderer) YearlyBars(in Input) (*plot.Plot, error) {
	if len(in.Years) == 0 {
		return nil, ErrNoData
	}

	shares := make(plotter.Values, len(in.Years))
	cum := make(plotter.XYs, len(in.Years))
	labels := make([]string, len(in.Years))
	for i, y := range in.Years {
		shares[i] = y.Share
		cum[i] = plotter.XY{X: float64(i), Y: y.Fraction}
		labels[i] = strconv.Itoa(y.Year)
	}

	bars, err := plotter.NewBarChart(shares, vg.Points(24))
	if err != nil {
		return nil, fmt.Errorf("bars: %w", err)
	}
	bars.Color = color.RGBA{R: 120, G: 160, B: 210, A: 255}
	bars.LineStyle.Width = 0

	line, points, err := plotter.NewLinePoints(cum)
	if err != nil {
		return nil, fmt.Errorf("cumulative line: %w", err)
	}
	line.Color = color.RGBA{R: 200, G: 60, B: 30, A: 255}
	points.Color = line.Color

	p := plot.New()
	p.Title.Text = "Energy by year"
	p.Y.Label.Text = "Fraction of total energy"
	p.Y.Min, p.Y.Max = 0, 1
	p.NominalX(labels...)
	p.Add(plotter.NewGrid(), bars, line, points)
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.Add("yearly share", bars)
	p.Legend.Add("cumulative", line, points)
	return p, nil
}

// swatch is a legend thumbnail filled with one colour.
type swatch struct{ color color.Color }

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	poly := c.ClipPolygonY(pts)
	c.FillPolygon(s.color, poly)
}
