package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/quake-energy/internal/domain"
)

// Output file names.
const (
	EventsFile  = "events.geojson"
	SummaryFile = "summary.json"
)

// Writer persists run artifacts under a directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteEvents writes quakes as a GeoJSON FeatureCollection of points.
func (w *Writer) WriteEvents(quakes []domain.Quake) (string, error) {
	data, err := FeatureCollection(quakes).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal geojson: %w", err)
	}
	return w.write(EventsFile, data)
}

// WriteSummary writes the run summary as indented JSON.
func (w *Writer) WriteSummary(s domain.Summary) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return w.write(SummaryFile, data)
}

func (w *Writer) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// FeatureCollection converts quakes to GeoJSON point features. GeoJSON
// coordinates are [lon, lat].
func FeatureCollection(quakes []domain.Quake) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, q := range quakes {
		f := geojson.NewFeature(orb.Point{q.Longitude, q.Latitude})
		f.ID = q.ID
		f.Properties["time"] = q.Time.Format(time.RFC3339Nano)
		f.Properties["mag"] = q.Magnitude
		f.Properties["magType"] = q.MagType
		f.Properties["depth"] = q.Depth
		f.Properties["place"] = q.Place
		f.Properties["energy"] = q.Energy
		f.Properties["window"] = q.Window
		fc.Append(f)
	}
	return fc
}
