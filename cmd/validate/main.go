// Command validate performs integrity checks on downloaded USGS catalog CSVs
// and, optionally, on the artifacts a quake-energy run wrote from them. It
// verifies row counts, identifier uniqueness, the energy formula, cumulative
// fraction monotonicity and yearly energy conservation.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -catalog-dir data/catalog \
//	  -start 2020-12-01 -end 2024-12-01 -months 6 \
//	  -out-dir out
//
// The i-th CSV in lexical order is checked against the i-th window.
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/quake-energy/internal/adapter/files"
	"github.com/couchcryptid/quake-energy/internal/domain"
)

// relTol bounds relative floating point drift between independent energy sums.
const relTol = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// catalogFile is one window CSV with its raw and parsed row counts.
type catalogFile struct {
	path    string
	rawRows int
	quakes  []domain.Quake
	skipped []domain.ParseError
}

func main() {
	catalogDir := flag.String("catalog-dir", "", "directory containing one USGS CSV per window, in lexical window order")
	outDir := flag.String("out-dir", "", "optional quake-energy output directory to cross-check")
	start := flag.String("start", "2020-12-01", "first window start (YYYY-MM-DD, UTC)")
	end := flag.String("end", "2024-12-01", "last window end (YYYY-MM-DD, UTC)")
	months := flag.Int("months", 6, "window length in months")
	flag.Parse()

	if *catalogDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	windows, err := parseWindows(*start, *end, *months)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if code := run(*catalogDir, *outDir, windows); code != 0 {
		os.Exit(code)
	}
}

func parseWindows(start, end string, months int) ([]domain.Window, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return nil, fmt.Errorf("invalid -start: %w", err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return nil, fmt.Errorf("invalid -end: %w", err)
	}
	return domain.SplitWindows(s, e, months)
}

func run(catalogDir, outDir string, windows []domain.Window) int {
	fmt.Println("=== Earthquake Catalog Integrity Validation ===")
	fmt.Println()

	catalogs, err := loadCatalogs(catalogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load catalogs: %v\n", err)
		return 1
	}

	batches := make([][]domain.Quake, len(catalogs))
	for i, c := range catalogs {
		batches[i] = c.quakes
	}
	quakes := domain.Enrich(domain.Concat(batches...))

	phases := []*phase{
		validateParseParity(catalogs),
		validateConcatenation(catalogs, quakes),
		validateWindows(catalogs, windows),
		validateEnergy(quakes),
	}
	if outDir != "" {
		phases = append(phases, validateArtifacts(outDir, quakes))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d files, %d raw rows, %d parsed, %d skipped\n",
		len(catalogs), countRaw(catalogs), len(quakes), countSkipped(catalogs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadCatalogs(dir string) ([]catalogFile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files in %s", dir)
	}
	sort.Strings(paths)

	catalogs := make([]catalogFile, 0, len(paths))
	for i, path := range paths {
		c, err := loadCatalog(path, i)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		catalogs = append(catalogs, c)
	}
	return catalogs, nil
}

func loadCatalog(path string, window int) (catalogFile, error) {
	rawRows, err := countCSVRows(path)
	if err != nil {
		return catalogFile{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return catalogFile{}, err
	}
	defer f.Close()

	quakes, skipped, err := domain.ParseCatalog(f, window)
	if err != nil {
		return catalogFile{}, err
	}
	return catalogFile{path: path, rawRows: rawRows, quakes: quakes, skipped: skipped}, nil
}

// countCSVRows counts data rows independently of the catalog parser.
func countCSVRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	n := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n - 1, nil
}

func countRaw(catalogs []catalogFile) int {
	n := 0
	for _, c := range catalogs {
		n += c.rawRows
	}
	return n
}

func countSkipped(catalogs []catalogFile) int {
	n := 0
	for _, c := range catalogs {
		n += len(c.skipped)
	}
	return n
}

// ── Phase 1: Parse Parity ──
// Every raw CSV row is either parsed or reported as skipped.

func validateParseParity(catalogs []catalogFile) *phase {
	p := &phase{name: "Phase 1: Parse Parity (CSV rows)"}
	for _, c := range catalogs {
		name := filepath.Base(c.path)
		if got := len(c.quakes) + len(c.skipped); got != c.rawRows {
			p.errorf("%s: %d raw rows, %d parsed + %d skipped", name, c.rawRows, len(c.quakes), len(c.skipped))
		}
		for _, s := range c.skipped {
			p.errorf("%s line %d: skipped: %v", name, s.Line, s.Err)
		}
	}
	return p
}

// ── Phase 2: Concatenation ──
// Rows appear exactly once, in window order, with unique event IDs.

func validateConcatenation(catalogs []catalogFile, quakes []domain.Quake) *phase {
	p := &phase{name: "Phase 2: Concatenation (row identity)"}

	expected := 0
	for _, c := range catalogs {
		expected += len(c.quakes)
	}
	if len(quakes) != expected {
		p.errorf("concatenated count: expected %d, got %d", expected, len(quakes))
	}

	seen := make(map[string]int, len(quakes))
	lastWindow := 0
	for i, q := range quakes {
		if q.Window < lastWindow {
			p.errorf("row %d (ID %s): window %d follows window %d", i, q.ID, q.Window, lastWindow)
		}
		lastWindow = q.Window

		if q.ID == "" {
			continue
		}
		if prev, dup := seen[q.ID]; dup {
			p.errorf("ID %s: appears at rows %d and %d (overlapping windows?)", q.ID, prev, i)
			continue
		}
		seen[q.ID] = i
	}
	return p
}

// ── Phase 3: Windows ──
// Each file's rows fall inside its half-open window, so adjacent windows
// cannot contribute the same event twice.

func validateWindows(catalogs []catalogFile, windows []domain.Window) *phase {
	p := &phase{name: "Phase 3: Windows (half-open ranges)"}
	if len(catalogs) != len(windows) {
		p.errorf("%d catalog files for %d windows", len(catalogs), len(windows))
		return p
	}
	for i, c := range catalogs {
		w := windows[i]
		for _, q := range c.quakes {
			if !w.Contains(q.Time) {
				p.errorf("%s: ID %s at %s is outside window %s",
					filepath.Base(c.path), q.ID, q.Time.Format(time.RFC3339), w)
			}
		}
	}
	return p
}

// ── Phase 4: Energy ──
// Per-event energy, the cumulative fraction and the yearly totals agree.

func validateEnergy(quakes []domain.Quake) *phase {
	p := &phase{name: "Phase 4: Energy (formula and conservation)"}
	if len(quakes) == 0 {
		return p
	}

	for _, q := range quakes {
		want := math.Pow(10, 1.5*q.Magnitude+4.8)
		if !relEq(q.Energy, want) {
			p.errorf("ID %s: energy %g J for M%g, expected %g J", q.ID, q.Energy, q.Magnitude, want)
		}
	}

	total := domain.TotalEnergy(quakes)
	cum := domain.CumulativeFraction(quakes)
	prev := 0.0
	for i, c := range cum {
		if c.Fraction < prev {
			p.errorf("cumulative fraction decreases at point %d: %g < %g", i, c.Fraction, prev)
		}
		prev = c.Fraction
	}
	if last := cum[len(cum)-1].Fraction; last != 1 {
		p.errorf("cumulative fraction ends at %g, expected 1", last)
	}

	years := domain.YearlyEnergy(quakes)
	var yearly float64
	count := 0
	for _, y := range years {
		yearly += y.Energy
		count += y.Count
	}
	if !relEq(yearly, total) {
		p.errorf("yearly energy sums to %g J, row total is %g J", yearly, total)
	}
	if count != len(quakes) {
		p.errorf("yearly counts sum to %d, expected %d", count, len(quakes))
	}
	return p
}

// ── Phase 5: Artifacts ──
// The run's GeoJSON layer and summary describe the same catalog.

func validateArtifacts(outDir string, quakes []domain.Quake) *phase {
	p := &phase{name: "Phase 5: Artifacts (GeoJSON and summary)"}

	data, err := os.ReadFile(filepath.Join(outDir, files.EventsFile))
	if err != nil {
		p.errorf("read %s: %v", files.EventsFile, err)
	} else if fc, err := geojson.UnmarshalFeatureCollection(data); err != nil {
		p.errorf("parse %s: %v", files.EventsFile, err)
	} else {
		checkFeatures(p, fc, quakes)
	}

	data, err = os.ReadFile(filepath.Join(outDir, files.SummaryFile))
	if err != nil {
		p.errorf("read %s: %v", files.SummaryFile, err)
		return p
	}
	var s domain.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		p.errorf("parse %s: %v", files.SummaryFile, err)
		return p
	}
	checkSummary(p, s, domain.Summarize(quakes))
	return p
}

func checkFeatures(p *phase, fc *geojson.FeatureCollection, quakes []domain.Quake) {
	if len(fc.Features) != len(quakes) {
		p.errorf("%s: %d features, expected %d", files.EventsFile, len(fc.Features), len(quakes))
		return
	}
	for i, f := range fc.Features {
		id := fmt.Sprint(f.ID)
		if id != quakes[i].ID {
			p.errorf("feature %d: ID %q, expected %q", i, id, quakes[i].ID)
		}
		if mag := f.Properties.MustFloat64("mag", math.NaN()); !relEq(mag, quakes[i].Magnitude) {
			p.errorf("feature %d (ID %s): mag %g, expected %g", i, id, mag, quakes[i].Magnitude)
		}
	}
}

func checkSummary(p *phase, got, want domain.Summary) {
	if got.Events != want.Events {
		p.errorf("summary events: expected %d, got %d", want.Events, got.Events)
	}
	if !relEq(got.TotalEnergy, want.TotalEnergy) {
		p.errorf("summary total_energy: expected %g, got %g", want.TotalEnergy, got.TotalEnergy)
	}
	if got.Largest.ID != want.Largest.ID {
		p.errorf("summary largest: expected %s, got %s", want.Largest.ID, got.Largest.ID)
	}
	if !relEq(got.LargestShare, want.LargestShare) {
		p.errorf("summary largest_share: expected %g, got %g", want.LargestShare, got.LargestShare)
	}
	if !relEq(got.BeforeLargestShare, want.BeforeLargestShare) {
		p.errorf("summary before_largest_share: expected %g, got %g", want.BeforeLargestShare, got.BeforeLargestShare)
	}
}

// ── Helpers ──

func relEq(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= relTol*math.Max(math.Abs(a), math.Abs(b))
}
