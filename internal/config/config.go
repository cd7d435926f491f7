package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/quake-energy/internal/domain"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	USGSBaseURL string
	USGSTimeout time.Duration

	BoundingBox domain.BoundingBox
	Windows     []domain.Window

	OutputDir string
	MapBins   int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka sink for enriched events.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	// Mapbox base map and reverse geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxStyle     string
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	usgsTimeout, err := parseDuration("USGS_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	bbox := domain.DefaultBoundingBox()
	if s := os.Getenv("BBOX"); s != "" {
		bbox, err = domain.ParseBoundingBox(s)
		if err != nil {
			return nil, fmt.Errorf("invalid BBOX: %w", err)
		}
	}

	windows, err := parseWindows()
	if err != nil {
		return nil, err
	}

	mapBins, err := parsePositiveInt("MAP_BINS", 40)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		USGSBaseURL:     sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://earthquake.usgs.gov/fdsnws/event/1"),
		USGSTimeout:     usgsTimeout,
		BoundingBox:     bbox,
		Windows:         windows,
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		MapBins:         mapBins,
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "quake-energy-events"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxStyle:     sharedcfg.EnvOrDefault("MAPBOX_STYLE", "mapbox/light-v11"),
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.USGSBaseURL == "" {
		return nil, errors.New("USGS_BASE_URL is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// parseWindows builds the query windows from WINDOWS_START, WINDOWS_END and
// WINDOW_MONTHS. With none of them set the default eight windows are used.
func parseWindows() ([]domain.Window, error) {
	startStr := os.Getenv("WINDOWS_START")
	endStr := os.Getenv("WINDOWS_END")
	monthsStr := os.Getenv("WINDOW_MONTHS")
	if startStr == "" && endStr == "" && monthsStr == "" {
		return domain.DefaultWindows(), nil
	}

	defaults := domain.DefaultWindows()
	start := defaults[0].Start
	end := defaults[len(defaults)-1].End

	var err error
	if startStr != "" {
		if start, err = time.Parse(time.DateOnly, startStr); err != nil {
			return nil, errors.New("invalid WINDOWS_START")
		}
	}
	if endStr != "" {
		if end, err = time.Parse(time.DateOnly, endStr); err != nil {
			return nil, errors.New("invalid WINDOWS_END")
		}
	}
	months, err := parsePositiveInt("WINDOW_MONTHS", 6)
	if err != nil {
		return nil, err
	}

	windows, err := domain.SplitWindows(start, end, months)
	if err != nil {
		return nil, fmt.Errorf("invalid WINDOWS_START/WINDOWS_END: %w", err)
	}
	return windows, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}
