package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/quake-energy/internal/adapter/files"
	httpadapter "github.com/couchcryptid/quake-energy/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-energy/internal/adapter/kafka"
	"github.com/couchcryptid/quake-energy/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-energy/internal/adapter/usgs"
	"github.com/couchcryptid/quake-energy/internal/config"
	"github.com/couchcryptid/quake-energy/internal/domain"
	"github.com/couchcryptid/quake-energy/internal/observability"
	"github.com/couchcryptid/quake-energy/internal/pipeline"
	"github.com/couchcryptid/quake-energy/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	opts := pipeline.Options{Artifacts: files.NewWriter(cfg.OutputDir)}

	// Base map and reverse geocoding are feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxStyle, cfg.MapboxTimeout, metrics, logger)
		opts.BaseMapper = mapbox.NewCachedBaseMap(client, cfg.MapboxCacheSize, metrics)
		opts.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		logger.Info("mapbox enabled", "style", cfg.MapboxStyle, "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox disabled")
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts.Publisher = writer
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	fetcher := usgs.NewClient(cfg.USGSBaseURL, cfg.USGSTimeout, logger)
	renderer := render.NewRenderer(cfg.MapBins, metrics, logger)
	p := pipeline.New(fetcher, renderer, opts, cfg.BoundingBox, cfg.Windows, cfg.OutputDir, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	summary, runErr := p.Run(ctx)
	if runErr != nil {
		logger.Error("analysis failed", "error", runErr)
	} else {
		printSummary(summary)
	}

	// With HTTP enabled the report stays available until a signal arrives.
	if srv != nil && runErr == nil {
		<-ctx.Done()
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if runErr != nil {
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func printSummary(s domain.Summary) {
	fmt.Printf("events:                     %d\n", s.Events)
	if s.Events == 0 {
		return
	}
	fmt.Printf("total energy:               %.4e J\n", s.TotalEnergy)
	fmt.Printf("equivalent magnitude:       %.3f\n", s.EquivalentMagnitude)
	fmt.Printf("largest event:              M%.1f %s (%s)\n", s.Largest.Magnitude, s.Largest.Time.Format("2006-01-02 15:04:05Z"), s.Largest.Place)
	fmt.Printf("largest event share:        %.4f\n", s.LargestShare)
	fmt.Printf("share before largest event: %.4f\n", s.BeforeLargestShare)
}
