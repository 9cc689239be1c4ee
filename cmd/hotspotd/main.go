package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/couchcryptid/hotspot-map-service/internal/adapter/api"
	"github.com/couchcryptid/hotspot-map-service/internal/adapter/gcs"
	"github.com/couchcryptid/hotspot-map-service/internal/adapter/geoip"
	opshttp "github.com/couchcryptid/hotspot-map-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hotspot-map-service/internal/adapter/kafka"
	"github.com/couchcryptid/hotspot-map-service/internal/adapter/opencage"
	"github.com/couchcryptid/hotspot-map-service/internal/adapter/postgres"
	"github.com/couchcryptid/hotspot-map-service/internal/adapter/rediscache"
	"github.com/couchcryptid/hotspot-map-service/internal/adapter/ws"
	"github.com/couchcryptid/hotspot-map-service/internal/config"
	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/hotspot"
	"github.com/couchcryptid/hotspot-map-service/internal/locate"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.PGMaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	repo := postgres.NewRepository(db)
	ready := opshttp.Readiness{}

	// Reverse geocoding (feature-flagged via OPENCAGE_ENABLED / OPENCAGE_API_KEY).
	var geocoder domain.Geocoder
	if cfg.OpenCageEnabled {
		client := opencage.NewClient(cfg.OpenCageAPIKey, cfg.OpenCageTimeout, opencage.Options{
			Language:    cfg.OpenCageLanguage,
			CountryCode: cfg.OpenCageCountry,
		}, metrics, logger)
		geocoder = client
		if cfg.RedisAddr != "" {
			rdb, err := rediscache.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				logger.Warn("redis unavailable, geocode cache is memory-only", "error", err)
			} else {
				defer rdb.Close()
				geocoder = rediscache.NewGeocoder(geocoder, rdb, cfg.GeocodeCacheTTL, metrics, logger)
				ready = append(ready, opshttp.Check{Name: "redis", Checker: opshttp.CheckFunc(func(ctx context.Context) error {
					return rdb.Ping(ctx).Err()
				})})
			}
		}
		geocoder = opencage.NewCachedGeocoder(geocoder, cfg.GeocodeCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("opencage geocoding enabled", "cache_size", cfg.GeocodeCacheSize, "timeout", cfg.OpenCageTimeout)
	} else {
		logger.Info("opencage geocoding disabled, addresses use the fallback format")
	}

	storeOpts := []hotspot.Option{hotspot.WithGeocoder(geocoder)}

	// Photo uploads (feature-flagged via PHOTO_BUCKET).
	if cfg.PhotoBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer gcsClient.Close()
		storeOpts = append(storeOpts, hotspot.WithPhotoStore(gcs.NewPhotoStore(gcsClient, cfg.PhotoBucket, cfg.PhotoBaseURL)))
		logger.Info("photo uploads enabled", "bucket", cfg.PhotoBucket)
	}

	// IP location (feature-flagged via GEOIP_DB_PATH).
	var locator domain.UserLocator
	if cfg.GeoIPDBPath != "" {
		geo, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			return err
		}
		defer geo.Close()
		locator = locate.NewProvider(geo, cfg.LocationTimeout, cfg.LocationMaxAge, clockwork.NewRealClock())
	}

	// Realtime feed.
	var feed domain.ChangeFeed
	var onReconnect func(func())
	switch cfg.RealtimeSource {
	case config.RealtimeKafka:
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer closeWith(logger, "kafka writer", writer.Close)
		reader := kafkaadapter.NewReader(cfg, metrics, logger)
		defer closeWith(logger, "kafka reader", reader.Close)
		storeOpts = append(storeOpts, hotspot.WithPublisher(writer))
		feed = reader
	default:
		pgFeed := postgres.NewFeed(cfg.DatabaseURL, repo, metrics, logger)
		defer closeWith(logger, "postgres listener", pgFeed.Close)
		feed = pgFeed
		onReconnect = pgFeed.OnReconnect
	}
	logger.Info("realtime feed configured", "source", cfg.RealtimeSource)

	hub := ws.NewHub(metrics, logger)
	go hub.Run(ctx)

	store := hotspot.NewStore(repo, metrics, logger, storeOpts...)
	session := hotspot.NewSession(store, feed, hub, logger, metrics)
	if onReconnect != nil {
		onReconnect(func() {
			go func() {
				if err := session.Reload(ctx); err != nil {
					logger.Warn("resync after feed reconnect failed", "error", err)
				}
			}()
		})
	}
	session.Start(ctx)
	defer session.Close()
	ready = append(opshttp.Readiness{{Name: "session", Checker: session}}, ready...)

	resync, err := hotspot.NewResync(cfg.ResyncSchedule, session, cfg.ShutdownTimeout, logger)
	if err != nil {
		return err
	}
	resync.Start()

	apiSrv := api.NewServer(cfg.APIAddr, api.Deps{
		Session:       session,
		Store:         store,
		Geocoder:      geocoder,
		Locator:       locator,
		Stream:        hub,
		PhotoMaxBytes: cfg.PhotoMaxBytes,
		Logger:        logger,
	})
	opsSrv := opshttp.NewServer(cfg.HTTPAddr, ready, logger)

	go serve(logger, "api server", apiSrv.Start)
	go serve(logger, "ops server", opsSrv.Start)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", "error", err)
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}
	resync.Stop(shutdownCtx)

	logger.Info("shutdown complete")
	return nil
}

func serve(logger *slog.Logger, name string, start func() error) {
	if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(name+" error", "error", err)
	}
}

func closeWith(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error(name+" close error", "error", err)
	}
}
