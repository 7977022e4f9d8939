// Package main initializes and starts the libresync daemon: it loads
// configuration, opens the credential and health stores, wires the
// LibreLinkUp client and sync pipeline, schedules the recurring job and
// serves the operational HTTP endpoints.
package main

import (
	"cmp"
	"context"
	"fmt"
	"time"

	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/libresync/libresync/internal/config"
	"github.com/libresync/libresync/internal/credstore"
	"github.com/libresync/libresync/internal/db"
	"github.com/libresync/libresync/internal/linkup"
	"github.com/libresync/libresync/internal/logger"
	"github.com/libresync/libresync/internal/metrics"
	"github.com/libresync/libresync/internal/normalize"
	"github.com/libresync/libresync/internal/repository"
	"github.com/libresync/libresync/internal/scheduler"
	"github.com/libresync/libresync/internal/server/handler/http"
	"github.com/libresync/libresync/internal/service"
	"github.com/libresync/libresync/internal/wearable"
)

// probeTimeout bounds the connectivity check before each scheduled run.
const probeTimeout = 5 * time.Second

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	cfg := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(cfg.Logging.Level); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	if cfg.Health.DatabaseDSN == "" {
		zapLogger.Fatal("health.database_dsn is required")
	}

	// Initialize the health store.
	postgresDB, err := db.InitPostgres(cfg.Health.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Drop readings older than the retention window, when configured.
	db.StartRetentionCleaner(context.Background(), postgresDB,
		cfg.Health.CleanerInterval,
		cfg.Health.Retention,
		zapLogger,
	)

	// Open the encrypted credential store.
	store, err := credstore.Open(cfg.Store.Path, cfg.Store.Secret, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot open credential store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	// Metrics registry and collector.
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// LibreLinkUp client with a circuit breaker around connections polling.
	client := linkup.NewClient(cfg.LinkUp, zapLogger)
	fetcher := linkup.NewBreakerClient(client, zapLogger, func(to gobreaker.State) {
		collector.SetBreakerState(linkup.StateValue(to))
	})

	normalizer := normalize.New(zapLogger)

	// Wearable mirror, nop unless enabled.
	var mirror wearable.Mirror = wearable.NopMirror{}
	if cfg.Wearable.Enabled {
		m, err := wearable.NewNATSMirror(cfg.Wearable, log)
		if err != nil {
			zapLogger.Fatal("cannot connect wearable mirror", zap.Error(err))
		}
		mirror = m
	}
	defer mirror.Close()

	readings := repository.NewPostgresReadingRepository(postgresDB)
	syncService := service.NewSyncService(
		fetcher, store, readings, normalizer, mirror, collector,
		cfg.Health.Origin, zapLogger,
	)

	// Surface the last synced reading so a restart shows where it left off.
	if latest, err := readings.LatestReading(context.Background()); err == nil && latest != nil {
		zapLogger.Info("latest stored reading",
			zap.Int("value_mg_per_dl", latest.ValueMgPerDl),
			zap.Time("recorded_at", latest.RecordedAt),
		)
	}

	// Schedule the recurring sync. Without stored credentials this is a
	// no-op; log in with the libresync CLI and restart the daemon.
	checker, err := scheduler.NewDialChecker(cfg.LinkUp.URL, probeTimeout)
	if err != nil {
		zapLogger.Fatal("cannot build connectivity checker", zap.Error(err))
	}
	sched := scheduler.New(syncService, store, checker, cfg.Sync.Interval, collector, zapLogger)
	defer sched.Cancel()
	sched.Schedule(context.Background())

	// Operational HTTP endpoints.
	statusHandler := &http.StatusHandler{StatusService: syncService, Schedule: sched}
	router := http.NewRouter(statusHandler, registry, zapLogger)

	server := &nethttp.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	zapLogger.Info("starting operational server", zap.String("addr", cfg.Server.Addr))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start operational server", zap.Error(err))
	}
}
