// API server entry point: serves the resolution write API and the export
// read API over the shared registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appexport "github.com/DailyForkCast/osint-foresight-sub003/internal/application/export"
	appres "github.com/DailyForkCast/osint-foresight-sub003/internal/application/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/bootstrap"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/config"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/postgres"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/postgres/repositories"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/redis"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/messaging/kafka"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/prometheus"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/storage/minio"
	httpserver "github.com/DailyForkCast/osint-foresight-sub003/internal/interfaces/http"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/interfaces/http/handlers"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

// Build-time variable injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger.Info("starting foresight api server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "foresight",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := repositories.NewRegistryRepository(pool, repositories.AdaptLogger(logger))

	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	checkpoints := redis.NewCheckpointStore(redisClient, cfg.Redis.DefaultTTL, logger)

	// The publisher and archive are optional: runs still work without the
	// message bus or the object store, they just skip forwarding/archival.
	var publisher appres.Publisher
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		publisher = producer
	}

	var archive appexport.PackArchive
	var objectStore *minio.Client
	if cfg.MinIO.Endpoint != "" {
		objectStore, err = minio.NewClient(cfg.MinIO, logger)
		if err != nil {
			return err
		}
		defer objectStore.Close()
		archive = minio.NewPackArchive(objectStore, logger)
	}

	// --- Domain and application services ---

	core, err := bootstrap.BuildCore(ctx, store, cfg.Resolver, logger)
	if err != nil {
		return err
	}

	batchSvc, err := appres.NewService(core.Engine, core.Index, core.Normalizer, store,
		checkpoints, publisher, cfg.Worker.Concurrency, logger)
	if err != nil {
		return err
	}
	exportSvc, err := appexport.NewService(store, core.Packs, core.Calculator, archive, logger)
	if err != nil {
		return err
	}
	// The registry export and quality report sweep the whole store, so the
	// API serves them through a short-lived redis cache.
	readCache := redis.NewRedisCache(redisClient, logger)
	cachedExport, err := appexport.NewCachedService(exportSvc, readCache, 30*time.Second, logger)
	if err != nil {
		return err
	}

	// --- HTTP surface ---

	checkers := []handlers.HealthChecker{
		&postgresHealthAdapter{pool: pool},
		&redisHealthAdapter{client: redisClient},
	}
	if objectStore != nil {
		checkers = append(checkers, &minioHealthAdapter{client: objectStore})
	}

	limiter := middleware.NewTokenBucketLimiter(10, 20, 0)
	defer limiter.Stop()

	corsCfg := middleware.DefaultCORSConfig()
	srv := httpserver.NewServer(cfg.Server.Port, httpserver.RouterConfig{
		ExportHandler:     handlers.NewExportHandler(cachedExport, logger),
		ResolutionHandler: handlers.NewResolutionHandler(&invalidatingBatchService{Service: batchSvc, cache: cachedExport}, logger),
		HealthHandler:     handlers.NewHealthHandler(version, checkers...),
		CORS:              &corsCfg,
		RateLimiter:       limiter,
		Logger:            logger,
		Metrics:           appMetrics,
		MetricsCollector:  collector,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	return <-errCh
}
