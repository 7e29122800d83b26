// Worker entry point: consumes the mention stream from Kafka, resolves each
// mention against the shared registry, and publishes decisions, rejections,
// and mismatch reports back to the bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appres "github.com/DailyForkCast/osint-foresight-sub003/internal/application/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/bootstrap"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/config"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/postgres"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/postgres/repositories"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/redis"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/messaging/kafka"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/prometheus"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultProbePort  = 8081

	// streamLockID names the lease guarding the streaming resolver. The
	// engine's in-memory index is not shared, so exactly one worker may
	// mutate the registry at a time.
	streamLockID = "stream-resolver"
	lockTTL      = 2 * time.Minute
)

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	workerCount := flag.Int("workers", 0, "resolver concurrency (overrides config)")
	probePort := flag.Int("probe-port", defaultProbePort, "port for health and metrics endpoints")
	flag.Parse()

	if err := run(*configPath, *workerCount, *probePort); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, workerCount, probePort int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if workerCount > 0 {
		cfg.Worker.Concurrency = workerCount
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger = logger.Named("worker")
	logger.Info("starting foresight worker",
		logging.String("version", version),
		logging.Int("concurrency", cfg.Worker.Concurrency),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "foresight",
		Subsystem:            "worker",
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
	lock := redis.NewRunLock(redisClient, lockTTL, logger)

	topics, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		return err
	}
	if err := topics.EnsureDefaultTopics(ctx); err != nil {
		topics.Close()
		return err
	}
	topics.Close()

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	// --- Domain and application services ---

	core, err := bootstrap.BuildCore(ctx, store, cfg.Resolver, logger)
	if err != nil {
		return err
	}
	batchSvc, err := appres.NewService(core.Engine, core.Index, core.Normalizer, store,
		checkpoints, producer, cfg.Worker.Concurrency, logger)
	if err != nil {
		return err
	}

	// Only one worker may drive the engine at a time; wait for the lease
	// if another instance holds it.
	lease, err := acquireLease(ctx, lock, logger)
	if err != nil {
		return err
	}
	defer lease.Release(context.Background())
	go extendLease(ctx, lease, logger)

	// --- Consumer ---

	handler := func(ctx context.Context, dto restypes.MentionDTO) error {
		start := time.Now()
		d, err := batchSvc.ResolveOne(ctx, dto)
		if err != nil {
			prometheus.RecordRejection(appMetrics, dto.SourceID, string(errors.GetCode(err)))
			return err
		}
		prometheus.RecordDecision(appMetrics, string(d.State), d.Score, 0, time.Since(start))
		if err := producer.PublishDecision(ctx, d); err != nil {
			logger.Error("failed to publish decision",
				logging.String("mention_id", string(d.MentionID)),
				logging.Err(err),
			)
		}
		return nil
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka, handler, producer, logger)
	if err != nil {
		return err
	}
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	// --- Probe endpoints ---

	probe := probeServer(probePort, collector)
	go func() {
		if err := probe.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("probe server error", logging.Err(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := consumer.Stop(); err != nil {
		logger.Error("consumer stop error", logging.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := probe.Shutdown(shutdownCtx); err != nil {
		logger.Error("probe server shutdown error", logging.Err(err))
	}

	m := consumer.Metrics()
	logger.Info("worker stopped",
		logging.Int64("consumed", m.Consumed),
		logging.Int64("processed", m.Processed),
		logging.Int64("dead_lettered", m.DeadLettered),
	)
	return nil
}

// acquireLease blocks until the stream lease is free or the context ends.
func acquireLease(ctx context.Context, lock *redis.RunLock, logger logging.Logger) (*redis.Lease, error) {
	for {
		lease, err := lock.Acquire(ctx, streamLockID)
		if err == nil {
			return lease, nil
		}
		if !errors.IsCode(err, errors.ErrCodeConflict) {
			return nil, err
		}
		logger.Warn("stream lease held by another worker, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}
}

// extendLease refreshes the lease until the context ends. Losing the lease
// is fatal: another worker may already be mutating the registry.
func extendLease(ctx context.Context, lease *redis.Lease, logger logging.Logger) {
	ticker := time.NewTicker(lockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := lease.Extend(ctx)
			if err != nil {
				logger.Error("failed to extend stream lease", logging.Err(err))
				continue
			}
			if !ok {
				logger.Fatal("stream lease lost")
			}
		}
	}
}

func probeServer(port int, collector prometheus.MetricsCollector) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", collector.Handler())

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
