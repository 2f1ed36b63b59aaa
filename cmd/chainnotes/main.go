package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainnotes/internal/application"
	"chainnotes/internal/config"
	"chainnotes/internal/infrastructure/contentstore"
	"chainnotes/internal/infrastructure/etherscan"
	"chainnotes/internal/infrastructure/kafka"
	"chainnotes/internal/infrastructure/logging"
	"chainnotes/internal/infrastructure/storage"
	"chainnotes/internal/infrastructure/telemetry"
	"chainnotes/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, logFile, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Service:    "chainnotes",
	})
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "chainnotes", version, cfg.OtelEndpoint)
	if err != nil {
		logger.Warn("tracing init error", "error", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				logger.Warn("tracing shutdown error", "error", err)
			}
		}()
	}

	repo, err := storage.Open(cfg.DBDSN)
	if err != nil {
		fatal(logger, "db error", err)
	}
	if cached, err := storage.NewCachedRepository(repo, storage.CacheConfig{
		Addr: cfg.RedisAddr,
		TTL:  cfg.CacheTTL,
	}); err != nil {
		logger.Warn("redis cache disabled", "addr", cfg.RedisAddr, "error", err)
	} else {
		repo = cached
	}
	defer repo.Close()
	logger.Info("document store ready", "backend", storage.Backend(repo))

	source, err := etherscan.NewClient(etherscan.Config{
		URL:     cfg.EtherscanURL,
		APIKey:  cfg.EtherscanAPIKey,
		Timeout: cfg.UpstreamTimeout,
	})
	if err != nil {
		fatal(logger, "etherscan client error", err)
	}

	content := contentstore.NewProvider(contentstore.Config{
		Dir:    cfg.ContentStoreDir,
		Logger: logger.With("component", "contentstore"),
	})
	defer content.Close()

	metrics := httpapi.NewMetrics()
	snapshotOpts := []application.SnapshotOption{
		application.WithSnapshotObserver(metrics),
		application.WithSnapshotLogger(logger.With("component", "snapshots")),
	}
	textOpts := []application.TextOption{
		application.WithTextObserver(metrics),
		application.WithTextLogger(logger.With("component", "texts")),
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			fatal(logger, "kafka producer error", err)
		}
		defer producer.Close()
		snapshotOpts = append(snapshotOpts, application.WithSnapshotEvents(producer))
		textOpts = append(textOpts, application.WithTextEvents(producer))
		logger.Info("domain events enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	snapshots, err := application.NewSnapshotService(source, repo, snapshotOpts...)
	if err != nil {
		fatal(logger, "snapshot service error", err)
	}
	texts, err := application.NewTextService(content, repo, textOpts...)
	if err != nil {
		fatal(logger, "text service error", err)
	}

	httpServer, err := httpapi.NewServer(cfg, snapshots, texts, repo, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		fatal(logger, "http server error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if logFile != nil {
		go rotateOnHangup(ctx, logFile, logger)
	}

	if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		logger.Error("http server error", "error", err)
	}
	logger.Info("shutting down")
}

func rotateOnHangup(ctx context.Context, w *logging.RotatingWriter, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := w.Rotate(); err != nil {
				logger.Error("log rotation failed", "error", err)
			}
		}
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
