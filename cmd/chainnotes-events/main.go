package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainnotes/internal/config"
	"chainnotes/internal/infrastructure/kafka"
	"chainnotes/internal/infrastructure/logging"
	"chainnotes/internal/infrastructure/telemetry"
	"chainnotes/internal/streaming"

	"go.opentelemetry.io/otel/trace"
)

var version = "dev"

// chainnotes-events tails the domain events topic and writes one log line per event.
func main() {
	cfg, err := config.LoadConsumerFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, _, err := logging.Init(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "chainnotes-events",
	})
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "chainnotes-events", version, cfg.OtelEndpoint)
	if err != nil {
		logger.Warn("tracing init error", "error", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(ctx)
		}()
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("kafka consumer error: %v", err)
	}
	defer consumer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("tailing events", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	var count uint64
	err = consumer.Run(ctx, func(ctx context.Context, event streaming.Event) error {
		count++
		attrs := []any{
			"type", event.Type,
			"id", event.ID,
			"user_id", event.UserID,
			"occurred_at", event.OccurredAt,
		}
		switch event.Type {
		case streaming.EventTypeSnapshotRefreshed:
			attrs = append(attrs, "address", event.Address, "tx_count", event.TxCount)
		case streaming.EventTypeTextStored:
			attrs = append(attrs, "label", event.Label, "cid", event.CID)
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			attrs = append(attrs, "trace_id", sc.TraceID().String())
		}
		logger.Info("event", attrs...)
		return nil
	})
	if err != nil {
		logger.Error("consumer stopped", "error", err)
	}
	logger.Info("events tail stopped", "events", count)
}
