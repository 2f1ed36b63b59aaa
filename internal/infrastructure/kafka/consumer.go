package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chainnotes/internal/infrastructure/telemetry"
	"chainnotes/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventHandler processes one decoded event. A returned error causes the same
// event to be redelivered until it succeeds or the consumer stops.
type EventHandler func(ctx context.Context, event streaming.Event) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Logger  *slog.Logger
}

const maxRetryDelay = 30 * time.Second

type Consumer struct {
	reader     messageReader
	logger     *slog.Logger
	retryDelay time.Duration
}

func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka group id is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = defaultTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, cfg.Logger), nil
}

func newConsumer(reader messageReader, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{reader: reader, logger: logger, retryDelay: 500 * time.Millisecond}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run fetches until ctx is cancelled. Undecodable messages are committed and
// skipped. A failing event blocks its partition: it is retried with backoff and
// nothing after it is fetched, so a later commit never covers it.
func (c *Consumer) Run(ctx context.Context, handle EventHandler) error {
	tracer := otel.Tracer("chainnotes/kafka")
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			c.logger.Warn("kafka fetch error", "error", err)
			if !sleepCtx(ctx, c.retryDelay) {
				return nil
			}
			continue
		}

		event, err := streaming.Decode(message.Value)
		if err != nil {
			c.logger.Warn("event decode error", "topic", message.Topic, "offset", message.Offset, "error", err)
			c.commit(ctx, message)
			continue
		}

		if !c.handleUntilDone(ctx, tracer, message, event, handle) {
			return nil
		}
		c.commit(ctx, message)
	}
}

// handleUntilDone reports false when ctx ends before the handler succeeds.
func (c *Consumer) handleUntilDone(ctx context.Context, tracer trace.Tracer, message kafka.Message, event streaming.Event, handle EventHandler) bool {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		messageCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
		messageCtx, span := tracer.Start(messageCtx, "events.consume", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(
			attribute.String("event.type", string(event.Type)),
			attribute.String("event.id", event.ID),
			attribute.Int("messaging.partition", message.Partition),
			attribute.Int("attempt", attempt),
		)
		err := handle(messageCtx, event)
		if err == nil {
			span.End()
			return true
		}
		c.logger.Error("event handler error", "event_id", event.ID, "type", event.Type, "offset", message.Offset, "attempt", attempt, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		if !sleepCtx(ctx, delay) {
			return false
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		c.logger.Warn("kafka commit error", "offset", message.Offset, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
