package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"chainnotes/internal/domain"
	"chainnotes/internal/infrastructure/telemetry"
	"chainnotes/internal/streaming"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopic = "chainnotes-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = defaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return newProducer(writer, cfg.Topic), nil
}

func newProducer(writer messageWriter, topic string) *Producer {
	return &Producer{writer: writer, topic: topic, now: time.Now}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) PublishSnapshotRefreshed(ctx context.Context, snapshot domain.TransactionSnapshot) error {
	hashes := make([]string, 0, len(snapshot.Transactions))
	for _, tx := range snapshot.Transactions {
		hashes = append(hashes, tx.Hash)
	}
	return p.publish(ctx, "snapshot.publish_refreshed", streaming.Event{
		Type:     streaming.EventTypeSnapshotRefreshed,
		UserID:   snapshot.UserID,
		Address:  snapshot.Address,
		TxCount:  len(snapshot.Transactions),
		TxHashes: hashes,
	}, attribute.String("address", snapshot.Address), attribute.Int("tx.count", len(snapshot.Transactions)))
}

func (p *Producer) PublishTextStored(ctx context.Context, entry domain.LabeledText) error {
	return p.publish(ctx, "text.publish_stored", streaming.Event{
		Type:   streaming.EventTypeTextStored,
		UserID: entry.UserID,
		Label:  entry.Label,
		CID:    entry.CID,
	}, attribute.String("content.cid", entry.CID))
}

func (p *Producer) publish(ctx context.Context, spanName string, event streaming.Event, attrs ...attribute.KeyValue) error {
	traceCtx := ctx
	if !trace.SpanContextFromContext(ctx).IsValid() {
		if spanCtx, ok := telemetry.NewRootSpanContext(); ok {
			traceCtx = trace.ContextWithSpanContext(ctx, spanCtx)
		}
	}
	traceCtx, span := otel.Tracer("chainnotes/kafka").Start(traceCtx, spanName, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(attrs...)
	span.SetAttributes(attribute.String("messaging.destination", p.topic))

	event.ID = uuid.NewString()
	event.OccurredAt = p.now().UTC()
	if sc := span.SpanContext(); sc.HasTraceID() {
		event.TraceID = sc.TraceID().String()
	}
	payload, err := streaming.Encode(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	headers := make([]kafka.Header, 0, 2)
	telemetry.InjectKafkaHeaders(traceCtx, &headers)
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.Key()),
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
