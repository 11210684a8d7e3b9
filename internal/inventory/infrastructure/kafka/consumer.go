package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopflow/inventory-service/pkg/idempotency"
	"github.com/shopflow/inventory-service/pkg/tracing"
)

type Handler func(ctx context.Context, payload []byte) error

// Consumer reads one topic and routes messages by their event_type
// header. Handler errors are logged and the message is dropped; the
// engine's order-keyed idempotency makes the upstream redelivery safe.
type Consumer struct {
	log      *slog.Logger
	reader   *kafka.Reader
	handlers map[string]Handler
	idem     *idempotency.Store
	tracer   trace.Tracer
	group    string
	timeout  time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, idem *idempotency.Store, handlers map[string]Handler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:      log,
		reader:   r,
		handlers: handlers,
		idem:     idem,
		tracer:   otel.Tracer(group),
		group:    group,
		timeout:  10 * time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		c.handle(ctx, msg)
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	eventType := tracing.HeaderValue(msg.Headers, "event_type")
	if eventType == "" {
		c.log.Warn("message without event_type header dropped",
			"topic", msg.Topic, "offset", msg.Offset)
		return
	}
	h, ok := c.handlers[eventType]
	if !ok {
		c.log.Debug("event type not handled here", "event_type", eventType)
		return
	}

	// The SetNX claim lands before the handler runs and the offset is
	// committed. A crash inside that window skips the delivery until
	// the idempotency TTL lapses; a hold stranded by such a skip is
	// released by the expiry sweeper.
	key := c.idem.Key(c.group, msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		// Handlers tolerate duplicate delivery, so process anyway.
		c.log.Error("idempotency check failed", "err", err)
		seen = false
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "Consume "+eventType)
	defer span.End()

	msgCtx, cancel := context.WithTimeout(msgCtx, c.timeout)
	defer cancel()

	if err := h(msgCtx, msg.Value); err != nil {
		c.log.Error("event handling failed",
			"event_type", eventType, "topic", msg.Topic, "offset", msg.Offset, "err", err)
		// Let the upstream re-emit reach the handler again.
		_ = c.idem.Forget(ctx, key)
	}
}
