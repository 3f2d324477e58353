package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/harborline-tours/service-payments/internal/kafka"
)

// RefundSettler resolves pending refunds from gateway confirmations. Satisfied
// by application.PaymentService.
type RefundSettler interface {
	HandleGatewayRefundSucceeded(ctx context.Context, event GatewayRefundSucceededEvent) error
	HandleGatewayRefundFailed(ctx context.Context, event GatewayRefundFailedEvent) error
}

// GatewayEventConsumer consumes the gateway topic the Stripe webhook edge
// relays into and settles pending refunds accordingly.
type GatewayEventConsumer struct {
	consumer *kafka.Consumer
	settler  RefundSettler
	logger   *zap.Logger
}

// NewGatewayEventConsumer creates a GatewayEventConsumer.
func NewGatewayEventConsumer(consumer *kafka.Consumer, settler RefundSettler, logger *zap.Logger) *GatewayEventConsumer {
	return &GatewayEventConsumer{
		consumer: consumer,
		settler:  settler,
		logger:   logger,
	}
}

// Start consumes until the context is cancelled. Blocking; run in a goroutine.
func (c *GatewayEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka reader.
func (c *GatewayEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *GatewayEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	ce, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event envelope",
			zap.Int64("offset", msg.Offset), zap.Error(err))
		return err
	}

	switch ce.Type {
	case GatewayRefundSucceeded:
		var event GatewayRefundSucceededEvent
		if err := ce.ParseData(&event); err != nil {
			c.logger.Error("failed to parse gateway refund succeeded event",
				zap.String("event_id", ce.ID), zap.Error(err))
			return err
		}
		return c.settler.HandleGatewayRefundSucceeded(ctx, event)

	case GatewayRefundFailed:
		var event GatewayRefundFailedEvent
		if err := ce.ParseData(&event); err != nil {
			c.logger.Error("failed to parse gateway refund failed event",
				zap.String("event_id", ce.ID), zap.Error(err))
			return err
		}
		return c.settler.HandleGatewayRefundFailed(ctx, event)

	default:
		c.logger.Debug("ignoring gateway event", zap.String("type", ce.Type))
		return nil
	}
}
