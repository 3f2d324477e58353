package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harborline-tours/service-payments/internal/kafka"
)

// Kafka topics.
const (
	// TopicPaymentEvents carries events this service produces for downstream
	// consumers (notifications, CRM).
	TopicPaymentEvents = "payments.events"

	// TopicGatewayEvents carries gateway confirmations relayed by the Stripe
	// webhook edge.
	TopicGatewayEvents = "gateway.events"
)

// Event types.
const (
	PaymentRecorded = "payments.payment.recorded"
	RefundIssued    = "payments.refund.issued"
	RefundSettled   = "payments.refund.settled"
	BookingRepriced = "payments.booking.repriced"

	GatewayRefundSucceeded = "gateway.refund.succeeded"
	GatewayRefundFailed    = "gateway.refund.failed"
)

// Publisher publishes CloudEvents. Satisfied by kafka.Producer; application
// tests substitute a recording fake.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// PaymentRecordedEvent is published when a payment completes.
type PaymentRecordedEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	BookingKind string    `json:"booking_kind"`
	Purpose     string    `json:"purpose"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RefundIssuedEvent is published when one or more gateway refunds are issued
// for a booking.
type RefundIssuedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	BookingKind string    `json:"booking_kind"`
	RefundIDs   []string  `json:"refund_ids"`
	AmountCents int64     `json:"amount_cents"`
	Percentage  float64   `json:"percentage"`
	RefundType  string    `json:"refund_type"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RefundSettledEvent is published when the gateway confirms a refund outcome.
type RefundSettledEvent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	RefundID   string    `json:"refund_id"`
	Outcome    string    `json:"outcome"`
	ReceiptURL string    `json:"receipt_url,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingRepricedEvent is published when a booking edit changes its price.
type BookingRepricedEvent struct {
	BookingID       uuid.UUID `json:"booking_id"`
	OriginalCents   int64     `json:"original_cents"`
	NewCents        int64     `json:"new_cents"`
	DifferenceCents int64     `json:"difference_cents"`
	ChangeType      string    `json:"change_type"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// GatewayRefundSucceededEvent is relayed by the webhook edge when Stripe
// confirms a refund.
type GatewayRefundSucceededEvent struct {
	RefundID        string    `json:"refund_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	AmountCents     int64     `json:"amount_cents"`
	ReceiptURL      string    `json:"receipt_url,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// GatewayRefundFailedEvent is relayed by the webhook edge when Stripe rejects
// a refund.
type GatewayRefundFailedEvent struct {
	RefundID        string    `json:"refund_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	FailureReason   string    `json:"failure_reason"`
	OccurredAt      time.Time `json:"occurred_at"`
}
