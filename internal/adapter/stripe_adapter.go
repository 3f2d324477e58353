package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RefundParams carries everything needed to issue one gateway refund.
// AmountCents is in minor currency units. Metadata travels to the gateway so
// the webhook relay can correlate confirmations back to our records.
type RefundParams struct {
	PaymentIntentID string
	AmountCents     int64
	Reason          string
	Metadata        map[string]string
}

// StripeAdapter defines the Anti-Corruption Layer interface for Stripe
// payment operations. This abstraction decouples the domain from the external
// Stripe API.
type StripeAdapter interface {
	// CreateCustomer creates a Stripe customer for a booking's owner.
	CreateCustomer(ctx context.Context, email, name string) (customerID string, err error)

	// CreatePaymentIntent creates a PaymentIntent for a booking charge or upcharge.
	CreatePaymentIntent(ctx context.Context, amountCents int64, currency, customerID string) (paymentIntentID, clientSecret string, err error)

	// CancelPaymentIntent cancels an unconfirmed PaymentIntent.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error

	// CreateRefund refunds part or all of a confirmed PaymentIntent and
	// returns the gateway refund ID.
	CreateRefund(ctx context.Context, params RefundParams) (refundID string, err error)
}

// MockStripeAdapter is a development/testing implementation of StripeAdapter.
// It simulates Stripe behavior without requiring a real Stripe account.
type MockStripeAdapter struct {
	logger *zap.Logger
}

// NewMockStripeAdapter creates a new mock Stripe adapter for development.
func NewMockStripeAdapter(logger *zap.Logger) *MockStripeAdapter {
	return &MockStripeAdapter{logger: logger}
}

// CreateCustomer simulates creating a customer and returns a mock ID.
func (m *MockStripeAdapter) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	customerID := fmt.Sprintf("cus_mock_%s", uuid.New().String()[:8])

	m.logger.Info("[MOCK STRIPE] Customer created",
		zap.String("customer_id", customerID),
		zap.String("email", email),
	)

	return customerID, nil
}

// CreatePaymentIntent simulates creating a PaymentIntent and returns mock IDs.
func (m *MockStripeAdapter) CreatePaymentIntent(ctx context.Context, amountCents int64, currency, customerID string) (string, string, error) {
	paymentIntentID := fmt.Sprintf("pi_mock_%s", uuid.New().String()[:8])
	clientSecret := fmt.Sprintf("%s_secret_mock", paymentIntentID)

	m.logger.Info("[MOCK STRIPE] PaymentIntent created",
		zap.String("payment_intent_id", paymentIntentID),
		zap.Int64("amount_cents", amountCents),
		zap.String("currency", currency),
		zap.String("customer_id", customerID),
	)

	return paymentIntentID, clientSecret, nil
}

// CancelPaymentIntent simulates cancelling a PaymentIntent.
func (m *MockStripeAdapter) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	m.logger.Info("[MOCK STRIPE] PaymentIntent cancelled",
		zap.String("payment_intent_id", paymentIntentID),
	)
	return nil
}

// CreateRefund simulates refunding a PaymentIntent.
func (m *MockStripeAdapter) CreateRefund(ctx context.Context, params RefundParams) (string, error) {
	refundID := fmt.Sprintf("re_mock_%s", uuid.New().String()[:8])

	m.logger.Info("[MOCK STRIPE] Refund created",
		zap.String("refund_id", refundID),
		zap.String("payment_intent_id", params.PaymentIntentID),
		zap.Int64("amount_cents", params.AmountCents),
		zap.String("reason", params.Reason),
	)

	return refundID, nil
}
