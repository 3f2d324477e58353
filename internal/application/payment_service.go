package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
	"github.com/harborline-tours/service-payments/internal/domain/payment"
	"github.com/harborline-tours/service-payments/internal/events"
	"github.com/harborline-tours/service-payments/internal/kafka"
	"github.com/harborline-tours/service-payments/internal/metrics"
	"github.com/harborline-tours/service-payments/internal/refund"
	"github.com/harborline-tours/service-payments/internal/retry"
	"github.com/harborline-tours/service-payments/internal/saga"
)

const eventSource = "service-payments"

// InitiatePaymentRequest is the DTO for starting the charge on a pending booking.
type InitiatePaymentRequest struct {
	BookingID     uuid.UUID `json:"booking_id" binding:"required"`
	CustomerEmail string    `json:"customer_email" binding:"required,email"`
	CustomerName  string    `json:"customer_name"`
}

// ConfirmPaymentRequest is the DTO for reporting a confirmed payment intent.
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// PaymentDTO is the API response DTO for payment data.
type PaymentDTO struct {
	ID                    uuid.UUID `json:"id"`
	BookingID             uuid.UUID `json:"booking_id"`
	BookingKind           string    `json:"booking_kind"`
	Purpose               string    `json:"purpose"`
	AmountCents           int64     `json:"amount_cents"`
	Currency              string    `json:"currency"`
	Status                string    `json:"status"`
	RefundStatus          string    `json:"refund_status"`
	RefundedAmountCents   int64     `json:"refunded_amount_cents"`
	StripePaymentIntentID string    `json:"stripe_payment_intent_id,omitempty"`
	StripeRefundID        string    `json:"stripe_refund_id,omitempty"`
	RefundReceiptURL      string    `json:"refund_receipt_url,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// PaymentIntentDTO is returned from payment initiation.
type PaymentIntentDTO struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	ClientSecret string    `json:"client_secret"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
}

// LedgerDTO is the refundable view across a booking's completed payments.
type LedgerDTO struct {
	TotalPaidCents     int64        `json:"total_paid_cents"`
	TotalRefundedCents int64        `json:"total_refunded_cents"`
	AvailableCents     int64        `json:"available_for_refund_cents"`
	Payments           []PaymentDTO `json:"payments"`
}

// RefundStatsDTO holds refund statistics for the admin dashboard.
type RefundStatsDTO struct {
	TotalCollectedCents int64            `json:"total_collected_cents"`
	TotalRefundedCents  int64            `json:"total_refunded_cents"`
	ByRefundStatus      map[string]int64 `json:"by_refund_status"`
}

// PaymentService orchestrates payment use cases.
type PaymentService struct {
	bookings    booking.Repository
	payments    payment.Repository
	scanner     *refund.Scanner
	executor    *refund.Executor
	sagaSvc     *saga.PaymentIntentSagaService
	producer    events.Publisher
	retryPolicy retry.Policy
	logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	bookings booking.Repository,
	payments payment.Repository,
	scanner *refund.Scanner,
	executor *refund.Executor,
	sagaSvc *saga.PaymentIntentSagaService,
	producer events.Publisher,
	retryPolicy retry.Policy,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		bookings:    bookings,
		payments:    payments,
		scanner:     scanner,
		executor:    executor,
		sagaSvc:     sagaSvc,
		producer:    producer,
		retryPolicy: retryPolicy,
		logger:      logger,
	}
}

// InitiatePayment creates the gateway intent for a pending booking's charge.
func (s *PaymentService) InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*PaymentIntentDTO, error) {
	b, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status() != booking.StatusPending {
		return nil, domain.NewInvalidStateError(string(b.Status()), "charged")
	}

	p, err := payment.NewPayment(b.ID(), b.Kind(), payment.PurposeBooking, b.Pricing().TotalCents, b.Pricing().Currency)
	if err != nil {
		return nil, err
	}

	clientSecret, err := s.sagaSvc.CreateIntentSaga(ctx, p, req.CustomerEmail, req.CustomerName)
	if err != nil {
		s.logger.Error("failed to initiate payment",
			zap.String("booking_id", b.ID().String()),
			zap.Error(err),
		)
		return nil, err
	}

	return &PaymentIntentDTO{
		PaymentID:    p.ID(),
		ClientSecret: clientSecret,
		AmountCents:  p.AmountCents(),
		Currency:     p.Currency(),
	}, nil
}

// ConfirmPayment marks a payment completed once the storefront reports the
// intent confirmed, and confirms the booking for original charges. Locating
// the payment record retries with backoff to tolerate commit-visibility lag
// between intent creation and confirmation.
func (s *PaymentService) ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentDTO, error) {
	var p *payment.Payment
	err := retry.Do(ctx, s.retryPolicy, s.logger, "locate payment for intent", func(ctx context.Context) error {
		var findErr error
		p, findErr = s.payments.FindByIntentID(ctx, paymentIntentID)
		return findErr
	})
	if err != nil {
		return nil, err
	}

	if err := p.MarkCompleted(); err != nil {
		return nil, err
	}
	p.IncrementVersion()
	if err := s.payments.Update(ctx, p); err != nil {
		return nil, err
	}

	// The original charge confirms the booking; upcharges land on bookings
	// that are already confirmed.
	if p.Purpose() == payment.PurposeBooking {
		b, err := s.bookings.FindByID(ctx, p.BookingID())
		if err != nil {
			return nil, err
		}
		if b.Status() == booking.StatusPending {
			if err := b.Confirm(); err != nil {
				return nil, err
			}
			b.IncrementVersion()
			if err := s.bookings.Update(ctx, b); err != nil {
				return nil, err
			}
		}
	}

	s.publishEvent(ctx, events.PaymentRecorded, events.PaymentRecordedEvent{
		PaymentID:   p.ID(),
		BookingID:   p.BookingID(),
		BookingKind: string(p.BookingKind()),
		Purpose:     string(p.Purpose()),
		AmountCents: p.AmountCents(),
		Currency:    p.Currency(),
		OccurredAt:  time.Now().UTC(),
	})

	dto := toPaymentDTO(p)
	return &dto, nil
}

// GetPayment retrieves a payment by its ID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	dto := toPaymentDTO(p)
	return &dto, nil
}

// GetBookingLedger returns the refundable ledger view for a booking.
func (s *PaymentService) GetBookingLedger(ctx context.Context, bookingID uuid.UUID) (*LedgerDTO, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	ledger, err := s.scanner.Scan(ctx, b.ID(), b.Kind())
	if err != nil {
		return nil, err
	}

	dtos := make([]PaymentDTO, len(ledger.AllPayments))
	for i, p := range ledger.AllPayments {
		dtos[i] = toPaymentDTO(p)
	}
	return &LedgerDTO{
		TotalPaidCents:     ledger.TotalPaidCents,
		TotalRefundedCents: ledger.TotalRefundedCents,
		AvailableCents:     ledger.AvailableCents,
		Payments:           dtos,
	}, nil
}

// HandleGatewayRefundSucceeded settles a pending refund after the gateway
// confirmed it.
func (s *PaymentService) HandleGatewayRefundSucceeded(ctx context.Context, event events.GatewayRefundSucceededEvent) error {
	return s.settleRefund(ctx, event.PaymentIntentID, event.RefundID, true, event.ReceiptURL)
}

// HandleGatewayRefundFailed marks a pending refund failed after the gateway
// rejected it.
func (s *PaymentService) HandleGatewayRefundFailed(ctx context.Context, event events.GatewayRefundFailedEvent) error {
	s.logger.Warn("gateway refund failed",
		zap.String("refund_id", event.RefundID),
		zap.String("reason", event.FailureReason),
	)
	return s.settleRefund(ctx, event.PaymentIntentID, event.RefundID, false, "")
}

func (s *PaymentService) settleRefund(ctx context.Context, paymentIntentID, refundID string, succeeded bool, receiptURL string) error {
	p, err := s.payments.FindByIntentID(ctx, paymentIntentID)
	if err != nil {
		if de, ok := domain.AsDomainError(err); ok && de.Err == domain.ErrNotFound {
			s.logger.Warn("no payment found for gateway refund confirmation, skipping",
				zap.String("payment_intent_id", paymentIntentID),
				zap.String("refund_id", refundID),
			)
			return nil
		}
		return err
	}

	if p.StripeRefundID() != refundID {
		s.logger.Warn("gateway refund confirmation does not match the payment's pending refund, skipping",
			zap.String("payment_id", p.ID().String()),
			zap.String("expected_refund_id", p.StripeRefundID()),
			zap.String("got_refund_id", refundID),
		)
		return nil
	}

	if err := p.ResolveRefund(succeeded, receiptURL); err != nil {
		return err
	}
	p.IncrementVersion()
	if err := s.payments.Update(ctx, p); err != nil {
		return err
	}

	outcome := "refunded"
	if !succeeded {
		outcome = "failed"
	}
	metrics.IncRefundSettled(outcome)

	s.publishEvent(ctx, events.RefundSettled, events.RefundSettledEvent{
		PaymentID:  p.ID(),
		BookingID:  p.BookingID(),
		RefundID:   refundID,
		Outcome:    outcome,
		ReceiptURL: receiptURL,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// RefundPayment issues a refund against one payment's remaining refundable
// balance, governed by the time-based cancellation policy (admin).
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*RefundSummaryDTO, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.FindByID(ctx, p.BookingID())
	if err != nil {
		return nil, err
	}

	result, err := s.executor.ProcessRefund(ctx, refund.Request{
		PaymentID:   p.ID(),
		BookingID:   b.ID(),
		BookingKind: b.Kind(),
		AmountCents: p.RemainingRefundableCents(),
		Departure:   b.Departs(),
		Reason:      reason,
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.RefundIssued, events.RefundIssuedEvent{
		BookingID:   b.ID(),
		BookingKind: string(b.Kind()),
		RefundIDs:   result.RefundIDs,
		AmountCents: result.AmountCents,
		Percentage:  result.Percentage,
		RefundType:  "cancellation",
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	})

	return &RefundSummaryDTO{
		RefundIDs:   result.RefundIDs,
		AmountCents: result.AmountCents,
		Percentage:  result.Percentage,
		Message:     result.Message,
	}, nil
}

// --- Admin methods ---

// ListAllPayments returns a paginated list of all payments (admin).
func (s *PaymentService) ListAllPayments(ctx context.Context, page, limit int) ([]PaymentDTO, int64, error) {
	payments, total, err := s.payments.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, total, nil
}

// GetRefundStats returns aggregate refund statistics (admin).
func (s *PaymentService) GetRefundStats(ctx context.Context) (*RefundStatsDTO, error) {
	collected, refunded, counts, err := s.payments.GetRefundStats(ctx)
	if err != nil {
		return nil, err
	}
	return &RefundStatsDTO{
		TotalCollectedCents: collected,
		TotalRefundedCents:  refunded,
		ByRefundStatus:      counts,
	}, nil
}

// publishEvent wraps the payload in a CloudEvent and publishes it. Publish
// failures are logged, never surfaced to the caller.
func (s *PaymentService) publishEvent(ctx context.Context, eventType string, data interface{}) {
	publishCloudEvent(ctx, s.producer, s.logger, eventType, data)
}

// publishCloudEvent is the shared publish path for both services.
func publishCloudEvent(ctx context.Context, producer events.Publisher, logger *zap.Logger, eventType string, data interface{}) {
	ce, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		logger.Error("failed to create cloud event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := producer.PublishEvent(ctx, events.TopicPaymentEvents, ce); err != nil {
		logger.Error("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

// toPaymentDTO maps a domain Payment to a PaymentDTO.
func toPaymentDTO(p *payment.Payment) PaymentDTO {
	return PaymentDTO{
		ID:                    p.ID(),
		BookingID:             p.BookingID(),
		BookingKind:           string(p.BookingKind()),
		Purpose:               string(p.Purpose()),
		AmountCents:           p.AmountCents(),
		Currency:              p.Currency(),
		Status:                string(p.Status()),
		RefundStatus:          string(p.RefundStatus()),
		RefundedAmountCents:   p.RefundedAmountCents(),
		StripePaymentIntentID: p.StripePaymentIntentID(),
		StripeRefundID:        p.StripeRefundID(),
		RefundReceiptURL:      p.RefundReceiptURL(),
		CreatedAt:             p.CreatedAt(),
		UpdatedAt:             p.UpdatedAt(),
	}
}
