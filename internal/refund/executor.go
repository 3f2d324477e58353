package refund

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborline-tours/service-payments/internal/adapter"
	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
	"github.com/harborline-tours/service-payments/internal/domain/payment"
	"github.com/harborline-tours/service-payments/internal/metrics"
)

// Request drives the single-payment refund path.
type Request struct {
	PaymentID   uuid.UUID
	BookingID   uuid.UUID
	BookingKind booking.Kind
	// AmountCents is the amount the cancellation policy applies to, normally
	// the payment's remaining refundable balance.
	AmountCents int64
	Departure   time.Time
	Reason      string
	// IsDowngrade refunds the exact price difference from a booking edit,
	// bypassing the time-based policy.
	IsDowngrade              bool
	DowngradeDifferenceCents int64
}

// MultiRequest drives the multi-payment refund path over an allocation plan.
type MultiRequest struct {
	Plan        *Plan
	BookingID   uuid.UUID
	BookingKind booking.Kind
	Reason      string
	Percentage  float64
	IsDowngrade bool
}

// Result reports what the executor issued.
type Result struct {
	RefundIDs   []string
	AmountCents int64
	Percentage  float64
	Message     string
}

// Executor issues refunds against the payment gateway and persists the
// updated refund state per payment record. Refunds are marked pending here;
// the gateway event consumer settles them once Stripe confirms.
type Executor struct {
	payments payment.Repository
	stripe   adapter.StripeAdapter
	logger   *zap.Logger
	now      func() time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(payments payment.Repository, stripe adapter.StripeAdapter, logger *zap.Logger) *Executor {
	return &Executor{
		payments: payments,
		stripe:   stripe,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the executor's clock. Test hook.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// ProcessRefund refunds a single payment, applying the cancellation policy
// unless the request is a downgrade.
func (e *Executor) ProcessRefund(ctx context.Context, req Request) (*Result, error) {
	p, err := e.payments.FindByID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}

	var refundCents int64
	percentage := 1.0
	refundType := "cancellation"

	if req.IsDowngrade {
		refundCents = req.DowngradeDifferenceCents
		if refundCents < 0 {
			refundCents = -refundCents
		}
		refundType = "downgrade"
	} else {
		r := CalculateRefundable(req.AmountCents, req.Departure, e.now())
		refundCents = r.AmountCents
		percentage = r.Percentage
	}

	if refundCents <= 0 {
		return nil, domain.NewPolicyIneligibleError(
			"this booking is not eligible for a refund under the cancellation policy; the departure may have already passed")
	}

	refundID, err := e.issueRefund(ctx, p, refundCents, percentage, req.Reason, refundType)
	if err != nil {
		return nil, err
	}

	return &Result{
		RefundIDs:   []string{refundID},
		AmountCents: refundCents,
		Percentage:  percentage,
		Message:     fmt.Sprintf("refund of %d cents issued, awaiting gateway confirmation", refundCents),
	}, nil
}

// ProcessMultiPaymentRefund walks an allocation plan and issues one gateway
// refund per allocated payment. A payment record that went missing between
// allocation and execution is logged and skipped so the rest of the plan
// still progresses. A gateway failure aborts the remaining iterations and
// propagates; refunds already issued stand, there is no rollback.
func (e *Executor) ProcessMultiPaymentRefund(ctx context.Context, req MultiRequest) (*Result, error) {
	refundType := "cancellation"
	if req.IsDowngrade {
		refundType = "downgrade"
	}

	result := &Result{Percentage: req.Percentage}
	for _, alloc := range req.Plan.Allocations {
		if alloc.AmountCents <= 0 {
			continue
		}

		// Re-fetch so we refund against current state, not the scan snapshot.
		p, err := e.payments.FindByID(ctx, alloc.Payment.Payment.ID())
		if err != nil {
			if de, ok := domain.AsDomainError(err); ok && de.Err == domain.ErrNotFound {
				e.logger.Warn("payment disappeared between allocation and refund, skipping",
					zap.String("payment_id", alloc.Payment.Payment.ID().String()),
					zap.String("booking_id", req.BookingID.String()),
				)
				continue
			}
			return nil, err
		}

		refundID, err := e.issueRefund(ctx, p, alloc.AmountCents, req.Percentage, req.Reason, refundType)
		if err != nil {
			return nil, err
		}

		result.RefundIDs = append(result.RefundIDs, refundID)
		result.AmountCents += alloc.AmountCents
	}

	result.Message = fmt.Sprintf("%d refund(s) totalling %d cents issued, awaiting gateway confirmation",
		len(result.RefundIDs), result.AmountCents)
	return result, nil
}

// issueRefund calls the gateway for one payment and persists the pending
// refund state on its record. Eligibility is checked before the gateway call;
// an ineligible payment must never move money at Stripe.
func (e *Executor) issueRefund(ctx context.Context, p *payment.Payment, amountCents int64, percentage float64, reason, refundType string) (string, error) {
	if err := p.CanBeginRefund(amountCents); err != nil {
		return "", err
	}
	refundedBefore := p.RefundedAmountCents()

	refundID, err := e.stripe.CreateRefund(ctx, adapter.RefundParams{
		PaymentIntentID: p.StripePaymentIntentID(),
		AmountCents:     amountCents,
		Reason:          reason,
		Metadata: map[string]string{
			"booking_id":            p.BookingID().String(),
			"payment_id":            p.ID().String(),
			"refund_type":           refundType,
			"percentage":            strconv.FormatFloat(percentage, 'f', 2, 64),
			"refunded_before_cents": strconv.FormatInt(refundedBefore, 10),
			"refunded_after_cents":  strconv.FormatInt(refundedBefore+amountCents, 10),
		},
	})
	if err != nil {
		return "", domain.NewGatewayError("failed to create gateway refund", err)
	}

	note := fmt.Sprintf("%s refund of %d cents issued (gateway refund %s): %s",
		refundType, amountCents, refundID, reason)
	if err := p.BeginRefund(amountCents, refundID, note); err != nil {
		return "", err
	}
	p.IncrementVersion()

	if err := e.payments.Update(ctx, p); err != nil {
		return "", err
	}

	metrics.IncRefundIssued(refundType)
	e.logger.Info("refund issued",
		zap.String("payment_id", p.ID().String()),
		zap.String("booking_id", p.BookingID().String()),
		zap.String("refund_id", refundID),
		zap.Int64("amount_cents", amountCents),
		zap.String("refund_type", refundType),
	)
	return refundID, nil
}
