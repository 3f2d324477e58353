package refund

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
)

// Allocation assigns a slice of a requested refund to one payment.
type Allocation struct {
	Payment         *RefundablePayment
	PaymentIntentID string
	AmountCents     int64
}

// Plan is the full allocation of one refund request across a booking's
// payments. The allocations drain the most recent payment first.
type Plan struct {
	Allocations    []Allocation
	TotalCents     int64
	AvailableCents int64
}

// Allocator splits a requested refund amount across a booking's refundable
// payments.
type Allocator struct {
	scanner *Scanner
}

// NewAllocator creates an Allocator over the given ledger scanner.
func NewAllocator(scanner *Scanner) *Allocator {
	return &Allocator{scanner: scanner}
}

// Allocate greedily walks the refundable payments most-recent-first,
// taking min(still needed, payment remaining) from each until the request is
// covered. Payments without a gateway intent ID cannot be refunded through
// the gateway and are skipped; if skipping them leaves part of the request
// uncovered, the whole allocation fails rather than silently under-refunding.
func (a *Allocator) Allocate(ctx context.Context, bookingID uuid.UUID, kind booking.Kind, refundAmountCents int64) (*Plan, error) {
	if refundAmountCents <= 0 {
		return nil, domain.NewValidationError("refund amount must be positive")
	}

	ledger, err := a.scanner.Scan(ctx, bookingID, kind)
	if err != nil {
		return nil, err
	}

	if refundAmountCents > ledger.AvailableCents {
		return nil, domain.NewInsufficientFundsError(fmt.Sprintf(
			"requested refund of %d cents exceeds the %d cents available for booking %s",
			refundAmountCents, ledger.AvailableCents, bookingID))
	}

	plan := &Plan{AvailableCents: ledger.AvailableCents}
	remaining := refundAmountCents

	for i := range ledger.RefundablePayments {
		if remaining <= 0 {
			break
		}

		rp := &ledger.RefundablePayments[i]
		intentID := rp.Payment.StripePaymentIntentID()
		if intentID == "" {
			// Manually collected payment, nothing to refund at the gateway.
			continue
		}

		take := rp.RemainingCents
		if take > remaining {
			take = remaining
		}

		plan.Allocations = append(plan.Allocations, Allocation{
			Payment:         rp,
			PaymentIntentID: intentID,
			AmountCents:     take,
		})
		plan.TotalCents += take
		remaining -= take
	}

	if remaining > 0 {
		return nil, domain.NewInsufficientFundsError(fmt.Sprintf(
			"unable to process the full refund for booking %s: %d cents have no gateway payment to refund against",
			bookingID, remaining))
	}

	return plan, nil
}
