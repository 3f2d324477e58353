package refund

import (
	"context"

	"github.com/google/uuid"

	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
	"github.com/harborline-tours/service-payments/internal/domain/payment"
)

// RefundablePayment is one completed payment with refundable balance left.
// RemainingCents is the slice of the payment still open for refund.
type RefundablePayment struct {
	Payment        *payment.Payment
	RemainingCents int64
}

// Ledger is the aggregate refund view across all of a booking's completed
// payments. RefundablePayments preserves the most-recent-first order of the
// underlying query.
type Ledger struct {
	TotalPaidCents     int64
	TotalRefundedCents int64
	AvailableCents     int64
	RefundablePayments []RefundablePayment
	AllPayments        []*payment.Payment
}

// Scanner builds the refund ledger for a booking.
type Scanner struct {
	payments payment.Repository
}

// NewScanner creates a Scanner over the payment repository.
func NewScanner(payments payment.Repository) *Scanner {
	return &Scanner{payments: payments}
}

// Scan fetches the booking's completed payments and computes total paid,
// total already refunded, and the payments still open for refund. A payment
// with a refund already pending is excluded from the refundable list so a
// second refund cannot be stacked on it before the gateway settles the first.
func (s *Scanner) Scan(ctx context.Context, bookingID uuid.UUID, kind booking.Kind) (*Ledger, error) {
	all, err := s.payments.FindCompletedByBooking(ctx, bookingID, kind)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, domain.NewNotFoundError("completed payments for booking", bookingID.String())
	}

	ledger := &Ledger{AllPayments: all}
	for _, p := range all {
		ledger.TotalPaidCents += p.AmountCents()
		ledger.TotalRefundedCents += p.RefundedAmountCents()

		remaining := p.RemainingRefundableCents()
		if remaining > 0 && p.RefundStatus() != payment.RefundPending {
			ledger.RefundablePayments = append(ledger.RefundablePayments, RefundablePayment{
				Payment:        p,
				RemainingCents: remaining,
			})
		}
	}
	ledger.AvailableCents = ledger.TotalPaidCents - ledger.TotalRefundedCents

	return ledger, nil
}
