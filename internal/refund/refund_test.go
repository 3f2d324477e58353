package refund

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harborline-tours/service-payments/internal/adapter"
	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
	"github.com/harborline-tours/service-payments/internal/domain/payment"
)

// fakePaymentRepo is an in-memory payment.Repository. Payments are stored in
// insertion order; FindCompletedByBooking returns them most recent first, like
// the created_at DESC query in the real repository.
type fakePaymentRepo struct {
	payments []*payment.Payment
	saveErr  error
}

func (r *fakePaymentRepo) add(payments ...*payment.Payment) {
	r.payments = append(r.payments, payments...)
}

func (r *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	for _, p := range r.payments {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("Payment", id.String())
}

func (r *fakePaymentRepo) FindByIntentID(ctx context.Context, paymentIntentID string) (*payment.Payment, error) {
	for _, p := range r.payments {
		if p.StripePaymentIntentID() == paymentIntentID {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("Payment", paymentIntentID)
}

func (r *fakePaymentRepo) FindCompletedByBooking(ctx context.Context, bookingID uuid.UUID, kind booking.Kind) ([]*payment.Payment, error) {
	var out []*payment.Payment
	for i := len(r.payments) - 1; i >= 0; i-- {
		p := r.payments[i]
		if p.BookingID() == bookingID && p.BookingKind() == kind && p.Status() == payment.StatusCompleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ListAll(ctx context.Context, page, limit int) ([]*payment.Payment, int64, error) {
	return r.payments, int64(len(r.payments)), nil
}

func (r *fakePaymentRepo) GetRefundStats(ctx context.Context) (int64, int64, map[string]int64, error) {
	var collected, refunded int64
	counts := make(map[string]int64)
	for _, p := range r.payments {
		if p.Status() == payment.StatusCompleted {
			collected += p.AmountCents()
		}
		refunded += p.RefundedAmountCents()
		counts[string(p.RefundStatus())]++
	}
	return collected, refunded, counts, nil
}

func (r *fakePaymentRepo) Save(ctx context.Context, p *payment.Payment) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.payments = append(r.payments, p)
	return nil
}

func (r *fakePaymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	for i, existing := range r.payments {
		if existing.ID() == p.ID() {
			r.payments[i] = p
			return nil
		}
	}
	return domain.NewNotFoundError("Payment", p.ID().String())
}

// fakeStripe records refunds and can be told to fail from the nth call on.
type fakeStripe struct {
	refunds    []adapter.RefundParams
	failAfter  int // fail calls once len(refunds) reaches this; 0 means never
	nextRefund int
}

func (s *fakeStripe) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	return "cus_test", nil
}

func (s *fakeStripe) CreatePaymentIntent(ctx context.Context, amountCents int64, currency, customerID string) (string, string, error) {
	return "pi_test", "pi_test_secret", nil
}

func (s *fakeStripe) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	return nil
}

func (s *fakeStripe) CreateRefund(ctx context.Context, params adapter.RefundParams) (string, error) {
	if s.failAfter > 0 && len(s.refunds) >= s.failAfter {
		return "", fmt.Errorf("stripe: refund declined")
	}
	s.refunds = append(s.refunds, params)
	s.nextRefund++
	return fmt.Sprintf("re_test_%d", s.nextRefund), nil
}

// completedPayment builds a completed payment with a gateway intent attached.
func completedPayment(t *testing.T, bookingID uuid.UUID, kind booking.Kind, purpose payment.Purpose, amountCents int64, intentID string) *payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(bookingID, kind, purpose, amountCents, "USD")
	require.NoError(t, err)
	if intentID != "" {
		require.NoError(t, p.AttachIntent(intentID))
	}
	require.NoError(t, p.MarkCompleted())
	return p
}

// settleRefund runs a refund through the pending state to settled so the
// payment is refundable again in follow-up scenarios.
func settleRefund(t *testing.T, p *payment.Payment, amountCents int64, refundID string) {
	t.Helper()
	require.NoError(t, p.BeginRefund(amountCents, refundID, "test refund"))
	require.NoError(t, p.ResolveRefund(true, "https://receipts.test/"+refundID))
}
