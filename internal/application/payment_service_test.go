package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/payment"
	"github.com/harborline-tours/service-payments/internal/events"
)

func TestInitiateAndConfirmPayment(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	created, err := stack.bookingSvc.CreateBooking(ctx, uuid.New(), CreateBookingRequest{
		Kind:       "tour",
		ProductID:  stack.product.ID(),
		ScheduleID: stack.schedule.ID,
		Adults:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, int64(20000), created.TotalCents)

	intent, err := stack.paymentSvc.InitiatePayment(ctx, InitiatePaymentRequest{
		BookingID:     created.ID,
		CustomerEmail: "sam@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, intent.ClientSecret)
	assert.Equal(t, int64(20000), intent.AmountCents)

	p, err := stack.payments.FindByID(ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, p.Status())
	assert.NotEmpty(t, p.StripePaymentIntentID())

	confirmed, err := stack.paymentSvc.ConfirmPayment(ctx, p.StripePaymentIntentID())
	require.NoError(t, err)
	assert.Equal(t, string(payment.StatusCompleted), confirmed.Status)

	// The original charge confirms the booking.
	b, err := stack.bookingSvc.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", b.Status)

	recorded := stack.publisher.byType(events.PaymentRecorded)
	require.Len(t, recorded, 1)
	var evt events.PaymentRecordedEvent
	require.NoError(t, recorded[0].ParseData(&evt))
	assert.Equal(t, created.ID, evt.BookingID)
	assert.Equal(t, int64(20000), evt.AmountCents)
	assert.Equal(t, "booking", evt.Purpose)
}

func TestInitiatePayment_RejectsNonPendingBooking(t *testing.T) {
	stack := newTestStack(t)
	b := stack.confirmedBooking(t)

	_, err := stack.paymentSvc.InitiatePayment(context.Background(), InitiatePaymentRequest{
		BookingID:     b.ID,
		CustomerEmail: "sam@example.com",
	})
	require.Error(t, err)

	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	assert.ErrorIs(t, de.Err, domain.ErrInvalidState)
}

func TestConfirmPayment_UnknownIntentExhaustsRetries(t *testing.T) {
	stack := newTestStack(t)

	_, err := stack.paymentSvc.ConfirmPayment(context.Background(), "pi_never_created")
	require.Error(t, err)

	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	assert.ErrorIs(t, de.Err, domain.ErrNotFound)
}

func TestGetBookingLedger(t *testing.T) {
	stack := newTestStack(t)
	b := stack.confirmedBooking(t)

	ledger, err := stack.paymentSvc.GetBookingLedger(context.Background(), b.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(20000), ledger.TotalPaidCents)
	assert.Equal(t, int64(0), ledger.TotalRefundedCents)
	assert.Equal(t, int64(20000), ledger.AvailableCents)
	require.Len(t, ledger.Payments, 1)
	assert.Equal(t, "completed", ledger.Payments[0].Status)
}

func TestHandleGatewayRefundSucceeded_SettlesPendingRefund(t *testing.T) {
	stack := newTestStack(t)
	b := stack.confirmedBooking(t)
	ctx := context.Background()

	cancelRes, err := stack.bookingSvc.CancelBooking(ctx, b.ID, "change of plans")
	require.NoError(t, err)
	require.NotNil(t, cancelRes.Refund)
	require.Len(t, cancelRes.Refund.RefundIDs, 1)

	p := stack.payments.payments[0]
	require.Equal(t, payment.RefundPending, p.RefundStatus())

	err = stack.paymentSvc.HandleGatewayRefundSucceeded(ctx, events.GatewayRefundSucceededEvent{
		RefundID:        cancelRes.Refund.RefundIDs[0],
		PaymentIntentID: p.StripePaymentIntentID(),
		AmountCents:     cancelRes.Refund.AmountCents,
		ReceiptURL:      "https://receipts.test/re_1",
		OccurredAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, payment.Refunded, p.RefundStatus())
	assert.Equal(t, "https://receipts.test/re_1", p.RefundReceiptURL())

	settled := stack.publisher.byType(events.RefundSettled)
	require.Len(t, settled, 1)
	var evt events.RefundSettledEvent
	require.NoError(t, settled[0].ParseData(&evt))
	assert.Equal(t, "refunded", evt.Outcome)
}

func TestHandleGatewayRefundFailed_MarksRefundFailed(t *testing.T) {
	stack := newTestStack(t)
	b := stack.confirmedBooking(t)
	ctx := context.Background()

	cancelRes, err := stack.bookingSvc.CancelBooking(ctx, b.ID, "change of plans")
	require.NoError(t, err)

	p := stack.payments.payments[0]
	refunded := p.RefundedAmountCents()

	err = stack.paymentSvc.HandleGatewayRefundFailed(ctx, events.GatewayRefundFailedEvent{
		RefundID:        cancelRes.Refund.RefundIDs[0],
		PaymentIntentID: p.StripePaymentIntentID(),
		FailureReason:   "charge disputed",
		OccurredAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, payment.RefundFailed, p.RefundStatus())
	// The running total stays monotonic even on failure.
	assert.Equal(t, refunded, p.RefundedAmountCents())
}

func TestHandleGatewayRefundSucceeded_SkipsMismatchedRefundID(t *testing.T) {
	stack := newTestStack(t)
	b := stack.confirmedBooking(t)
	ctx := context.Background()

	_, err := stack.bookingSvc.CancelBooking(ctx, b.ID, "change of plans")
	require.NoError(t, err)

	p := stack.payments.payments[0]
	err = stack.paymentSvc.HandleGatewayRefundSucceeded(ctx, events.GatewayRefundSucceededEvent{
		RefundID:        "re_someone_elses",
		PaymentIntentID: p.StripePaymentIntentID(),
	})
	require.NoError(t, err)

	// Stale confirmation left the pending refund untouched.
	assert.Equal(t, payment.RefundPending, p.RefundStatus())
}

func TestHandleGatewayRefundSucceeded_SkipsUnknownIntent(t *testing.T) {
	stack := newTestStack(t)

	err := stack.paymentSvc.HandleGatewayRefundSucceeded(context.Background(), events.GatewayRefundSucceededEvent{
		RefundID:        "re_unknown",
		PaymentIntentID: "pi_unknown",
	})
	require.NoError(t, err)
}

func TestRefundPayment_AdminSinglePayment(t *testing.T) {
	stack := newTestStack(t)
	stack.confirmedBooking(t)
	ctx := context.Background()

	p := stack.payments.payments[0]
	summary, err := stack.paymentSvc.RefundPayment(ctx, p.ID(), "goodwill refund")
	require.NoError(t, err)

	// Departure is 72h out, so the policy grants everything.
	assert.Equal(t, int64(20000), summary.AmountCents)
	assert.Equal(t, 1.0, summary.Percentage)
	assert.Equal(t, payment.RefundPending, p.RefundStatus())

	issued := stack.publisher.byType(events.RefundIssued)
	require.Len(t, issued, 1)
}

func TestGetRefundStats(t *testing.T) {
	stack := newTestStack(t)
	b := stack.confirmedBooking(t)
	ctx := context.Background()

	_, err := stack.bookingSvc.CancelBooking(ctx, b.ID, "stats test")
	require.NoError(t, err)

	stats, err := stack.paymentSvc.GetRefundStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(20000), stats.TotalCollectedCents)
	assert.Equal(t, int64(20000), stats.TotalRefundedCents)
	assert.Equal(t, int64(1), stats.ByRefundStatus[string(payment.RefundPending)])
}
