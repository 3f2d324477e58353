package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborline-tours/service-payments/internal/adapter"
	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
	"github.com/harborline-tours/service-payments/internal/domain/catalog"
	"github.com/harborline-tours/service-payments/internal/domain/payment"
	"github.com/harborline-tours/service-payments/internal/kafka"
	"github.com/harborline-tours/service-payments/internal/pricing"
	"github.com/harborline-tours/service-payments/internal/refund"
	"github.com/harborline-tours/service-payments/internal/retry"
	"github.com/harborline-tours/service-payments/internal/saga"
)

// --- In-memory fakes shared by the service tests ---

type fakeBookingRepo struct {
	bookings map[uuid.UUID]*booking.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*booking.Booking)}
}

func (r *fakeBookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	if b, ok := r.bookings[id]; ok {
		return b, nil
	}
	return nil, domain.NewNotFoundError("Booking", id.String())
}

func (r *fakeBookingRepo) ListAll(ctx context.Context, page, limit int) ([]*booking.Booking, int64, error) {
	out := make([]*booking.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		out = append(out, b)
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) Save(ctx context.Context, b *booking.Booking) error {
	r.bookings[b.ID()] = b
	return nil
}

func (r *fakeBookingRepo) Update(ctx context.Context, b *booking.Booking) error {
	if _, ok := r.bookings[b.ID()]; !ok {
		return domain.NewNotFoundError("Booking", b.ID().String())
	}
	r.bookings[b.ID()] = b
	return nil
}

type fakePaymentRepo struct {
	payments []*payment.Payment
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

type fakeCatalogRepo struct {
	products map[uuid.UUID]*catalog.Product
}

func (r *fakeCatalogRepo) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return nil, domain.NewNotFoundError("Product", id.String())
}

type publishedEvent struct {
	Topic string
	Event kafka.CloudEvent
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error {
	p.events = append(p.events, publishedEvent{Topic: topic, Event: event})
	return nil
}

func (p *fakePublisher) byType(eventType string) []kafka.CloudEvent {
	var out []kafka.CloudEvent
	for _, e := range p.events {
		if e.Event.Type == eventType {
			out = append(out, e.Event)
		}
	}
	return out
}

// --- Test stack wiring ---

type testStack struct {
	bookings  *fakeBookingRepo
	payments  *fakePaymentRepo
	catalog   *fakeCatalogRepo
	publisher *fakePublisher

	paymentSvc *PaymentService
	bookingSvc *BookingService

	product  *catalog.Product
	schedule catalog.Schedule
	cheaper  catalog.Schedule
	pickup   catalog.Pickup
	now      time.Time
}

// newTestStack wires the full service graph over in-memory fakes and the mock
// gateway, with a catalog holding one tour: a 10000/6000 cents departure, a
// cheaper 8000/5000 one, and a 1500 cents pickup surcharge.
func newTestStack(t *testing.T) *testStack {
	t.Helper()

	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	schedule := catalog.Schedule{
		ID:              uuid.New(),
		Departs:         now.Add(72 * time.Hour),
		AdultPriceCents: 10000,
		ChildPriceCents: 6000,
		Capacity:        20,
	}
	cheaper := catalog.Schedule{
		ID:              uuid.New(),
		Departs:         now.Add(96 * time.Hour),
		AdultPriceCents: 8000,
		ChildPriceCents: 5000,
		Capacity:        20,
	}
	pickup := catalog.Pickup{ID: uuid.New(), Name: "Harbor Gate", SurchargeCents: 1500}
	product := catalog.NewProduct(booking.KindTour, "Coastal Day Tour", "USD",
		[]catalog.Schedule{schedule, cheaper}, []catalog.Pickup{pickup})

	bookings := newFakeBookingRepo()
	payments := &fakePaymentRepo{}
	catalogRepo := &fakeCatalogRepo{products: map[uuid.UUID]*catalog.Product{product.ID(): product}}
	publisher := &fakePublisher{}
	logger := zap.NewNop()
	stripe := adapter.NewMockStripeAdapter(logger)

	scanner := refund.NewScanner(payments)
	allocator := refund.NewAllocator(scanner)
	executor := refund.NewExecutor(payments, stripe, logger).WithClock(func() time.Time { return now })
	reconciler := pricing.NewReconciler(catalogRepo)
	sagaSvc := saga.NewPaymentIntentSagaService(payments, stripe, logger)

	fastRetry := retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, BackoffFactor: 2}

	return &testStack{
		bookings:  bookings,
		payments:  payments,
		catalog:   catalogRepo,
		publisher: publisher,
		paymentSvc: NewPaymentService(
			bookings, payments, scanner, executor, sagaSvc, publisher, fastRetry, logger),
		bookingSvc: NewBookingService(
			bookings, catalogRepo, scanner, allocator, executor, reconciler, sagaSvc, publisher, logger,
		).WithClock(func() time.Time { return now }),
		product:  product,
		schedule: schedule,
		cheaper:  cheaper,
		pickup:   pickup,
		now:      now,
	}
}

// confirmedBooking creates a booking for two adults and pays it in full
// through the initiate/confirm flow.
func (s *testStack) confirmedBooking(t *testing.T) *BookingDTO {
	t.Helper()
	ctx := context.Background()

	dto, err := s.bookingSvc.CreateBooking(ctx, uuid.New(), CreateBookingRequest{
		Kind:       "tour",
		ProductID:  s.product.ID(),
		ScheduleID: s.schedule.ID,
		Adults:     2,
	})
	require.NoError(t, err)

	intent, err := s.paymentSvc.InitiatePayment(ctx, InitiatePaymentRequest{
		BookingID:     dto.ID,
		CustomerEmail: "sam@example.com",
		CustomerName:  "Sam Lee",
	})
	require.NoError(t, err)

	p, err := s.payments.FindByID(ctx, intent.PaymentID)
	require.NoError(t, err)

	_, err = s.paymentSvc.ConfirmPayment(ctx, p.StripePaymentIntentID())
	require.NoError(t, err)

	updated, err := s.bookingSvc.GetBooking(ctx, dto.ID)
	require.NoError(t, err)
	return updated
}
