package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
	"github.com/harborline-tours/service-payments/internal/domain/catalog"
	"github.com/harborline-tours/service-payments/internal/domain/payment"
	"github.com/harborline-tours/service-payments/internal/events"
	"github.com/harborline-tours/service-payments/internal/pricing"
	"github.com/harborline-tours/service-payments/internal/refund"
	"github.com/harborline-tours/service-payments/internal/saga"
)

// CreateBookingRequest is the DTO for creating a booking.
type CreateBookingRequest struct {
	Kind       string     `json:"kind" binding:"required"`
	ProductID  uuid.UUID  `json:"product_id" binding:"required"`
	ScheduleID uuid.UUID  `json:"schedule_id" binding:"required"`
	PickupID   *uuid.UUID `json:"pickup_id"`
	Adults     int        `json:"adults" binding:"required,min=1"`
	Children   int        `json:"children" binding:"min=0"`
}

// EditBookingRequest is the DTO for editing a booking's selection.
type EditBookingRequest struct {
	ScheduleID    uuid.UUID  `json:"schedule_id" binding:"required"`
	PickupID      *uuid.UUID `json:"pickup_id"`
	Adults        int        `json:"adults" binding:"required,min=1"`
	Children      int        `json:"children" binding:"min=0"`
	CustomerEmail string     `json:"customer_email"`
	CustomerName  string     `json:"customer_name"`
}

// CancelBookingRequest is the DTO for cancelling a booking.
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// BookingDTO is the API response DTO for booking data.
type BookingDTO struct {
	ID                   uuid.UUID  `json:"id"`
	Reference            string     `json:"reference"`
	Kind                 string     `json:"kind"`
	Status               string     `json:"status"`
	CustomerID           uuid.UUID  `json:"customer_id"`
	ProductID            uuid.UUID  `json:"product_id"`
	ScheduleID           uuid.UUID  `json:"schedule_id"`
	PickupID             *uuid.UUID `json:"pickup_id,omitempty"`
	Departs              time.Time  `json:"departs"`
	Adults               int        `json:"adults"`
	Children             int        `json:"children"`
	AdultPriceCents      int64      `json:"adult_price_cents"`
	ChildPriceCents      int64      `json:"child_price_cents"`
	PickupSurchargeCents int64      `json:"pickup_surcharge_cents"`
	TotalCents           int64      `json:"total_cents"`
	Currency             string     `json:"currency"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// RefundSummaryDTO describes the refunds issued by a cancel or downgrade.
type RefundSummaryDTO struct {
	RefundIDs   []string `json:"refund_ids"`
	AmountCents int64    `json:"amount_cents"`
	Percentage  float64  `json:"percentage"`
	Message     string   `json:"message"`
}

// CancelResultDTO is the outcome of a booking cancellation.
type CancelResultDTO struct {
	Booking BookingDTO        `json:"booking"`
	Refund  *RefundSummaryDTO `json:"refund,omitempty"`
}

// EditResultDTO is the outcome of a booking edit. ClientSecret is set for
// upcharges so the storefront can confirm the additional charge; Refund is set
// for downgrades.
type EditResultDTO struct {
	Booking         BookingDTO        `json:"booking"`
	ChangeType      string            `json:"change_type"`
	OriginalCents   int64             `json:"original_cents"`
	NewCents        int64             `json:"new_cents"`
	DifferenceCents int64             `json:"difference_cents"`
	ClientSecret    string            `json:"client_secret,omitempty"`
	Refund          *RefundSummaryDTO `json:"refund,omitempty"`
}

// BookingService orchestrates booking use cases, including the refund pipeline
// behind cancellation and the reconciliation pipeline behind edits.
type BookingService struct {
	bookings   booking.Repository
	catalog    catalog.Repository
	scanner    *refund.Scanner
	allocator  *refund.Allocator
	executor   *refund.Executor
	reconciler *pricing.Reconciler
	sagaSvc    *saga.PaymentIntentSagaService
	producer   events.Publisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookings booking.Repository,
	catalogRepo catalog.Repository,
	scanner *refund.Scanner,
	allocator *refund.Allocator,
	executor *refund.Executor,
	reconciler *pricing.Reconciler,
	sagaSvc *saga.PaymentIntentSagaService,
	producer events.Publisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:   bookings,
		catalog:    catalogRepo,
		scanner:    scanner,
		allocator:  allocator,
		executor:   executor,
		reconciler: reconciler,
		sagaSvc:    sagaSvc,
		producer:   producer,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// CreateBooking quotes the selection at current catalog prices and persists a
// pending booking with that pricing snapshot.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	kind, err := booking.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Kind() != kind {
		return nil, domain.NewValidationError("product kind does not match the requested booking kind")
	}

	quote, departs, err := product.Quote(req.ScheduleID, req.PickupID, req.Adults, req.Children)
	if err != nil {
		return nil, err
	}

	b, err := booking.NewBooking(kind, customerID, req.ProductID, req.ScheduleID, req.PickupID, departs, req.Adults, req.Children, quote)
	if err != nil {
		return nil, err
	}
	if err := s.bookings.Save(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID().String()),
		zap.String("reference", b.Reference()),
		zap.Int64("total_cents", b.Pricing().TotalCents),
	)

	dto := toBookingDTO(b)
	return &dto, nil
}

// GetBooking retrieves a booking by its ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	dto := toBookingDTO(b)
	return &dto, nil
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.bookings.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, b := range bookings {
		dtos[i] = toBookingDTO(b)
	}
	return dtos, total, nil
}

// CancelBooking cancels a booking and refunds what the time-based policy
// allows across every completed payment on the booking, most recent first.
// Refunds move at the gateway before the booking row flips to cancelled, so a
// crash in between leaves refunds issued against an active booking; support
// resolves those from the gateway dashboard.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, reason string) (*CancelResultDTO, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status() != booking.StatusPending && b.Status() != booking.StatusConfirmed {
		return nil, domain.NewInvalidStateError(string(b.Status()), string(booking.StatusCancelled))
	}

	ledger, err := s.scanner.Scan(ctx, b.ID(), b.Kind())
	if err != nil {
		if de, ok := domain.AsDomainError(err); ok && de.Err == domain.ErrNotFound && b.Status() == booking.StatusPending {
			// Nothing was ever collected, cancel without a refund.
			return s.finishCancel(ctx, b, nil)
		}
		return nil, err
	}

	refundable := refund.CalculateRefundable(ledger.AvailableCents, b.Departs(), s.now())
	if refundable.AmountCents <= 0 {
		return nil, domain.NewPolicyIneligibleError(
			"this booking is not eligible for a refund under the cancellation policy; the departure may have already passed")
	}

	plan, err := s.allocator.Allocate(ctx, b.ID(), b.Kind(), refundable.AmountCents)
	if err != nil {
		return nil, err
	}

	result, err := s.executor.ProcessMultiPaymentRefund(ctx, refund.MultiRequest{
		Plan:        plan,
		BookingID:   b.ID(),
		BookingKind: b.Kind(),
		Reason:      reason,
		Percentage:  refundable.Percentage,
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

	return s.finishCancel(ctx, b, &RefundSummaryDTO{
		RefundIDs:   result.RefundIDs,
		AmountCents: result.AmountCents,
		Percentage:  result.Percentage,
		Message:     result.Message,
	})
}

func (s *BookingService) finishCancel(ctx context.Context, b *booking.Booking, summary *RefundSummaryDTO) (*CancelResultDTO, error) {
	if err := b.Cancel(); err != nil {
		return nil, err
	}
	b.IncrementVersion()
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", b.ID().String()),
		zap.Bool("refunded", summary != nil),
	)

	return &CancelResultDTO{
		Booking: toBookingDTO(b),
		Refund:  summary,
	}, nil
}

// EditBooking reprices an edited selection at current catalog prices. An
// upcharge creates a new payment intent for the difference; a downgrade
// refunds the exact difference, bypassing the time-based policy; no change
// updates the booking fields only. The money moves first, then the booking
// row.
func (s *BookingService) EditBooking(ctx context.Context, bookingID uuid.UUID, req EditBookingRequest) (*EditResultDTO, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	delta, err := s.reconciler.CalculatePriceDifference(ctx, b, pricing.Edit{
		ScheduleID: req.ScheduleID,
		PickupID:   req.PickupID,
		Adults:     req.Adults,
		Children:   req.Children,
	})
	if err != nil {
		return nil, err
	}

	result := &EditResultDTO{
		ChangeType:      string(delta.Kind),
		OriginalCents:   delta.OriginalCents,
		NewCents:        delta.NewCents,
		DifferenceCents: delta.DifferenceCents,
	}

	switch delta.Kind {
	case pricing.Upcharge:
		p, err := payment.NewPayment(b.ID(), b.Kind(), payment.PurposeUpcharge, delta.DifferenceCents, delta.NewPricing.Currency)
		if err != nil {
			return nil, err
		}
		clientSecret, err := s.sagaSvc.CreateIntentSaga(ctx, p, req.CustomerEmail, req.CustomerName)
		if err != nil {
			return nil, err
		}
		result.ClientSecret = clientSecret

	case pricing.Downgrade:
		refundCents := -delta.DifferenceCents
		plan, err := s.allocator.Allocate(ctx, b.ID(), b.Kind(), refundCents)
		if err != nil {
			return nil, err
		}
		refundResult, err := s.executor.ProcessMultiPaymentRefund(ctx, refund.MultiRequest{
			Plan:        plan,
			BookingID:   b.ID(),
			BookingKind: b.Kind(),
			Reason:      "booking edit downgrade",
			Percentage:  1.0,
			IsDowngrade: true,
		})
		if err != nil {
			return nil, err
		}
		result.Refund = &RefundSummaryDTO{
			RefundIDs:   refundResult.RefundIDs,
			AmountCents: refundResult.AmountCents,
			Percentage:  refundResult.Percentage,
			Message:     refundResult.Message,
		}

		s.publishEvent(ctx, events.RefundIssued, events.RefundIssuedEvent{
			BookingID:   b.ID(),
			BookingKind: string(b.Kind()),
			RefundIDs:   refundResult.RefundIDs,
			AmountCents: refundResult.AmountCents,
			Percentage:  refundResult.Percentage,
			RefundType:  "downgrade",
			Reason:      "booking edit downgrade",
			OccurredAt:  time.Now().UTC(),
		})
	}

	if err := b.Reprice(req.ScheduleID, req.PickupID, delta.NewDeparts, req.Adults, req.Children, delta.NewPricing); err != nil {
		return nil, err
	}
	b.IncrementVersion()
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	if delta.Kind != pricing.NoChange {
		s.publishEvent(ctx, events.BookingRepriced, events.BookingRepricedEvent{
			BookingID:       b.ID(),
			OriginalCents:   delta.OriginalCents,
			NewCents:        delta.NewCents,
			DifferenceCents: delta.DifferenceCents,
			ChangeType:      string(delta.Kind),
			OccurredAt:      time.Now().UTC(),
		})
	}

	s.logger.Info("booking edited",
		zap.String("booking_id", b.ID().String()),
		zap.String("change_type", string(delta.Kind)),
		zap.Int64("difference_cents", delta.DifferenceCents),
	)

	result.Booking = toBookingDTO(b)
	return result, nil
}

// publishEvent wraps the payload in a CloudEvent and publishes it. Publish
// failures are logged, never surfaced to the caller.
func (s *BookingService) publishEvent(ctx context.Context, eventType string, data interface{}) {
	publishCloudEvent(ctx, s.producer, s.logger, eventType, data)
}

// toBookingDTO maps a domain Booking to a BookingDTO.
func toBookingDTO(b *booking.Booking) BookingDTO {
	p := b.Pricing()
	return BookingDTO{
		ID:                   b.ID(),
		Reference:            b.Reference(),
		Kind:                 string(b.Kind()),
		Status:               string(b.Status()),
		CustomerID:           b.CustomerID(),
		ProductID:            b.ProductID(),
		ScheduleID:           b.ScheduleID(),
		PickupID:             b.PickupID(),
		Departs:              b.Departs(),
		Adults:               b.Adults(),
		Children:             b.Children(),
		AdultPriceCents:      p.AdultPriceCents,
		ChildPriceCents:      p.ChildPriceCents,
		PickupSurchargeCents: p.PickupSurchargeCents,
		TotalCents:           p.TotalCents,
		Currency:             p.Currency,
		CreatedAt:            b.CreatedAt(),
		UpdatedAt:            b.UpdatedAt(),
	}
}
