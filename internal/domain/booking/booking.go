package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harborline-tours/service-payments/internal/domain"
)

// Kind distinguishes tour bookings from event bookings.
type Kind string

const (
	KindTour  Kind = "tour"
	KindEvent Kind = "event"
)

// ParseKind validates a kind string from the API path.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindTour:
		return KindTour, nil
	case KindEvent:
		return KindEvent, nil
	default:
		return "", domain.NewValidationError("booking kind must be 'tour' or 'event'")
	}
}

// Status represents the booking lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Pricing is the snapshot of prices frozen onto a booking at creation or edit
// time. Amounts are in minor currency units.
type Pricing struct {
	AdultPriceCents      int64
	ChildPriceCents      int64
	AdultTotalCents      int64
	ChildTotalCents      int64
	PickupSurchargeCents int64
	TotalCents           int64
	Currency             string
}

// Booking is the aggregate root for a customer reservation on a tour or event.
type Booking struct {
	id         uuid.UUID
	reference  string
	kind       Kind
	status     Status
	customerID uuid.UUID
	productID  uuid.UUID
	scheduleID uuid.UUID
	pickupID   *uuid.UUID
	departs    time.Time
	adults     int
	children   int
	pricing    Pricing
	version    int64
	createdAt  time.Time
	updatedAt  time.Time
}

// NewBooking creates a pending booking with a generated reference.
func NewBooking(kind Kind, customerID, productID, scheduleID uuid.UUID, pickupID *uuid.UUID, departs time.Time, adults, children int, pricing Pricing) (*Booking, error) {
	if adults < 1 {
		return nil, domain.NewValidationError("at least one adult is required")
	}
	if children < 0 {
		return nil, domain.NewValidationError("children count cannot be negative")
	}

	now := time.Now().UTC()
	return &Booking{
		id:         uuid.New(),
		reference:  "HB-" + strings.ToUpper(uuid.New().String()[:8]),
		kind:       kind,
		status:     StatusPending,
		customerID: customerID,
		productID:  productID,
		scheduleID: scheduleID,
		pickupID:   pickupID,
		departs:    departs,
		adults:     adults,
		children:   children,
		pricing:    pricing,
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID         { return b.id }
func (b *Booking) Reference() string     { return b.reference }
func (b *Booking) Kind() Kind            { return b.kind }
func (b *Booking) Status() Status        { return b.status }
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }
func (b *Booking) ProductID() uuid.UUID  { return b.productID }
func (b *Booking) ScheduleID() uuid.UUID { return b.scheduleID }
func (b *Booking) PickupID() *uuid.UUID  { return b.pickupID }
func (b *Booking) Departs() time.Time    { return b.departs }
func (b *Booking) Adults() int           { return b.adults }
func (b *Booking) Children() int         { return b.children }
func (b *Booking) Pricing() Pricing      { return b.pricing }
func (b *Booking) Version() int64        { return b.version }
func (b *Booking) CreatedAt() time.Time  { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time  { return b.updatedAt }

// --- Behavior / State Transitions ---

// Confirm transitions from pending to confirmed once a payment completes.
func (b *Booking) Confirm() error {
	if b.status != StatusPending {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	b.status = StatusConfirmed
	b.updatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions a pending or confirmed booking to cancelled.
func (b *Booking) Cancel() error {
	if b.status != StatusPending && b.status != StatusConfirmed {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	b.status = StatusCancelled
	b.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions a confirmed booking to completed after departure.
func (b *Booking) Complete() error {
	if b.status != StatusConfirmed {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	b.status = StatusCompleted
	b.updatedAt = time.Now().UTC()
	return nil
}

// Reprice applies an edited selection and its freshly quoted pricing.
// Only pending and confirmed bookings can be edited.
func (b *Booking) Reprice(scheduleID uuid.UUID, pickupID *uuid.UUID, departs time.Time, adults, children int, pricing Pricing) error {
	if b.status != StatusPending && b.status != StatusConfirmed {
		return domain.NewInvalidStateError(string(b.status), "edited")
	}
	if adults < 1 {
		return domain.NewValidationError("at least one adult is required")
	}
	if children < 0 {
		return domain.NewValidationError("children count cannot be negative")
	}

	b.scheduleID = scheduleID
	b.pickupID = pickupID
	b.departs = departs
	b.adults = adults
	b.children = children
	b.pricing = pricing
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// Reconstitute rebuilds a Booking from persisted data.
func Reconstitute(
	id uuid.UUID,
	reference string,
	kind Kind,
	status Status,
	customerID, productID, scheduleID uuid.UUID,
	pickupID *uuid.UUID,
	departs time.Time,
	adults, children int,
	pricing Pricing,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:         id,
		reference:  reference,
		kind:       kind,
		status:     status,
		customerID: customerID,
		productID:  productID,
		scheduleID: scheduleID,
		pickupID:   pickupID,
		departs:    departs,
		adults:     adults,
		children:   children,
		pricing:    pricing,
		version:    version,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}
