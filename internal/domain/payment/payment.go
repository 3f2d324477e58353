package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
)

// Status represents the state of the charge itself.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

// RefundStatus represents the refund state of a payment.
type RefundStatus string

const (
	RefundNone    RefundStatus = "not_refunded"
	RefundPending RefundStatus = "pending"
	Refunded      RefundStatus = "refunded"
	RefundFailed  RefundStatus = "failed"
)

// Purpose distinguishes the original booking charge from an upcharge taken
// when an edit raised the price.
type Purpose string

const (
	PurposeBooking  Purpose = "booking"
	PurposeUpcharge Purpose = "upcharge"
)

// Payment is the aggregate root for one monetary transaction against a
// booking. A booking may carry several completed payments, so refund state is
// tracked per payment: refundedAmountCents only ever grows and never exceeds
// amountCents.
type Payment struct {
	id                    uuid.UUID
	bookingID             uuid.UUID
	bookingKind           booking.Kind
	purpose               Purpose
	amountCents           int64
	currency              string
	status                Status
	refundStatus          RefundStatus
	refundedAmountCents   int64
	stripePaymentIntentID string
	stripeRefundID        string
	refundReceiptURL      string
	notes                 string
	version               int64
	createdAt             time.Time
	updatedAt             time.Time
}

// NewPayment creates a pending payment for a booking charge or upcharge.
func NewPayment(bookingID uuid.UUID, kind booking.Kind, purpose Purpose, amountCents int64, currency string) (*Payment, error) {
	if amountCents <= 0 {
		return nil, domain.NewValidationError("payment amount must be positive")
	}

	now := time.Now().UTC()
	return &Payment{
		id:           uuid.New(),
		bookingID:    bookingID,
		bookingKind:  kind,
		purpose:      purpose,
		amountCents:  amountCents,
		currency:     currency,
		status:       StatusPending,
		refundStatus: RefundNone,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// --- Getters ---

func (p *Payment) ID() uuid.UUID                 { return p.id }
func (p *Payment) BookingID() uuid.UUID          { return p.bookingID }
func (p *Payment) BookingKind() booking.Kind     { return p.bookingKind }
func (p *Payment) Purpose() Purpose              { return p.purpose }
func (p *Payment) AmountCents() int64            { return p.amountCents }
func (p *Payment) Currency() string              { return p.currency }
func (p *Payment) Status() Status                { return p.status }
func (p *Payment) RefundStatus() RefundStatus    { return p.refundStatus }
func (p *Payment) RefundedAmountCents() int64    { return p.refundedAmountCents }
func (p *Payment) StripePaymentIntentID() string { return p.stripePaymentIntentID }
func (p *Payment) StripeRefundID() string        { return p.stripeRefundID }
func (p *Payment) RefundReceiptURL() string      { return p.refundReceiptURL }
func (p *Payment) Notes() string                 { return p.notes }
func (p *Payment) Version() int64                { return p.version }
func (p *Payment) CreatedAt() time.Time          { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time          { return p.updatedAt }

// RemainingRefundableCents returns how much of this payment is still refundable.
func (p *Payment) RemainingRefundableCents() int64 {
	return p.amountCents - p.refundedAmountCents
}

// --- Behavior / State Transitions ---

// AttachIntent stores the gateway payment-intent ID on a pending payment.
func (p *Payment) AttachIntent(paymentIntentID string) error {
	if p.status != StatusPending {
		return domain.NewInvalidStateError(string(p.status), "intent attached")
	}
	p.stripePaymentIntentID = paymentIntentID
	p.updatedAt = time.Now().UTC()
	return nil
}

// MarkCompleted transitions from pending to completed once the gateway
// confirms the charge.
func (p *Payment) MarkCompleted() error {
	if p.status != StatusPending {
		return domain.NewInvalidStateError(string(p.status), string(StatusCompleted))
	}
	p.status = StatusCompleted
	p.appendNote("payment completed")
	p.updatedAt = time.Now().UTC()
	return nil
}

// MarkFailed transitions from pending to failed.
func (p *Payment) MarkFailed(reason string) error {
	if p.status != StatusPending {
		return domain.NewInvalidStateError(string(p.status), string(StatusFailed))
	}
	p.status = StatusFailed
	p.appendNote("payment failed: " + reason)
	p.updatedAt = time.Now().UTC()
	return nil
}

// CanBeginRefund checks whether a refund of amountCents may be issued against
// this payment, without mutating it. Callers that move money at the gateway
// must run this before the gateway call so an ineligible payment never
// produces a refund the record cannot capture. Guards:
//   - only completed payments can be refunded
//   - a payment with a refund already pending cannot take another one
//   - the cumulative refunded amount can never exceed the payment amount
func (p *Payment) CanBeginRefund(amountCents int64) error {
	if p.status != StatusCompleted {
		return domain.NewInvalidStateError(string(p.status), "refunding")
	}
	if p.refundStatus == RefundPending {
		return domain.NewConflictError(fmt.Sprintf("payment %s already has a refund pending", p.id))
	}
	if amountCents <= 0 {
		return domain.NewValidationError("refund amount must be positive")
	}
	if p.refundedAmountCents+amountCents > p.amountCents {
		return domain.NewValidationError(fmt.Sprintf(
			"refund of %d cents exceeds remaining refundable %d cents on payment %s",
			amountCents, p.RemainingRefundableCents(), p.id))
	}
	return nil
}

// BeginRefund records an issued gateway refund on this payment. The refund is
// pending until the gateway confirms asynchronously. Applies the same guards
// as CanBeginRefund.
func (p *Payment) BeginRefund(amountCents int64, refundID, note string) error {
	if err := p.CanBeginRefund(amountCents); err != nil {
		return err
	}

	p.refundStatus = RefundPending
	p.refundedAmountCents += amountCents
	p.stripeRefundID = refundID
	p.appendNote(note)
	p.updatedAt = time.Now().UTC()
	return nil
}

// ResolveRefund settles a pending refund once the gateway confirms the
// outcome. refundedAmountCents is kept even on failure so the running total
// stays monotonic; a failed refund is reconciled manually.
func (p *Payment) ResolveRefund(succeeded bool, receiptURL string) error {
	if p.refundStatus != RefundPending {
		return domain.NewInvalidStateError(string(p.refundStatus), "settled")
	}

	if succeeded {
		p.refundStatus = Refunded
		p.refundReceiptURL = receiptURL
		p.appendNote("refund confirmed by gateway")
	} else {
		p.refundStatus = RefundFailed
		p.appendNote("refund rejected by gateway")
	}
	p.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Payment) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

func (p *Payment) appendNote(line string) {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if p.notes == "" {
		p.notes = stamp + " " + line
		return
	}
	p.notes += "\n" + stamp + " " + line
}

// Reconstitute rebuilds a Payment from persisted data.
func Reconstitute(
	id, bookingID uuid.UUID,
	kind booking.Kind,
	purpose Purpose,
	amountCents int64,
	currency string,
	status Status,
	refundStatus RefundStatus,
	refundedAmountCents int64,
	stripePaymentIntentID, stripeRefundID, refundReceiptURL, notes string,
	version int64,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:                    id,
		bookingID:             bookingID,
		bookingKind:           kind,
		purpose:               purpose,
		amountCents:           amountCents,
		currency:              currency,
		status:                status,
		refundStatus:          refundStatus,
		refundedAmountCents:   refundedAmountCents,
		stripePaymentIntentID: stripePaymentIntentID,
		stripeRefundID:        stripeRefundID,
		refundReceiptURL:      refundReceiptURL,
		notes:                 notes,
		version:               version,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
	}
}
