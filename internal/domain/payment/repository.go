package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/harborline-tours/service-payments/internal/domain/booking"
)

// Repository defines the persistence contract for Payment aggregates.
type Repository interface {
	// FindByID retrieves a payment by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByIntentID retrieves a payment by its gateway payment-intent ID.
	FindByIntentID(ctx context.Context, paymentIntentID string) (*Payment, error)

	// FindCompletedByBooking retrieves all completed payments for a booking,
	// most recent first. This is the ledger view the refund scanner works on.
	FindCompletedByBooking(ctx context.Context, bookingID uuid.UUID, kind booking.Kind) ([]*Payment, error)

	// ListAll retrieves all payments with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Payment, int64, error)

	// GetRefundStats returns aggregate refund statistics (admin).
	GetRefundStats(ctx context.Context) (totalCollectedCents, totalRefundedCents int64, countByRefundStatus map[string]int64, err error)

	// Save persists a new payment aggregate.
	Save(ctx context.Context, p *Payment) error

	// Update persists changes to an existing payment with optimistic locking.
	// The version guard is what closes the window between reading a payment's
	// refund state and marking a refund pending.
	Update(ctx context.Context, p *Payment) error
}
