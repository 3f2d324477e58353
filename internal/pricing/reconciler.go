package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harborline-tours/service-payments/internal/domain/booking"
	"github.com/harborline-tours/service-payments/internal/domain/catalog"
)

// DeltaKind classifies what a booking edit does to the price.
type DeltaKind string

const (
	Upcharge  DeltaKind = "upcharge"
	Downgrade DeltaKind = "downgrade"
	NoChange  DeltaKind = "no_change"
)

// Edit is the customer's new selection for an existing booking.
type Edit struct {
	ScheduleID uuid.UUID
	PickupID   *uuid.UUID
	Adults     int
	Children   int
}

// Delta is the outcome of reconciling an edit against current catalog prices.
// DifferenceCents is new minus original: positive means the customer owes
// more, negative means a refund is due.
type Delta struct {
	OriginalCents   int64
	NewCents        int64
	DifferenceCents int64
	Kind            DeltaKind
	NewPricing      booking.Pricing
	NewDeparts      time.Time
}

// Reconciler recomputes a booking's price for an edited selection and
// classifies the difference.
type Reconciler struct {
	catalog catalog.Repository
}

// NewReconciler creates a Reconciler over the catalog repository.
func NewReconciler(catalogRepo catalog.Repository) *Reconciler {
	return &Reconciler{catalog: catalogRepo}
}

// CalculatePriceDifference quotes the edited selection at the product's
// current prices, not the prices frozen on the booking, and classifies the
// delta. An upcharge routes to a new payment intent; a downgrade routes to a
// refund of the exact difference; no change means only the booking fields move.
func (r *Reconciler) CalculatePriceDifference(ctx context.Context, b *booking.Booking, edit Edit) (*Delta, error) {
	product, err := r.catalog.FindByID(ctx, b.ProductID())
	if err != nil {
		return nil, err
	}

	newPricing, departs, err := product.Quote(edit.ScheduleID, edit.PickupID, edit.Adults, edit.Children)
	if err != nil {
		return nil, err
	}

	original := b.Pricing().TotalCents
	difference := newPricing.TotalCents - original

	kind := NoChange
	switch {
	case difference > 0:
		kind = Upcharge
	case difference < 0:
		kind = Downgrade
	}

	return &Delta{
		OriginalCents:   original,
		NewCents:        newPricing.TotalCents,
		DifferenceCents: difference,
		Kind:            kind,
		NewPricing:      newPricing,
		NewDeparts:      departs,
	}, nil
}
