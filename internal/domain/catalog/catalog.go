package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/harborline-tours/service-payments/internal/domain"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
)

// Schedule is one departure of a tour or event, carrying the currently
// configured per-person prices. Recurring tour dates are expanded into
// schedule rows upstream.
type Schedule struct {
	ID              uuid.UUID
	Departs         time.Time
	AdultPriceCents int64
	ChildPriceCents int64
	Capacity        int
}

// Pickup is an optional pickup point with a flat surcharge.
type Pickup struct {
	ID             uuid.UUID
	Name           string
	SurchargeCents int64
}

// Product is a bookable tour or event with its schedules and pickup points.
type Product struct {
	id        uuid.UUID
	kind      booking.Kind
	name      string
	currency  string
	active    bool
	schedules []Schedule
	pickups   []Pickup
}

// NewProduct creates an active catalog product.
func NewProduct(kind booking.Kind, name, currency string, schedules []Schedule, pickups []Pickup) *Product {
	return &Product{
		id:        uuid.New(),
		kind:      kind,
		name:      name,
		currency:  currency,
		active:    true,
		schedules: schedules,
		pickups:   pickups,
	}
}

// --- Getters ---

func (p *Product) ID() uuid.UUID         { return p.id }
func (p *Product) Kind() booking.Kind    { return p.kind }
func (p *Product) Name() string          { return p.name }
func (p *Product) Currency() string      { return p.currency }
func (p *Product) Active() bool          { return p.active }
func (p *Product) Schedules() []Schedule { return p.schedules }
func (p *Product) Pickups() []Pickup     { return p.pickups }

// Schedule returns the schedule with the given ID.
func (p *Product) Schedule(id uuid.UUID) (Schedule, bool) {
	for _, s := range p.schedules {
		if s.ID == id {
			return s, true
		}
	}
	return Schedule{}, false
}

// Pickup returns the pickup point with the given ID.
func (p *Product) Pickup(id uuid.UUID) (Pickup, bool) {
	for _, pk := range p.pickups {
		if pk.ID == id {
			return pk, true
		}
	}
	return Pickup{}, false
}

// Quote prices a selection against the product's current configuration and
// returns the pricing snapshot plus the departure time. This is the single
// price source for both new bookings and edit reconciliation, so edited
// bookings are always repriced at today's rates rather than the frozen
// snapshot.
func (p *Product) Quote(scheduleID uuid.UUID, pickupID *uuid.UUID, adults, children int) (booking.Pricing, time.Time, error) {
	if adults < 1 {
		return booking.Pricing{}, time.Time{}, domain.NewValidationError("at least one adult is required")
	}
	if children < 0 {
		return booking.Pricing{}, time.Time{}, domain.NewValidationError("children count cannot be negative")
	}

	sched, ok := p.Schedule(scheduleID)
	if !ok {
		return booking.Pricing{}, time.Time{}, domain.NewNotFoundError("Schedule", scheduleID.String())
	}

	var surcharge int64
	if pickupID != nil {
		pk, ok := p.Pickup(*pickupID)
		if !ok {
			return booking.Pricing{}, time.Time{}, domain.NewNotFoundError("Pickup", pickupID.String())
		}
		surcharge = pk.SurchargeCents
	}

	pricing := booking.Pricing{
		AdultPriceCents:      sched.AdultPriceCents,
		ChildPriceCents:      sched.ChildPriceCents,
		AdultTotalCents:      sched.AdultPriceCents * int64(adults),
		ChildTotalCents:      sched.ChildPriceCents * int64(children),
		PickupSurchargeCents: surcharge,
		Currency:             p.currency,
	}
	pricing.TotalCents = pricing.AdultTotalCents + pricing.ChildTotalCents + pricing.PickupSurchargeCents

	return pricing, sched.Departs, nil
}

// Reconstitute rebuilds a Product from persisted data.
func Reconstitute(id uuid.UUID, kind booking.Kind, name, currency string, active bool, schedules []Schedule, pickups []Pickup) *Product {
	return &Product{
		id:        id,
		kind:      kind,
		name:      name,
		currency:  currency,
		active:    active,
		schedules: schedules,
		pickups:   pickups,
	}
}
