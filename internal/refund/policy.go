package refund

import "time"

// Cancellation policy thresholds. More than 12 hours before departure the
// customer gets everything back; inside the final 12 hours half; once the
// departure time has passed, nothing.
const halfRefundWindow = 12 * time.Hour

// Refundable is the outcome of applying the cancellation policy to an amount.
type Refundable struct {
	AmountCents int64
	Percentage  float64
}

// CalculateRefundable applies the time-based cancellation policy to an amount
// given the departure time. Both times are normalized to UTC before the
// comparison. Pure function; callers supply now so tests can pin the clock.
//
// This governs cancellation refunds only. Downgrade refunds from a booking
// edit bypass the policy and refund the exact price difference, since the
// customer changed their order rather than cancelling it.
func CalculateRefundable(amountCents int64, departure, now time.Time) Refundable {
	untilDeparture := departure.UTC().Sub(now.UTC())

	switch {
	case untilDeparture > halfRefundWindow:
		return Refundable{AmountCents: amountCents, Percentage: 1.0}
	case untilDeparture > 0:
		// Integer division rounds the half refund down, so an odd amount
		// keeps the extra cent with the house.
		return Refundable{AmountCents: amountCents / 2, Percentage: 0.5}
	default:
		return Refundable{AmountCents: 0, Percentage: 0}
	}
}
