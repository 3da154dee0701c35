package growth

import (
	"math"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Delta is the percentage change from prior to current. Growth from nothing counts as
// 100% when current is positive and 0% otherwise.
func Delta(current, prior float64) float64 {
	if prior > 0 {
		return (current - prior) / prior * 100
	}
	if current > 0 {
		return 100
	}
	return 0
}

// MarginDelta is Delta for values that may be negative: the change is measured against
// the magnitude of prior, and a zero prior yields ±100 by the sign of current.
func MarginDelta(current, prior float64) float64 {
	if prior != 0 {
		return (current - prior) / math.Abs(prior) * 100
	}
	switch {
	case current > 0:
		return 100
	case current < 0:
		return -100
	default:
		return 0
	}
}

// CAGR is the compound rate, in percent, turning first into last over periods elapsed
// periods. ok is false when the rate is undefined.
func CAGR(first, last float64, periods int) (rate float64, ok bool) {
	if periods <= 0 || first <= 0 || last <= 0 {
		return 0, false
	}
	return (math.Pow(last/first, 1/float64(periods)) - 1) * 100, true
}

// Share is part over total in percent, zero when total is not positive.
func Share(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

func round(v float64) float64 { return ledger.Round2(v) }
