package cohort

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// CustomerReport ranks customers by net revenue.
type CustomerReport struct {
	Period          string            `json:"period"`
	Comparison      string            `json:"comparison"`
	Total           float64           `json:"total"`
	PreviousTotal   float64           `json:"previous_total"`
	Variation       float64           `json:"variation"`
	Customers       []EntityAggregate `json:"customers"`
	ActiveCustomers int               `json:"active_customers"`
	Error           string            `json:"error,omitempty"`
}

// Customers returns the top limit customers of p by net revenue with their trend against
// compare, or against the preceding period of equal length when compare is nil.
func (a *Analyzer) Customers(ctx context.Context, p ledger.Period, compare *ledger.Period, limit int) CustomerReport {
	if limit <= 0 {
		limit = DefaultLimit
	}
	cmp := comparison(p, compare)
	out := CustomerReport{Period: p.String(), Comparison: cmp.String(), Customers: []EntityAggregate{}}
	if !p.Valid() {
		a.logger.Warn("customers: invalid period", slog.String("period", p.String()))
		out.Error = ledger.ErrInvalidPeriod.Error()
		return out
	}

	current, err := a.aggregate(ctx, customerFlow, p)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	previous, err := a.aggregate(ctx, customerFlow, cmp)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	attachTrends(current, previous)

	var prevTotal float64
	for _, agg := range current {
		prevTotal += agg.Previous
	}
	curTotal := total(current)
	out.Total = ledger.Round2(curTotal)
	out.PreviousTotal = ledger.Round2(prevTotal)
	if prevTotal > 0 {
		out.Variation = ledger.Round2(growth.Delta(curTotal, prevTotal))
	}
	out.ActiveCustomers = len(current)

	list := ranked(current)
	if len(list) > limit {
		list = list[:limit]
	}
	for i := range list {
		list[i].Share = ledger.Round2(growth.Share(list[i].Net, curTotal))
		roundAggregate(&list[i])
	}
	out.Customers = list
	return out
}
