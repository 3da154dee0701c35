package cohort

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// SupplierReport is the ABC analysis of supplier spend.
type SupplierReport struct {
	Period         string            `json:"period"`
	Comparison     string            `json:"comparison"`
	Suppliers      []EntityAggregate `json:"suppliers"`
	Total          float64           `json:"total"`
	PreviousTotal  float64           `json:"previous_total"`
	Variation      float64           `json:"variation"`
	Tiers          []TierSummary     `json:"tiers"`
	NewSuppliers   int               `json:"new_suppliers"`
	Growing        int               `json:"growing"`
	GrowingPercent float64           `json:"growing_percent"`
	GrowingSpend   float64           `json:"growing_spend"`
	GrowingShare   float64           `json:"growing_share"`
	Error          string            `json:"error,omitempty"`
}

// Suppliers classifies the suppliers of p into ABC tiers by net spend and labels their
// trend against compare, or against the preceding period when compare is nil.
func (a *Analyzer) Suppliers(ctx context.Context, p ledger.Period, compare *ledger.Period) SupplierReport {
	cmp := comparison(p, compare)
	out := SupplierReport{Period: p.String(), Comparison: cmp.String(), Suppliers: []EntityAggregate{}}
	out.Tiers = summarize(nil, 0)
	if !p.Valid() {
		a.logger.Warn("suppliers: invalid period", slog.String("period", p.String()))
		out.Error = ledger.ErrInvalidPeriod.Error()
		return out
	}

	current, err := a.aggregate(ctx, supplierFlow, p)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	previous, err := a.aggregate(ctx, supplierFlow, cmp)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	attachTrends(current, previous)

	curTotal := total(current)
	prevTotal := total(previous)
	out.Total = ledger.Round2(curTotal)
	out.PreviousTotal = ledger.Round2(prevTotal)
	if prevTotal > 0 {
		out.Variation = ledger.Round2(growth.Delta(curTotal, prevTotal))
	}

	list := ClassifyABC(ranked(current))
	var growingSpend float64
	for i := range list {
		switch list[i].Trend {
		case TrendNew:
			out.NewSuppliers++
		case TrendGrowing:
			out.Growing++
			growingSpend += list[i].Net
		}
	}
	out.Tiers = summarize(list, curTotal)
	for i := range list {
		roundAggregate(&list[i])
	}
	out.Suppliers = list
	out.GrowingSpend = ledger.Round2(growingSpend)
	out.GrowingShare = ledger.Round2(growth.Share(growingSpend, curTotal))
	if len(list) > 0 {
		out.GrowingPercent = ledger.Round2(float64(out.Growing) / float64(len(list)) * 100)
	}
	return out
}
