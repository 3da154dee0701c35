package metrics

import (
	"context"
	"log/slog"
	"math"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// centerTolerance is the largest difference between the sum of centers and the
// aggregate total accepted as rounding.
const centerTolerance = 1.0

// Center is one line of a revenue or cost breakdown.
type Center struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// Centers is a breakdown with its coherence check against the aggregate total.
type Centers struct {
	Period      string   `json:"period"`
	Centers     []Center `json:"centers"`
	Sum         float64  `json:"sum"`
	Total       float64  `json:"total"`
	Discrepancy float64  `json:"discrepancy"`
	Coherent    bool     `json:"coherent"`
}

type centerSpec struct {
	key, name string
	value     func(ctx context.Context, p ledger.Period) float64
}

// RevenueCenters breaks revenue down by family.
func (c *Calculator) RevenueCenters(ctx context.Context, p ledger.Period) Centers {
	rev := func(cat accounts.Category) func(context.Context, ledger.Period) float64 {
		return func(ctx context.Context, p ledger.Period) float64 {
			return c.flow(ctx, string(cat), p, ledger.CreditMinusDebit, cat)
		}
	}
	specs := []centerSpec{
		{"sales", "Sales", rev(accounts.SalesRevenue)},
		{"cash_receipts", "Cash receipts", rev(accounts.CashReceipts)},
		{"services", "Services", rev(accounts.ServiceRevenue)},
		{"capital_gains", "Capital gains on disposals", rev(accounts.CapitalGains)},
		{"other_gains", "Other gains", rev(accounts.OtherGains)},
		{"extraordinary_income", "Extraordinary income", rev(accounts.ExtraordinaryIncome)},
	}
	return c.centers(ctx, "revenue_centers", p, specs, c.revenue(ctx, p))
}

// CostCenters breaks cost down by functional area.
func (c *Calculator) CostCenters(ctx context.Context, p ledger.Period) Centers {
	cost := func(metric string, cats ...accounts.Category) func(context.Context, ledger.Period) float64 {
		return func(ctx context.Context, p ledger.Period) float64 {
			return c.flow(ctx, metric, p, ledger.DebitMinusCredit, cats...)
		}
	}
	specs := []centerSpec{
		{"personnel", "Personnel", cost("personnel", accounts.Personnel, accounts.SocialCharges)},
		{"production", "Production", func(ctx context.Context, p ledger.Period) float64 {
			return c.natureCost(ctx, p, accounts.NatureDirect)
		}},
		{"it_software", "IT and software", cost("it_software", accounts.ITSoftware)},
		{"marketing", "Marketing", cost("marketing", accounts.Marketing)},
		{"administrative", "Services and consulting", cost("administrative", accounts.IndirectCosts, accounts.Services)},
		{"rent_utilities", "Rent and utilities", cost("rent_utilities", accounts.RentUtilities)},
		{"financial_charges", "Financial charges", cost("financial_charges", accounts.FinancialCharges)},
		{"taxes", "Taxes", cost("taxes", accounts.Taxes)},
		{"other", "Other costs", cost("other_costs",
			accounts.Depreciation, accounts.WriteDowns, accounts.CapitalLosses, accounts.OtherLosses,
			accounts.SundryCharges, accounts.ExtraordinaryCharges)},
	}
	return c.centers(ctx, "cost_centers", p, specs, c.cost(ctx, p))
}

func (c *Calculator) centers(ctx context.Context, metric string, p ledger.Period, specs []centerSpec, total float64) Centers {
	out := Centers{Period: p.String(), Centers: make([]Center, 0, len(specs))}
	var sum float64
	for _, s := range specs {
		v := s.value(ctx, p)
		sum += v
		out.Centers = append(out.Centers, Center{
			Key:     s.key,
			Name:    s.name,
			Value:   ledger.Round2(v),
			Percent: ledger.Round2(growth.Share(v, total)),
		})
	}
	out.Discrepancy = ledger.Round2(math.Abs(sum - total))
	out.Coherent = out.Discrepancy <= centerTolerance
	if !out.Coherent {
		c.logger.Warn("center breakdown does not match total",
			slog.String("metric", metric), slog.String("period", p.String()),
			slog.Float64("sum", sum), slog.Float64("total", total))
	}
	out.Sum = ledger.Round2(sum)
	out.Total = ledger.Round2(total)
	return out
}

// ActiveCenters keeps the centers with a positive value.
func ActiveCenters(centers []Center) []Center {
	out := make([]Center, 0, len(centers))
	for _, ctr := range centers {
		if ctr.Value > 0 {
			out = append(out, ctr)
		}
	}
	return out
}
