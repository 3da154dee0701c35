package metrics

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

const daysPerMonth = 30.44

// Rating labels attached to efficiency figures.
const (
	RatingExcellent = "excellent"
	RatingGood      = "good"
	RatingFair      = "fair"
	RatingCritical  = "critical"
	RatingImprove   = "needs improvement"
)

// EfficiencyFigures are the operating efficiency indicators of one period.
type EfficiencyFigures struct {
	Revenue              float64 `json:"revenue"`
	Cost                 float64 `json:"cost"`
	DirectCost           float64 `json:"direct_cost"`
	IndirectCost         float64 `json:"indirect_cost"`
	Personnel            float64 `json:"personnel"`
	OperatingMargin      float64 `json:"operating_margin"`
	SalesTransactions    int     `json:"sales_transactions"`
	PurchaseTransactions int     `json:"purchase_transactions"`
	RevenuePerEmployee   float64 `json:"revenue_per_employee"`
	RevenuePerDay        float64 `json:"revenue_per_day"`
	RevenuePerMonth      float64 `json:"revenue_per_month"`
	CostPerTransaction   float64 `json:"cost_per_transaction"`
	AverageTransaction   float64 `json:"average_transaction"`
	CostRevenueRatio     float64 `json:"cost_revenue_ratio"`
	PersonnelShare       float64 `json:"personnel_share"`
	Days                 float64 `json:"days"`
	Months               float64 `json:"months"`
}

// Efficiency compares the efficiency figures of a period with a comparison period.
type Efficiency struct {
	Period        string             `json:"period"`
	Comparison    string             `json:"comparison"`
	Employees     int                `json:"employees"`
	Current       EfficiencyFigures  `json:"current"`
	Previous      EfficiencyFigures  `json:"previous"`
	Changes       map[string]float64 `json:"changes"`
	Ratings       map[string]string  `json:"ratings"`
	MarginPercent float64            `json:"margin_percent"`
}

// Efficiency computes operating efficiency for p against compare, or against the
// preceding period of equal length when compare is nil.
func (c *Calculator) Efficiency(ctx context.Context, p ledger.Period, compare *ledger.Period, employees int) Efficiency {
	cmp := p.Previous()
	if compare != nil {
		cmp = *compare
	}
	out := Efficiency{Period: p.String(), Comparison: cmp.String(), Employees: employees}
	if !c.valid("efficiency", p) {
		return out
	}
	out.Current = c.efficiencyFigures(ctx, p, employees)
	out.Previous = c.efficiencyFigures(ctx, cmp, employees)
	out.Changes = changes(out.Current, out.Previous)
	out.MarginPercent = ledger.Round2(growth.Share(out.Current.OperatingMargin, out.Current.Revenue))
	out.Ratings = map[string]string{
		"cost_revenue_ratio":   rateCostRatio(out.Current.CostRevenueRatio),
		"revenue_per_employee": rateRevenuePerEmployee(out.Current.RevenuePerEmployee),
		"operating_margin":     rateMargin(out.MarginPercent),
	}
	c.logger.Debug("efficiency computed", slog.String("period", p.String()), slog.String("comparison", cmp.String()))
	return out
}

func (c *Calculator) efficiencyFigures(ctx context.Context, p ledger.Period, employees int) EfficiencyFigures {
	f := EfficiencyFigures{
		Revenue:      c.revenue(ctx, p),
		Cost:         c.cost(ctx, p),
		DirectCost:   c.natureCost(ctx, p, accounts.NatureDirect),
		IndirectCost: c.natureCost(ctx, p, accounts.NatureIndirect),
		Personnel:    c.personnel(ctx, p),
	}
	f.OperatingMargin = f.Revenue - f.Cost
	f.SalesTransactions = c.transactions(ctx, "sales_transactions", p, accounts.TradingRevenueCategories...)
	f.PurchaseTransactions = c.transactions(ctx, "purchase_transactions", p, accounts.PurchaseCategories...)

	f.Days = float64(p.Days())
	f.Months = f.Days / daysPerMonth
	if employees > 0 {
		f.RevenuePerEmployee = f.Revenue / float64(employees)
	} else {
		f.RevenuePerEmployee = f.Revenue
	}
	if f.Days > 0 {
		f.RevenuePerDay = f.Revenue / f.Days
		f.RevenuePerMonth = f.Revenue / f.Months
	}
	if f.SalesTransactions > 0 {
		f.CostPerTransaction = f.Cost / float64(f.SalesTransactions)
		f.AverageTransaction = f.Revenue / float64(f.SalesTransactions)
	}
	f.CostRevenueRatio = growth.Share(f.Cost, f.Revenue)
	f.PersonnelShare = growth.Share(f.Personnel, f.Cost)
	return roundFigures(f)
}

func (c *Calculator) transactions(ctx context.Context, metric string, p ledger.Period, cats ...accounts.Category) int {
	n, _ := c.agg.Count(ctx, ledger.Query{
		Predicate: c.union(ctx, metric, cats...),
		Period:    p,
		Exclusion: ledger.ExcludeBoth,
	}, ledger.DistinctRegistration)
	return n
}

func roundFigures(f EfficiencyFigures) EfficiencyFigures {
	for _, v := range []*float64{
		&f.Revenue, &f.Cost, &f.DirectCost, &f.IndirectCost, &f.Personnel, &f.OperatingMargin,
		&f.RevenuePerEmployee, &f.RevenuePerDay, &f.RevenuePerMonth, &f.CostPerTransaction,
		&f.AverageTransaction, &f.CostRevenueRatio, &f.PersonnelShare, &f.Days, &f.Months,
	} {
		*v = ledger.Round2(*v)
	}
	return f
}

func changes(cur, prev EfficiencyFigures) map[string]float64 {
	pairs := map[string][2]float64{
		"revenue":               {cur.Revenue, prev.Revenue},
		"cost":                  {cur.Cost, prev.Cost},
		"direct_cost":           {cur.DirectCost, prev.DirectCost},
		"indirect_cost":         {cur.IndirectCost, prev.IndirectCost},
		"personnel":             {cur.Personnel, prev.Personnel},
		"operating_margin":      {cur.OperatingMargin, prev.OperatingMargin},
		"sales_transactions":    {float64(cur.SalesTransactions), float64(prev.SalesTransactions)},
		"purchase_transactions": {float64(cur.PurchaseTransactions), float64(prev.PurchaseTransactions)},
		"revenue_per_employee":  {cur.RevenuePerEmployee, prev.RevenuePerEmployee},
		"revenue_per_day":       {cur.RevenuePerDay, prev.RevenuePerDay},
		"revenue_per_month":     {cur.RevenuePerMonth, prev.RevenuePerMonth},
		"cost_per_transaction":  {cur.CostPerTransaction, prev.CostPerTransaction},
		"average_transaction":   {cur.AverageTransaction, prev.AverageTransaction},
		"cost_revenue_ratio":    {cur.CostRevenueRatio, prev.CostRevenueRatio},
		"personnel_share":       {cur.PersonnelShare, prev.PersonnelShare},
	}
	out := make(map[string]float64, len(pairs))
	for k, v := range pairs {
		out[k] = ledger.Round2(growth.Delta(v[0], v[1]))
	}
	return out
}

func rateCostRatio(v float64) string {
	switch {
	case v < 70:
		return RatingExcellent
	case v < 80:
		return RatingGood
	case v < 90:
		return RatingFair
	default:
		return RatingCritical
	}
}

func rateRevenuePerEmployee(v float64) string {
	switch {
	case v > 200000:
		return RatingExcellent
	case v > 150000:
		return RatingGood
	case v > 100000:
		return RatingFair
	default:
		return RatingImprove
	}
}

func rateMargin(v float64) string {
	switch {
	case v > 20:
		return RatingExcellent
	case v > 15:
		return RatingGood
	case v > 10:
		return RatingFair
	default:
		return RatingCritical
	}
}
