package growth

import (
	"context"
	"math"
	"time"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// SeasonMonth is one month of a seasonality profile.
type SeasonMonth struct {
	Month                int     `json:"month"`
	Name                 string  `json:"name"`
	Revenue              float64 `json:"revenue"`
	Cost                 float64 `json:"cost"`
	Margin               float64 `json:"margin"`
	SalesTransactions    int     `json:"sales_transactions"`
	PurchaseTransactions int     `json:"purchase_transactions"`
	PriorRevenue         float64 `json:"prior_revenue"`
	PriorCost            float64 `json:"prior_cost"`
	RevenueChange        float64 `json:"revenue_change"`
	CostChange           float64 `json:"cost_change"`
	RevenueShare         float64 `json:"revenue_share"`
	CostShare            float64 `json:"cost_share"`
}

// SeasonQuarter is one quarter of a seasonality profile.
type SeasonQuarter struct {
	Quarter      int     `json:"quarter"`
	Revenue      float64 `json:"revenue"`
	Cost         float64 `json:"cost"`
	Margin       float64 `json:"margin"`
	RevenueShare float64 `json:"revenue_share"`
	CostShare    float64 `json:"cost_share"`
}

// SeasonalityReport profiles one year against a prior year.
type SeasonalityReport struct {
	Year             int             `json:"year"`
	PriorYear        int             `json:"prior_year"`
	Revenue          float64         `json:"revenue"`
	Cost             float64         `json:"cost"`
	Margin           float64         `json:"margin"`
	Months           []SeasonMonth   `json:"months"`
	Quarters         []SeasonQuarter `json:"quarters"`
	PeakMonth        int             `json:"peak_month"`
	PeakRevenue      float64         `json:"peak_revenue"`
	TroughMonth      int             `json:"trough_month"`
	TroughRevenue    float64         `json:"trough_revenue"`
	PeakQuarter      int             `json:"peak_quarter"`
	PeakQuarterValue float64         `json:"peak_quarter_revenue"`
	Index            float64         `json:"seasonality_index"`
	PeakToTrough     float64         `json:"peak_to_trough"`
	Error            string          `json:"error,omitempty"`
}

// Seasonality profiles the monthly revenue distribution of year. A prior of zero
// compares against the year before.
func (a *Analyzer) Seasonality(ctx context.Context, year, prior int) SeasonalityReport {
	if prior == 0 {
		prior = year - 1
	}
	report := SeasonalityReport{Year: year, PriorYear: prior}

	revPred, err := a.predicate(ctx, accounts.TradingRevenueCategories...)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	costPred, err := a.predicate(ctx, accounts.GrowthCostCategories...)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	salesPred, err := a.predicate(ctx, accounts.CustomerReceivables, accounts.CashReceipts)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	purchasePred, err := a.predicate(ctx, accounts.SupplierPayables)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	current := ledger.YearPeriod(year)
	rev, err := a.monthly(ctx, revPred, salesPred, current, ledger.CreditMinusDebit, ledger.SideAny, ledger.DistinctDay)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	cost, err := a.monthly(ctx, costPred, purchasePred, current, ledger.DebitMinusCredit, ledger.SideAny, ledger.DistinctDay)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	before := ledger.YearPeriod(prior)
	priorRev, err := a.monthly(ctx, revPred, nil, before, ledger.CreditMinusDebit, ledger.SideAny, ledger.DistinctDay)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	priorCost, err := a.monthly(ctx, costPred, nil, before, ledger.DebitMinusCredit, ledger.SideAny, ledger.DistinctDay)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.Months = make([]SeasonMonth, 12)
	var totalRev, totalCost float64
	for i := range report.Months {
		month := time.Month(i + 1)
		m := ledger.Month{Year: year, Month: month}
		p := ledger.Month{Year: prior, Month: month}
		row := SeasonMonth{
			Month:                i + 1,
			Name:                 month.String(),
			Revenue:              round(rev.values[m]),
			Cost:                 round(cost.values[m]),
			SalesTransactions:    rev.counts[m],
			PurchaseTransactions: cost.counts[m],
			PriorRevenue:         round(priorRev.values[p]),
			PriorCost:            round(priorCost.values[p]),
		}
		row.Margin = round(row.Revenue - row.Cost)
		if row.PriorRevenue > 0 {
			row.RevenueChange = round(Delta(row.Revenue, row.PriorRevenue))
		}
		if row.PriorCost > 0 {
			row.CostChange = round(Delta(row.Cost, row.PriorCost))
		}
		totalRev += row.Revenue
		totalCost += row.Cost
		report.Months[i] = row
	}

	report.Quarters = make([]SeasonQuarter, 4)
	for q := range report.Quarters {
		report.Quarters[q].Quarter = q + 1
	}
	shares := make([]float64, len(report.Months))
	for i := range report.Months {
		row := &report.Months[i]
		shares[i] = Share(row.Revenue, totalRev)
		row.RevenueShare = round(shares[i])
		row.CostShare = round(Share(row.Cost, totalCost))

		q := &report.Quarters[i/3]
		q.Revenue += row.Revenue
		q.Cost += row.Cost
		q.Margin += row.Margin
	}
	for i := range report.Quarters {
		q := &report.Quarters[i]
		q.RevenueShare = round(Share(q.Revenue, totalRev))
		q.CostShare = round(Share(q.Cost, totalCost))
		q.Revenue, q.Cost, q.Margin = round(q.Revenue), round(q.Cost), round(q.Margin)
	}

	report.Revenue = round(totalRev)
	report.Cost = round(totalCost)
	report.Margin = round(totalRev - totalCost)
	report.PeakMonth, report.PeakRevenue, report.TroughMonth, report.TroughRevenue = peaks(report.Months)
	for _, q := range report.Quarters {
		if q.Revenue > report.PeakQuarterValue {
			report.PeakQuarter, report.PeakQuarterValue = q.Quarter, q.Revenue
		}
	}
	report.Index = round(SeasonalityIndex(shares))
	if report.TroughRevenue > 0 {
		report.PeakToTrough = round(report.PeakRevenue / report.TroughRevenue)
	}
	return report
}

// peaks finds the highest month and the lowest month with positive revenue.
func peaks(months []SeasonMonth) (peak int, peakValue float64, trough int, troughValue float64) {
	troughValue = math.MaxFloat64
	for _, m := range months {
		if m.Revenue > peakValue {
			peak, peakValue = m.Month, m.Revenue
		}
		if m.Revenue > 0 && m.Revenue < troughValue {
			trough, troughValue = m.Month, m.Revenue
		}
	}
	if trough == 0 {
		troughValue = 0
	}
	return peak, peakValue, trough, troughValue
}

// SeasonalityIndex is the population standard deviation of monthly shares.
func SeasonalityIndex(shares []float64) float64 {
	if len(shares) == 0 {
		return 0
	}
	var mean float64
	for _, s := range shares {
		mean += s
	}
	mean /= float64(len(shares))
	var squares float64
	for _, s := range shares {
		squares += (s - mean) * (s - mean)
	}
	return math.Sqrt(squares / float64(len(shares)))
}
