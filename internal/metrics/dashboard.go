package metrics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// dashboardConcurrency bounds the metrics evaluated at once.
const dashboardConcurrency = 8

// Dashboard gathers the headline figures of one period.
type Dashboard struct {
	Period             string  `json:"period"`
	Territory          string  `json:"territory"`
	Revenue            float64 `json:"revenue"`
	Cost               float64 `json:"cost"`
	OperatingCost      float64 `json:"operating_cost"`
	DirectCost         float64 `json:"direct_cost"`
	IndirectCost       float64 `json:"indirect_cost"`
	COGS               float64 `json:"cogs"`
	GrossMargin        float64 `json:"gross_margin"`
	GrossMarginPercent float64 `json:"gross_margin_percent"`
	EBITDA             float64 `json:"ebitda"`
	EBITDAMargin       float64 `json:"ebitda_margin"`
	NetMargin          float64 `json:"net_margin"`
	NetIncome          float64 `json:"net_income"`
	BreakEven          float64 `json:"break_even"`
	ROI                float64 `json:"roi"`
	ROE                float64 `json:"roe"`
	ROS                float64 `json:"ros"`
	DebtRatio          float64 `json:"debt_ratio"`
	CurrentRatio       float64 `json:"current_ratio"`
	QuickRatio         float64 `json:"quick_ratio"`
	OverheadRatio      float64 `json:"overhead_ratio"`
	DSO                float64 `json:"dso"`
	DPO                float64 `json:"dpo"`
	Equity             float64 `json:"equity"`
	FinancialCharges   float64 `json:"financial_charges"`
	Depreciation       float64 `json:"depreciation"`
	Taxes              float64 `json:"taxes"`
	GeneratedAt        string  `json:"generated_at"`
}

// Dashboard evaluates every headline metric of p concurrently. All metrics share one
// aggregation memo, so overlapping category unions are read from the store once.
func (c *Calculator) Dashboard(ctx context.Context, p ledger.Period) (Dashboard, error) {
	ctx = analytics.WithMemo(ctx)
	d := Dashboard{Period: p.String(), GeneratedAt: time.Now().UTC().Format(time.RFC3339)}
	if !c.valid("dashboard", p) {
		return d, ledger.ErrInvalidPeriod
	}

	jobs := []struct {
		dst *float64
		fn  func(context.Context, ledger.Period) float64
	}{
		{&d.Revenue, c.Revenue},
		{&d.Cost, c.Cost},
		{&d.OperatingCost, c.OperatingCost},
		{&d.DirectCost, c.DirectCost},
		{&d.IndirectCost, c.IndirectCost},
		{&d.COGS, c.COGS},
		{&d.GrossMargin, c.GrossMargin},
		{&d.GrossMarginPercent, c.GrossMarginPercent},
		{&d.EBITDA, c.EBITDA},
		{&d.EBITDAMargin, c.EBITDAMargin},
		{&d.NetMargin, c.NetMargin},
		{&d.NetIncome, c.NetIncome},
		{&d.BreakEven, c.BreakEven},
		{&d.ROI, c.ROI},
		{&d.ROE, c.ROE},
		{&d.ROS, c.ROS},
		{&d.DebtRatio, c.DebtRatio},
		{&d.CurrentRatio, c.CurrentRatio},
		{&d.QuickRatio, c.QuickRatio},
		{&d.OverheadRatio, c.OverheadRatio},
		{&d.DSO, c.DSO},
		{&d.DPO, c.DPO},
		{&d.Equity, c.Equity},
		{&d.FinancialCharges, c.FinancialCharges},
		{&d.Depreciation, c.Depreciation},
		{&d.Taxes, c.Taxes},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardConcurrency)
	g.Go(func() error {
		d.Territory = c.Territory(gctx)
		return nil
	})
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			*job.dst = job.fn(gctx, p)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return d, err
	}
	return d, nil
}
