package metrics

import (
	"context"
	"log/slog"
	"math"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// GrossMargin is revenue minus cost of goods sold.
func (c *Calculator) GrossMargin(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.revenue(ctx, p) - c.cogs(ctx, p))
}

// GrossMarginPercent is GrossMargin over revenue, in percent.
func (c *Calculator) GrossMarginPercent(ctx context.Context, p ledger.Period) float64 {
	rev := c.revenue(ctx, p)
	return ledger.Round2(c.ratio("gross_margin_percent", rev-c.cogs(ctx, p), rev) * 100)
}

// EBITDA is revenue minus operating cost. Depreciation, write-downs, taxes and
// financial charges never enter it.
func (c *Calculator) EBITDA(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.revenue(ctx, p) - c.operatingCost(ctx, p))
}

// EBITDAMargin is EBITDA over revenue, in percent.
func (c *Calculator) EBITDAMargin(ctx context.Context, p ledger.Period) float64 {
	rev := c.revenue(ctx, p)
	return ledger.Round2(c.ratio("ebitda_margin", rev-c.operatingCost(ctx, p), rev) * 100)
}

// NetMargin is revenue minus every cost family.
func (c *Calculator) NetMargin(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.revenue(ctx, p) - c.cost(ctx, p))
}

// BreakEven is the revenue at which indirect (fixed) cost is covered by the
// contribution margin left after COGS (variable cost).
func (c *Calculator) BreakEven(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("break_even", p) {
		return 0
	}
	rev := c.revenue(ctx, p)
	if rev <= 0 {
		c.logger.Debug("break-even: no revenue", slog.String("period", p.String()))
		return 0
	}
	variable := c.cogs(ctx, p)
	if variable >= rev {
		c.logger.Debug("break-even: variable cost exceeds revenue", slog.Float64("variable", variable), slog.Float64("revenue", rev))
		return 0
	}
	contribution := 1 - variable/rev
	if contribution <= 0 {
		c.logger.Debug("break-even: non-positive contribution margin", slog.Float64("contribution", contribution))
		return 0
	}
	fixed := c.natureCost(ctx, p, accounts.NatureIndirect)
	return ledger.Round2(fixed / contribution)
}

// NetIncome is the operating result after an estimated income tax at the calculator's
// tax rate. Losses carry no tax. Financial charges already sit in the cost union and
// are not deducted a second time.
func (c *Calculator) NetIncome(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.netIncome(ctx, p))
}

func (c *Calculator) netIncome(ctx context.Context, p ledger.Period) float64 {
	ebt := c.revenue(ctx, p) - c.cost(ctx, p)
	tax := math.Max(0, ebt*c.taxRate)
	return ebt - tax
}

// ROI is net income over cumulative invested capital, in percent.
func (c *Calculator) ROI(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("roi", p) || c.revenue(ctx, p) <= 0 {
		return 0
	}
	invested := c.investedCapital(ctx, p)
	if invested <= 0 {
		c.logger.Debug("roi: non-positive invested capital", slog.Float64("invested", invested))
		return 0
	}
	return ledger.Round2(c.netIncome(ctx, p) / invested * 100)
}

// ROE is net income over equity, in percent.
func (c *Calculator) ROE(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("roe", p) || c.revenue(ctx, p) <= 0 {
		return 0
	}
	equity := c.equity(ctx, p)
	if equity <= 0 {
		c.logger.Debug("roe: non-positive equity", slog.Float64("equity", equity))
		return 0
	}
	return ledger.Round2(c.netIncome(ctx, p) / equity * 100)
}

// ROS is net income over revenue, in percent.
func (c *Calculator) ROS(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("ros", p) {
		return 0
	}
	rev := c.revenue(ctx, p)
	return ledger.Round2(c.ratio("ros", c.netIncome(ctx, p), rev) * 100)
}

// OverheadRatio is indirect cost over revenue, in percent.
func (c *Calculator) OverheadRatio(ctx context.Context, p ledger.Period) float64 {
	rev := c.revenue(ctx, p)
	return ledger.Round2(c.ratio("overhead_ratio", c.natureCost(ctx, p, accounts.NatureIndirect), rev) * 100)
}
