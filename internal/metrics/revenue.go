package metrics

import (
	"context"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Revenue is the total of every revenue family, credit minus debit.
func (c *Calculator) Revenue(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.revenue(ctx, p))
}

func (c *Calculator) revenue(ctx context.Context, p ledger.Period) float64 {
	return c.flow(ctx, "revenue", p, ledger.CreditMinusDebit, accounts.RevenueCategories...)
}

// Sales returns product sales revenue.
func (c *Calculator) Sales(ctx context.Context, p ledger.Period) float64 {
	return c.revenueOf(ctx, p, accounts.SalesRevenue)
}

// Services returns service revenue.
func (c *Calculator) Services(ctx context.Context, p ledger.Period) float64 {
	return c.revenueOf(ctx, p, accounts.ServiceRevenue)
}

// CashReceipts returns retail receipts.
func (c *Calculator) CashReceipts(ctx context.Context, p ledger.Period) float64 {
	return c.revenueOf(ctx, p, accounts.CashReceipts)
}

// CapitalGains returns gains on disposals.
func (c *Calculator) CapitalGains(ctx context.Context, p ledger.Period) float64 {
	return c.revenueOf(ctx, p, accounts.CapitalGains)
}

// OtherGains returns gains other than disposals.
func (c *Calculator) OtherGains(ctx context.Context, p ledger.Period) float64 {
	return c.revenueOf(ctx, p, accounts.OtherGains)
}

// ExtraordinaryIncome returns contingent income.
func (c *Calculator) ExtraordinaryIncome(ctx context.Context, p ledger.Period) float64 {
	return c.revenueOf(ctx, p, accounts.ExtraordinaryIncome)
}

func (c *Calculator) revenueOf(ctx context.Context, p ledger.Period, cat accounts.Category) float64 {
	return ledger.Round2(c.flow(ctx, string(cat), p, ledger.CreditMinusDebit, cat))
}
