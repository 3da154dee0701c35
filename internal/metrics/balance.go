package metrics

import (
	"context"
	"log/slog"
	"math"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// liabilityFloor is the smallest current liability balance a liquidity ratio divides by.
const liabilityFloor = 0.01

// EffectiveShareCapital is the ledger credit balance of share capital through the period
// end, or the configured share capital when the ledger carries none.
func (c *Calculator) EffectiveShareCapital(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.shareCapital(ctx, p))
}

func (c *Calculator) shareCapital(ctx context.Context, p ledger.Period) float64 {
	booked := c.balance(ctx, "share_capital", p.End, ledger.CreditMinusDebit, accounts.ShareCapital)
	if booked > 0 {
		return booked
	}
	return c.settings(ctx).ShareCapital
}

// Equity is effective share capital plus reserves and retained earnings.
func (c *Calculator) Equity(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.equity(ctx, p))
}

func (c *Calculator) equity(ctx context.Context, p ledger.Period) float64 {
	return c.shareCapital(ctx, p) + c.balance(ctx, "equity", p.End, ledger.CreditMinusDebit, accounts.Equity)
}

// InvestedCapital is the cumulative debit balance of fixed assets, receivables,
// inventory, liquidity and accruals.
func (c *Calculator) InvestedCapital(ctx context.Context, p ledger.Period) float64 {
	return ledger.Round2(c.investedCapital(ctx, p))
}

func (c *Calculator) investedCapital(ctx context.Context, p ledger.Period) float64 {
	return c.balance(ctx, "invested_capital", p.End, ledger.DebitMinusCredit, accounts.InvestedCapitalCategories...)
}

// DebtRatio is total debts over equity.
func (c *Calculator) DebtRatio(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("debt_ratio", p) {
		return 0
	}
	debts := c.balance(ctx, "debts", p.End, ledger.CreditMinusDebit, accounts.DebtCategories...)
	return ledger.Round2(c.ratio("debt_ratio", debts, c.equity(ctx, p)))
}

// CurrentRatio is current assets over the magnitude of current liabilities.
func (c *Calculator) CurrentRatio(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("current_ratio", p) {
		return 0
	}
	assets := c.balance(ctx, "current_assets", p.End, ledger.DebitMinusCredit, accounts.CurrentAssetCategories...)
	return c.liquidity(ctx, "current_ratio", p, assets)
}

// QuickRatio is liquidity plus receivables over the magnitude of current liabilities.
func (c *Calculator) QuickRatio(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("quick_ratio", p) {
		return 0
	}
	assets := c.balance(ctx, "quick_assets", p.End, ledger.DebitMinusCredit, accounts.QuickAssetCategories...)
	return c.liquidity(ctx, "quick_ratio", p, assets)
}

func (c *Calculator) liquidity(ctx context.Context, metric string, p ledger.Period, assets float64) float64 {
	liabilities := math.Abs(c.balance(ctx, "current_liabilities", p.End, ledger.CreditMinusDebit, accounts.CurrentLiabilityCategories...))
	if liabilities <= liabilityFloor {
		c.logger.Debug("no current liabilities", slog.String("metric", metric), slog.String("period", p.String()))
		return 0
	}
	return ledger.Round2(assets / liabilities)
}

// DSO is days sales outstanding: customer receivables over annualised daily revenue.
func (c *Calculator) DSO(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("dso", p) {
		return 0
	}
	receivables := c.agg.CumulativeWith(ctx, c.union(ctx, "dso_receivables", accounts.CustomerReceivables),
		p.End, ledger.DebitMinusCredit, ledger.ExcludeBoth)
	revenue := c.flow(ctx, "dso_revenue", p, ledger.CreditMinusDebit, accounts.TradingRevenueCategories...)
	return c.outstandingDays("dso", p, c.nonNegative("dso_receivables", p, receivables), revenue)
}

// DPO is days payables outstanding: supplier payables over annualised daily purchases.
func (c *Calculator) DPO(ctx context.Context, p ledger.Period) float64 {
	if !c.valid("dpo", p) {
		return 0
	}
	payables := c.agg.CumulativeWith(ctx, c.union(ctx, "dpo_payables", accounts.SupplierPayables),
		p.End, ledger.CreditMinusDebit, ledger.ExcludeBoth)
	return c.outstandingDays("dpo", p, c.nonNegative("dpo_payables", p, payables), c.purchases(ctx, p))
}

func (c *Calculator) outstandingDays(metric string, p ledger.Period, balance, flow float64) float64 {
	days := float64(p.Days())
	annualised := flow / days * 365
	return ledger.Round2(c.ratio(metric, balance, annualised) * 365)
}
