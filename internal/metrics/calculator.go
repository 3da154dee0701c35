// Package metrics composes period aggregates into named financial ratios.
//
// Every function logs and returns zero when a guard trips (invalid period, zero or
// negative denominator, store failure). Monetary values are rounded to cents once, at
// the end of each public function.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
	"github.com/odyssey-erp/ledger-analytics/internal/settings"
)

// DefaultTaxRate is the estimated income tax applied by NetIncome.
const DefaultTaxRate = 0.24

// Options tunes a Calculator.
type Options struct {
	Tenant  accounts.Tenant
	TaxRate float64
	Logger  *slog.Logger
}

// Calculator evaluates ratios for one tenant.
type Calculator struct {
	agg      *analytics.Aggregator
	accounts accounts.Source
	company  settings.Source
	tenant   accounts.Tenant
	taxRate  float64
	logger   *slog.Logger
}

// NewCalculator wires the calculator dependencies.
func NewCalculator(agg *analytics.Aggregator, src accounts.Source, company settings.Source, opts Options) *Calculator {
	if opts.Tenant == 0 {
		opts.Tenant = accounts.DefaultTenant
	}
	if opts.TaxRate <= 0 {
		opts.TaxRate = DefaultTaxRate
	}
	if opts.Logger == nil {
		opts.Logger = agg.Logger()
	}
	return &Calculator{
		agg:      agg,
		accounts: src,
		company:  company,
		tenant:   opts.Tenant,
		taxRate:  opts.TaxRate,
		logger:   opts.Logger.With(slog.String("component", "metrics")),
	}
}

// TaxRate reports the rate used by NetIncome.
func (c *Calculator) TaxRate() float64 { return c.taxRate }

func (c *Calculator) union(ctx context.Context, metric string, cats ...accounts.Category) ledger.Predicate {
	pred, err := accounts.Union(ctx, c.accounts, c.tenant, cats...)
	if err != nil {
		c.logger.Error("category predicate unavailable", slog.String("metric", metric), slog.Any("error", err))
		return nil
	}
	return pred
}

func (c *Calculator) nature(ctx context.Context, metric string, n accounts.Nature) ledger.Predicate {
	pred, err := c.accounts.PatternsForCostNature(ctx, c.tenant, n)
	if err != nil {
		c.logger.Error("cost nature predicate unavailable", slog.String("metric", metric), slog.Any("error", err))
		return nil
	}
	return pred
}

// flow sums a profit-and-loss family over the period, carry-forward rows excluded.
func (c *Calculator) flow(ctx context.Context, metric string, p ledger.Period, sign ledger.SignExpr, cats ...accounts.Category) float64 {
	return c.nonNegative(metric, p, c.agg.Aggregate(ctx, c.union(ctx, metric, cats...), p, sign, ledger.ExcludeBoth))
}

// balance is the cumulative balance of a balance-sheet family through end.
func (c *Calculator) balance(ctx context.Context, metric string, end time.Time, sign ledger.SignExpr, cats ...accounts.Category) float64 {
	return c.agg.Cumulative(ctx, c.union(ctx, metric, cats...), end, sign)
}

// nonNegative keeps a nature-oriented flow at or above zero. A negative value means
// reversals outweigh postings, which is logged instead of silently flipped.
func (c *Calculator) nonNegative(metric string, p ledger.Period, v float64) float64 {
	if v < 0 {
		c.logger.Warn("negative flow clamped to zero",
			slog.String("metric", metric), slog.String("period", p.String()), slog.Float64("value", v))
		return 0
	}
	return v
}

func (c *Calculator) valid(metric string, p ledger.Period) bool {
	if p.Valid() {
		return true
	}
	c.logger.Warn("invalid period", slog.String("metric", metric), slog.String("period", p.String()))
	return false
}

// ratio divides, returning 0 and logging when the denominator is not positive.
func (c *Calculator) ratio(metric string, num, den float64) float64 {
	if den <= 0 {
		c.logger.Debug("ratio guarded", slog.String("metric", metric), slog.Float64("denominator", den))
		return 0
	}
	return num / den
}

func (c *Calculator) settings(ctx context.Context) settings.Company {
	if c.company == nil {
		return settings.Company{Country: settings.DefaultCountry}
	}
	company, err := c.company.Company(ctx, c.tenant)
	if err != nil {
		c.logger.Warn("company settings unavailable", slog.Any("error", err))
	}
	return company
}

// Territory renders the configured "City, Country".
func (c *Calculator) Territory(ctx context.Context) string {
	return c.settings(ctx).Territory()
}
