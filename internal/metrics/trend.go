package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// MonthTrend is revenue, cost and margin of one month.
type MonthTrend struct {
	Month   int     `json:"month"`
	Name    string  `json:"name"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Margin  float64 `json:"margin"`
}

// MonthlyTrend returns the twelve months of year. Years outside 1900-2100 yield nil.
func (c *Calculator) MonthlyTrend(ctx context.Context, year int) []MonthTrend {
	if year < 1900 || year > 2100 {
		c.logger.Warn("monthly trend: invalid year", slog.Int("year", year))
		return nil
	}
	period := ledger.YearPeriod(year)
	revenue, err := c.agg.SumByMonth(ctx, ledger.Query{
		Predicate: c.union(ctx, "trend_revenue", accounts.RevenueCategories...),
		Period:    period,
		Sign:      ledger.CreditMinusDebit,
		Exclusion: ledger.ExcludeBoth,
	})
	if err != nil {
		return nil
	}
	cost, err := c.agg.SumByMonth(ctx, ledger.Query{
		Predicate: c.union(ctx, "trend_cost", accounts.CostCategories...),
		Period:    period,
		Sign:      ledger.DebitMinusCredit,
		Exclusion: ledger.ExcludeBoth,
	})
	if err != nil {
		return nil
	}

	out := make([]MonthTrend, 12)
	for i := range out {
		m := ledger.Month{Year: year, Month: time.Month(i + 1)}
		rev := c.nonNegative("trend_revenue", m.Period(), revenue[m])
		cst := c.nonNegative("trend_cost", m.Period(), cost[m])
		out[i] = MonthTrend{
			Month:   i + 1,
			Name:    m.Month.String(),
			Revenue: ledger.Round2(rev),
			Cost:    ledger.Round2(cst),
			Margin:  ledger.Round2(rev - cst),
		}
	}
	return out
}
