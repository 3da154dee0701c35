// Package growth builds monthly, quarterly and annual revenue series with growth
// deltas, CAGR and seasonality.
package growth

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// DefaultWindow is the number of months analysed when the caller gives none.
const DefaultWindow = 12

// Analyzer computes growth series for one tenant.
type Analyzer struct {
	agg      *analytics.Aggregator
	accounts accounts.Source
	tenant   accounts.Tenant
	logger   *slog.Logger
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(agg *analytics.Aggregator, src accounts.Source, tenant accounts.Tenant, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = agg.Logger()
	}
	return &Analyzer{agg: agg, accounts: src, tenant: tenant, logger: logger.With(slog.String("component", "growth"))}
}

// series is one monthly aggregate in nature-oriented sign.
type series struct {
	values map[ledger.Month]float64
	counts map[ledger.Month]int
}

func (a *Analyzer) predicate(ctx context.Context, cats ...accounts.Category) (ledger.Predicate, error) {
	pred, err := accounts.Union(ctx, a.accounts, a.tenant, cats...)
	if err != nil {
		a.logger.Error("category predicate unavailable", slog.Any("error", err))
	}
	return pred, err
}

// monthly sums pred by month and counts distinct d on countPred rows of the given side.
func (a *Analyzer) monthly(ctx context.Context, pred, countPred ledger.Predicate, p ledger.Period, sign ledger.SignExpr, side ledger.Side, d ledger.Distinct) (series, error) {
	q := ledger.Query{Predicate: pred, Period: p, Sign: sign, Exclusion: ledger.ExcludeBoth}
	values, err := a.agg.SumByMonth(ctx, q)
	if err != nil {
		return series{}, err
	}
	counts, err := a.agg.CountByMonth(ctx, ledger.Query{
		Predicate: countPred, Period: p, Side: side, Exclusion: ledger.ExcludeBoth,
	}, d)
	if err != nil {
		return series{}, err
	}
	for m, v := range values {
		if v < 0 {
			a.logger.Warn("negative monthly flow clamped to zero", slog.String("month", m.Key()), slog.Float64("value", v))
			values[m] = 0
		}
	}
	return series{values: values, counts: counts}, nil
}
