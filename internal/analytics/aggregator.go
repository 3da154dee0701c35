// Package analytics evaluates signed ledger aggregates over periods and account
// predicates, caching results across calculator invocations.
package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Aggregator is the period aggregation layer shared by every calculator.
type Aggregator struct {
	store  ledger.Store
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewAggregator wires a store with an optional Redis cache.
func NewAggregator(store ledger.Store, cache *Cache, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, cache: cache, logger: logger}
}

// Logger exposes the aggregator logger to calculators built on top of it.
func (a *Aggregator) Logger() *slog.Logger { return a.logger }

// Aggregate sums sign over rows matching pred inside period, honouring mode. Failures
// are logged and reported as zero.
func (a *Aggregator) Aggregate(ctx context.Context, pred ledger.Predicate, period ledger.Period, sign ledger.SignExpr, mode ledger.ExclusionMode) float64 {
	v, _ := a.Sum(ctx, ledger.Query{Predicate: pred, Period: period, Sign: sign, Exclusion: mode})
	return v
}

// Cumulative sums from ledger inception through end, skipping closing rows only.
func (a *Aggregator) Cumulative(ctx context.Context, pred ledger.Predicate, end time.Time, sign ledger.SignExpr) float64 {
	return a.CumulativeWith(ctx, pred, end, sign, ledger.ExcludeClosing)
}

// CumulativeWith is Cumulative with an explicit exclusion mode.
func (a *Aggregator) CumulativeWith(ctx context.Context, pred ledger.Predicate, end time.Time, sign ledger.SignExpr, mode ledger.ExclusionMode) float64 {
	return a.Aggregate(ctx, pred, ledger.Through(end), sign, mode)
}

// Sum evaluates q. The returned error is already logged; callers use it only to tell a
// failed aggregate apart from a legitimate zero.
func (a *Aggregator) Sum(ctx context.Context, q ledger.Query) (float64, error) {
	if q.Predicate.Empty() {
		return 0, nil
	}
	if !q.Period.Valid() {
		a.logger.Warn("aggregate skipped: invalid period", slog.String("period", q.Period.String()))
		return 0, ledger.ErrInvalidPeriod
	}
	v, err := fetch(ctx, a, "sum", q.Signature(), func(ctx context.Context) (float64, error) {
		return a.store.Sum(ctx, q)
	})
	if err != nil {
		a.logger.Error("aggregate failed", slog.String("period", q.Period.String()), slog.Any("error", err))
		return 0, err
	}
	return v, nil
}

// Count returns the number of distinct protocols, registrations or days matching q.
func (a *Aggregator) Count(ctx context.Context, q ledger.Query, d ledger.Distinct) (int, error) {
	if q.Predicate.Empty() {
		return 0, nil
	}
	if !q.Period.Valid() {
		return 0, ledger.ErrInvalidPeriod
	}
	v, err := fetch(ctx, a, "count", q.Signature()+":"+d.String(), func(ctx context.Context) (int, error) {
		return a.store.Count(ctx, q, d)
	})
	if err != nil {
		a.logger.Error("count failed", slog.String("period", q.Period.String()), slog.Any("error", err))
		return 0, err
	}
	return v, nil
}

// SumByMonth groups Sum by calendar month in a single store call.
func (a *Aggregator) SumByMonth(ctx context.Context, q ledger.Query) (map[ledger.Month]float64, error) {
	if q.Predicate.Empty() {
		return map[ledger.Month]float64{}, nil
	}
	if !q.Period.Valid() {
		return nil, ledger.ErrInvalidPeriod
	}
	raw, err := fetch(ctx, a, "sum_month", q.Signature(), func(ctx context.Context) (map[string]float64, error) {
		byMonth, err := a.store.SumByMonth(ctx, q)
		if err != nil {
			return nil, err
		}
		return monthKeys(byMonth), nil
	})
	if err != nil {
		a.logger.Error("monthly aggregate failed", slog.String("period", q.Period.String()), slog.Any("error", err))
		return nil, err
	}
	return fromMonthKeys(raw), nil
}

// CountByMonth groups Count by calendar month in a single store call.
func (a *Aggregator) CountByMonth(ctx context.Context, q ledger.Query, d ledger.Distinct) (map[ledger.Month]int, error) {
	if q.Predicate.Empty() {
		return map[ledger.Month]int{}, nil
	}
	if !q.Period.Valid() {
		return nil, ledger.ErrInvalidPeriod
	}
	raw, err := fetch(ctx, a, "count_month", q.Signature()+":"+d.String(), func(ctx context.Context) (map[string]int, error) {
		byMonth, err := a.store.CountByMonth(ctx, q, d)
		if err != nil {
			return nil, err
		}
		return monthKeys(byMonth), nil
	})
	if err != nil {
		a.logger.Error("monthly count failed", slog.String("period", q.Period.String()), slog.Any("error", err))
		return nil, err
	}
	return fromMonthKeys(raw), nil
}

// Scan streams matching entries straight from the store.
func (a *Aggregator) Scan(ctx context.Context, q ledger.Query, fn func(ledger.Entry) error) error {
	if q.Predicate.Empty() {
		return nil
	}
	if !q.Period.Valid() {
		return ledger.ErrInvalidPeriod
	}
	if err := a.store.Scan(ctx, q, fn); err != nil {
		a.logger.Error("scan failed", slog.String("period", q.Period.String()), slog.Any("error", err))
		return err
	}
	return nil
}

// Counterparties resolves protocol annotations in one batch.
func (a *Aggregator) Counterparties(ctx context.Context, protocols []string, pred ledger.Predicate, mode ledger.ExclusionMode) (map[string]string, error) {
	out, err := a.store.Counterparties(ctx, protocols, pred, mode)
	if err != nil {
		a.logger.Error("counterparty lookup failed", slog.Int("protocols", len(protocols)), slog.Any("error", err))
		return nil, err
	}
	return out, nil
}

// Invalidate bumps the cache version after the ledger changed.
func (a *Aggregator) Invalidate(ctx context.Context) error {
	return a.cache.Bump(ctx)
}

func fetch[T any](ctx context.Context, a *Aggregator, kind, signature string, load func(context.Context) (T, error)) (T, error) {
	key := kind + ":" + digest(signature)
	m := memoFrom(ctx)
	if v, ok := m.get(key); ok {
		return v.(T), nil
	}
	v, err := singleflightDo(ctx, &a.group, key, func(ctx context.Context) (interface{}, error) {
		if a.cache == nil {
			return load(ctx)
		}
		cacheKey, err := a.cache.BuildKey(ctx, "ledger", key)
		if err != nil {
			a.logger.Warn("cache key unavailable", slog.Any("error", err))
			return load(ctx)
		}
		var out T
		err = a.cache.FetchJSON(ctx, cacheKey, &out, func(ctx context.Context) (interface{}, error) {
			return load(ctx)
		})
		return out, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out := v.(T)
	m.put(key, out)
	return out, nil
}

func digest(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:16])
}

func monthKeys[V any](in map[ledger.Month]V) map[string]V {
	out := make(map[string]V, len(in))
	for m, v := range in {
		out[m.Key()] = v
	}
	return out
}

func fromMonthKeys[V any](in map[string]V) map[ledger.Month]V {
	out := make(map[ledger.Month]V, len(in))
	for key, v := range in {
		if len(key) != 7 {
			continue
		}
		year, err := strconv.Atoi(key[:4])
		if err != nil {
			continue
		}
		month, err := strconv.Atoi(key[5:])
		if err != nil {
			continue
		}
		out[ledger.Month{Year: year, Month: time.Month(month)}] = v
	}
	return out
}
