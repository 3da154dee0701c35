package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/cohort"
	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	jobmetrics "github.com/odyssey-erp/ledger-analytics/internal/jobs"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
	"github.com/odyssey-erp/ledger-analytics/internal/metrics"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MetricsSource is the part of the metrics calculator refreshed by the warm-up.
type MetricsSource interface {
	Dashboard(ctx context.Context, p ledger.Period) (metrics.Dashboard, error)
	MonthlyTrend(ctx context.Context, year int) []metrics.MonthTrend
}

// GrowthSource is the part of the growth analyzer refreshed by the warm-up.
type GrowthSource interface {
	Indices(ctx context.Context, end time.Time, months int) growth.Report
	Seasonality(ctx context.Context, year, prior int) growth.SeasonalityReport
}

// CustomerSource is the part of the cohort analyzer refreshed by the warm-up.
type CustomerSource interface {
	Customers(ctx context.Context, p ledger.Period, compare *ledger.Period, limit int) cohort.CustomerReport
}

// Invalidator drops cached aggregates.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// WarmupJob recomputes the reports most requested for the current periods so the
// aggregation cache is populated before users ask for them.
type WarmupJob struct {
	Metrics   MetricsSource
	Growth    GrowthSource
	Customers CustomerSource
	Logger    *slog.Logger
	Jobs      *jobmetrics.Metrics
	Timeout   time.Duration
	clock     func() time.Time
}

// NewWarmupJob wires dependencies for the warm-up handler.
func NewWarmupJob(m MetricsSource, g GrowthSource, c CustomerSource, logger *slog.Logger, jm *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{
		Metrics:   m,
		Growth:    g,
		Customers: c,
		Logger:    logger,
		Jobs:      jm,
		Timeout:   2 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes warm-up tasks.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("analytics warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	return j.Run(ctx, payload)
}

// Run refreshes the reports selected by payload.
func (j *WarmupJob) Run(ctx context.Context, payload WarmupPayload) (resultErr error) {
	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	year := payload.Year
	if year == 0 {
		year = now.Year()
	}
	logger := j.logger().With(slog.Int("year", year))
	logger.Info("starting analytics warmup")

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(analytics.WithMemo(ctx), timeout)
	defer cancel()

	yearPeriod := ledger.YearPeriod(year)
	periods := []ledger.Period{yearPeriod}
	if year == now.Year() {
		periods = append(periods, ledger.MonthPeriod(year, now.Month()))
	}
	for _, p := range periods {
		if j.Metrics == nil {
			break
		}
		if _, err := j.Metrics.Dashboard(runCtx, p); err != nil {
			logger.Error("warm dashboard", slog.String("period", p.String()), slog.Any("error", err))
			return err
		}
	}
	if j.Metrics != nil && j.Metrics.MonthlyTrend(runCtx, year) == nil {
		return errors.New("analytics warmup: monthly trend unavailable")
	}
	if j.Customers != nil {
		if report := j.Customers.Customers(runCtx, yearPeriod, nil, cohort.DefaultLimit); report.Error != "" {
			return fmt.Errorf("analytics warmup: customers: %s", report.Error)
		}
	}
	if j.Growth != nil {
		end := yearPeriod.End
		if end.After(now) {
			end = ledger.Day(now)
		}
		if report := j.Growth.Indices(runCtx, end, payload.Months); report.Error != "" {
			return fmt.Errorf("analytics warmup: growth: %s", report.Error)
		}
		if report := j.Growth.Seasonality(runCtx, year, year-1); report.Error != "" {
			return fmt.Errorf("analytics warmup: seasonality: %s", report.Error)
		}
	}

	logger.Info("completed analytics warmup", slog.Int("periods", len(periods)), slog.Duration("duration", time.Since(now)))
	return nil
}

func (j *WarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *WarmupJob) metrics() *jobmetrics.Metrics {
	if j.Jobs != nil {
		return j.Jobs
	}
	return defaultJobMetrics
}

func (j *WarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// LedgerImportedJob invalidates the aggregation cache after an import done outside the
// API, then warms the current reports again.
type LedgerImportedJob struct {
	Invalidator Invalidator
	Warmup      *WarmupJob
	Logger      *slog.Logger
	Jobs        *jobmetrics.Metrics
}

// Handle processes ledger-imported tasks.
func (j *LedgerImportedJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Invalidator == nil {
		return errors.New("ledger imported: handler not configured")
	}
	var payload LedgerImportedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("ledger imported: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	jm := j.Jobs
	if jm == nil {
		jm = defaultJobMetrics
	}
	tracker := jm.Track(TaskLedgerImported)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	logger = logger.With(slog.String("job", TaskLedgerImported), slog.String("batch_id", payload.BatchID))
	if err := j.Invalidator.Invalidate(ctx); err != nil {
		logger.Error("invalidate cache", slog.Any("error", err))
		return err
	}
	jm.AddImported(payload.Source, int(payload.Rows))
	logger.Info("cache invalidated after import", slog.Int64("rows", payload.Rows))
	if j.Warmup != nil {
		return j.Warmup.Run(ctx, WarmupPayload{})
	}
	return nil
}
