package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-analytics/internal/cohort"
	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	jobmetrics "github.com/odyssey-erp/ledger-analytics/internal/jobs"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
	"github.com/odyssey-erp/ledger-analytics/internal/metrics"
)

type recorder struct {
	periods     []string
	trendYears  []int
	growthEnd   time.Time
	seasonYear  int
	customers   int
	dashErr     error
	growthError string
}

func (r *recorder) Dashboard(_ context.Context, p ledger.Period) (metrics.Dashboard, error) {
	r.periods = append(r.periods, p.String())
	return metrics.Dashboard{Period: p.String()}, r.dashErr
}

func (r *recorder) MonthlyTrend(_ context.Context, year int) []metrics.MonthTrend {
	r.trendYears = append(r.trendYears, year)
	return make([]metrics.MonthTrend, 12)
}

func (r *recorder) Indices(_ context.Context, end time.Time, months int) growth.Report {
	r.growthEnd = end
	return growth.Report{Error: r.growthError}
}

func (r *recorder) Seasonality(_ context.Context, year, prior int) growth.SeasonalityReport {
	r.seasonYear = year
	return growth.SeasonalityReport{Year: year, PriorYear: prior}
}

func (r *recorder) Customers(context.Context, ledger.Period, *ledger.Period, int) cohort.CustomerReport {
	r.customers++
	return cohort.CustomerReport{}
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func newWarmup(rec *recorder) *WarmupJob {
	job := NewWarmupJob(rec, rec, rec, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2024, 5, 20, 3, 0, 0, 0, time.UTC) }
	return job
}

func TestWarmupCurrentYear(t *testing.T) {
	rec := &recorder{}
	task, err := NewWarmupTask(WarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, newWarmup(rec).Handle(context.Background(), task))

	require.Equal(t, []string{"2024-01-01..2024-12-31", "2024-05-01..2024-05-31"}, rec.periods)
	require.Equal(t, []int{2024}, rec.trendYears)
	require.Equal(t, 1, rec.customers)
	require.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), rec.growthEnd)
	require.Equal(t, 2024, rec.seasonYear)
}

func TestWarmupPastYear(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, newWarmup(rec).Run(context.Background(), WarmupPayload{Year: 2022}))
	require.Equal(t, []string{"2022-01-01..2022-12-31"}, rec.periods)
	require.Equal(t, time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC), rec.growthEnd)
}

func TestWarmupFailures(t *testing.T) {
	rec := &recorder{dashErr: errors.New("boom")}
	require.Error(t, newWarmup(rec).Run(context.Background(), WarmupPayload{}))

	rec = &recorder{growthError: "store down"}
	require.ErrorContains(t, newWarmup(rec).Run(context.Background(), WarmupPayload{}), "store down")

	bad := asynq.NewTask(TaskAnalyticsWarmup, []byte("{"))
	err := newWarmup(&recorder{}).Handle(context.Background(), bad)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLedgerImportedInvalidatesAndWarms(t *testing.T) {
	rec := &recorder{}
	inv := &countingInvalidator{}
	job := &LedgerImportedJob{Invalidator: inv, Warmup: newWarmup(rec)}

	task, err := NewLedgerImportedTask(LedgerImportedPayload{BatchID: "b-1", Rows: 3, Source: "cli"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, inv.calls)
	require.Len(t, rec.periods, 2)

	_, err = NewLedgerImportedTask(LedgerImportedPayload{})
	require.Error(t, err)
}

func TestTaskPayloads(t *testing.T) {
	task, err := NewWarmupTask(WarmupPayload{Year: 2023, Months: 6})
	require.NoError(t, err)
	require.Equal(t, TaskAnalyticsWarmup, task.Type())
	var payload WarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, WarmupPayload{Year: 2023, Months: 6}, payload)

	_, err = NewWarmupTask(WarmupPayload{Months: -1})
	require.Error(t, err)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"failed_today":0,"processed_today":0}`, rr.Body.String())
}
