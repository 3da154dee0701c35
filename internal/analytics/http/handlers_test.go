package analytichttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics/export"
	"github.com/odyssey-erp/ledger-analytics/internal/cohort"
	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
	"github.com/odyssey-erp/ledger-analytics/internal/metrics"
	"github.com/odyssey-erp/ledger-analytics/internal/settings"
)

const importToken = "s3cret-token"

type stubPDF struct {
	last export.DashboardPayload
}

func (s *stubPDF) RenderDashboard(ctx context.Context, payload export.DashboardPayload) ([]byte, error) {
	s.last = payload
	return []byte("%PDF-1.4\n"), nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

type countingWarmer struct{ calls int }

func (c *countingWarmer) EnqueueWarmup(context.Context) error {
	c.calls++
	return nil
}

type fixture struct {
	router      http.Handler
	store       *ledger.MemoryStore
	pdf         *stubPDF
	invalidator *countingInvalidator
	warmer      *countingWarmer
}

func newFixture(t *testing.T, withPDF bool) fixture {
	t.Helper()
	registry, err := accounts.NewStatic(accounts.Mapping{
		Categories: map[accounts.Category]ledger.Predicate{
			accounts.SalesRevenue:        {ledger.PrefixOf("701")},
			accounts.ServiceRevenue:      {ledger.PrefixOf("705")},
			accounts.DirectCosts:         {ledger.PrefixOf("601")},
			accounts.CustomerReceivables: {ledger.PrefixOf("15")},
			accounts.SupplierPayables:    {ledger.PrefixOf("26")},
		},
	})
	require.NoError(t, err)

	store := ledger.NewMemoryStore(
		ledger.Entry{Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Account: "7051", Protocol: "P1", Credit: 1000},
		ledger.Entry{Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Account: "1500", Protocol: "P1", Annotation: "ACME Srl", Debit: 1000},
		ledger.Entry{Date: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), Account: "6010", Protocol: "F1", Debit: 400},
		ledger.Entry{Date: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), Account: "2600", Protocol: "F1", Annotation: "Alfa Forniture", Credit: 400},
	)
	agg := analytics.NewAggregator(store, nil, nil)
	company := settings.Static{City: "Bologna", Country: "Italia"}

	hash, err := bcrypt.GenerateFromPassword([]byte(importToken), bcrypt.MinCost)
	require.NoError(t, err)

	f := fixture{store: store, invalidator: &countingInvalidator{}, warmer: &countingWarmer{}}
	deps := Dependencies{
		Metrics:         metrics.NewCalculator(agg, registry, company, metrics.Options{}),
		Cohorts:         cohort.NewAnalyzer(agg, registry, accounts.DefaultTenant, nil),
		Growth:          growth.NewAnalyzer(agg, registry, accounts.DefaultTenant, nil),
		Importer:        store,
		Invalidator:     f.invalidator,
		Warmer:          f.warmer,
		Company:         company,
		Tenant:          accounts.DefaultTenant,
		ImportTokenHash: string(hash),
	}
	if withPDF {
		f.pdf = &stubPDF{}
		deps.PDF = f.pdf
	}
	h := NewHandler(nil, deps)
	h.WithNow(func() time.Time { return time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC) })
	r := chi.NewRouter()
	h.MountRoutes(r)
	f.router = r
	return f
}

func (f fixture) do(t *testing.T, method, target, contentType, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	return f.do(t, http.MethodGet, target, "", "", "")
}

func TestDashboardJSON(t *testing.T) {
	f := newFixture(t, false)
	rr := f.get(t, "/api/v1/metrics?from=2024-01-01&to=2024-12-31")
	require.Equal(t, http.StatusOK, rr.Code)

	var d metrics.Dashboard
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	require.Equal(t, 1000.0, d.Revenue)
	require.Equal(t, "Bologna, Italia", d.Territory)
	require.Equal(t, "2024-01-01..2024-12-31", d.Period)
}

func TestDashboardDefaultsToCurrentYear(t *testing.T) {
	f := newFixture(t, false)
	rr := f.get(t, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"period":"2024-01-01..2024-12-31"`)
}

func TestDashboardRejectsInvalidPeriods(t *testing.T) {
	f := newFixture(t, false)
	for _, target := range []string{
		"/api/v1/metrics?from=2024-12-31&to=2024-01-01",
		"/api/v1/metrics?from=2024-01-01",
		"/api/v1/metrics?from=2024-13-01&to=2024-12-31",
	} {
		rr := f.get(t, target)
		require.Equal(t, http.StatusBadRequest, rr.Code, target)
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	}
}

func TestDashboardCSV(t *testing.T) {
	f := newFixture(t, false)
	rr := f.get(t, "/api/v1/metrics?from=2024-01-01&to=2024-12-31&format=csv")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), "Revenue,1000.00")
}

func TestDashboardPDF(t *testing.T) {
	disabled := newFixture(t, false)
	rr := disabled.get(t, "/api/v1/metrics?format=pdf")
	require.Equal(t, http.StatusNotFound, rr.Code)

	f := newFixture(t, true)
	rr = f.get(t, "/api/v1/metrics?from=2024-01-01&to=2024-12-31&format=pdf")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.Len(t, f.pdf.last.Trend, 12)
	require.NotEmpty(t, f.pdf.last.TrendSVG)
	require.Len(t, f.pdf.last.Customers, 1)
	require.Equal(t, "ACME Srl", f.pdf.last.Customers[0].Name)
}

func TestTrendFormats(t *testing.T) {
	f := newFixture(t, false)
	rr := f.get(t, "/api/v1/trend/2024")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Year   int                  `json:"year"`
		Months []metrics.MonthTrend `json:"months"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Months, 12)
	require.Equal(t, 1000.0, body.Months[2].Revenue)

	rr = f.get(t, "/api/v1/trend/2024?format=svg")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rr.Body.String(), "<svg"))

	rr = f.get(t, "/api/v1/trend/abc")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCustomersAndSuppliers(t *testing.T) {
	f := newFixture(t, false)
	rr := f.get(t, "/api/v1/customers?from=2024-01-01&to=2024-12-31&limit=5")
	require.Equal(t, http.StatusOK, rr.Code)
	var customers cohort.CustomerReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &customers))
	require.Len(t, customers.Customers, 1)
	require.Equal(t, 1000.0, customers.Total)

	rr = f.get(t, "/api/v1/customers?limit=0")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.get(t, "/api/v1/suppliers?from=2024-01-01&to=2024-12-31&format=csv")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Alfa Forniture,400.00")
}

func TestRetentionGranularity(t *testing.T) {
	f := newFixture(t, false)
	rr := f.get(t, "/api/v1/retention/2024")
	require.Equal(t, http.StatusOK, rr.Code)
	var quarterly cohort.QuarterlyReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &quarterly))
	require.Len(t, quarterly.Quarters, 4)

	rr = f.get(t, "/api/v1/retention/2024?granularity=month&from_month=2&to_month=4")
	require.Equal(t, http.StatusOK, rr.Code)
	var monthly cohort.MonthlyReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &monthly))
	require.Equal(t, 3, monthly.Analysed)

	require.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/retention/2024?granularity=week").Code)
	require.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/retention/2024?granularity=month&from_month=5&to_month=4").Code)
}

func TestGrowthAndSeasonality(t *testing.T) {
	f := newFixture(t, false)
	rr := f.get(t, "/api/v1/growth?to=2024-06-30&months=6")
	require.Equal(t, http.StatusOK, rr.Code)
	var report growth.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Equal(t, "2023-12-30", report.Start)
	require.NotEmpty(t, report.Months)

	require.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/growth?to=30/06/2024").Code)
	require.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/growth?months=0").Code)

	rr = f.get(t, "/api/v1/seasonality/2024?format=svg")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Seasonality 2024")
}

func TestImportRequiresToken(t *testing.T) {
	f := newFixture(t, false)
	body := `{"entries":[{"date":"2024-05-01","account":"7051","credit":10}]}`
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/v1/ledger/entries", "application/json", "", body).Code)
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/v1/ledger/entries", "application/json", "wrong", body).Code)
	require.Equal(t, 4, f.store.Len())
}

func TestImportJSON(t *testing.T) {
	f := newFixture(t, false)
	body := `{"entries":[
		{"date":"2024-01-01","account":"1800","debit":50,"description":"Saldo di APERTURA"},
		{"date":"2024-05-01","account":"7051","credit":10,"protocol":"P9"}
	]}`
	rr := f.do(t, http.MethodPost, "/api/v1/ledger/entries", "application/json", importToken, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var result ledger.ImportResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.EqualValues(t, 2, result.Rows)
	require.Equal(t, 1, result.Openings)
	require.Equal(t, 6, f.store.Len())
	require.Equal(t, 1, f.invalidator.calls)
	require.Equal(t, 1, f.warmer.calls)
}

func TestImportValidation(t *testing.T) {
	f := newFixture(t, false)
	for _, body := range []string{
		`{"entries":[]}`,
		`{"entries":[{"date":"2024-05-01","credit":10}]}`,
		`{"entries":[{"date":"01/05/2024","account":"7051"}]}`,
		`{"entries":[{"date":"2024-05-01","account":"7051","amount":3}]}`,
		`not json`,
	} {
		rr := f.do(t, http.MethodPost, "/api/v1/ledger/entries", "application/json", importToken, body)
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	require.Equal(t, 4, f.store.Len())
	require.Zero(t, f.invalidator.calls)
}

func TestImportCSV(t *testing.T) {
	f := newFixture(t, false)
	body := "date,debit,credit,account,protocol,annotation\n2024-07-01,0,250,7011,P20,Beta Spa\n"
	rr := f.do(t, http.MethodPost, "/api/v1/ledger/entries", "text/csv", importToken, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, 5, f.store.Len())
}
