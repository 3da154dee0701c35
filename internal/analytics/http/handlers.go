package analytichttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics/export"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics/svg"
	"github.com/odyssey-erp/ledger-analytics/internal/cohort"
	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	jobmetrics "github.com/odyssey-erp/ledger-analytics/internal/jobs"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
	"github.com/odyssey-erp/ledger-analytics/internal/metrics"
	"github.com/odyssey-erp/ledger-analytics/internal/platform/httpx"
	"github.com/odyssey-erp/ledger-analytics/internal/settings"
)

const (
	requestTimeout  = 30 * time.Second
	maxCustomers    = 500
	maxCSVBodyBytes = 32 << 20
	importSource    = "api"
)

// MetricsService computes the financial metrics of a period.
type MetricsService interface {
	Dashboard(ctx context.Context, p ledger.Period) (metrics.Dashboard, error)
	Efficiency(ctx context.Context, p ledger.Period, compare *ledger.Period, employees int) metrics.Efficiency
	RevenueCenters(ctx context.Context, p ledger.Period) metrics.Centers
	CostCenters(ctx context.Context, p ledger.Period) metrics.Centers
	MonthlyTrend(ctx context.Context, year int) []metrics.MonthTrend
}

// CohortService ranks counterparties and measures retention.
type CohortService interface {
	Customers(ctx context.Context, p ledger.Period, compare *ledger.Period, limit int) cohort.CustomerReport
	Suppliers(ctx context.Context, p ledger.Period, compare *ledger.Period) cohort.SupplierReport
	MonthlyRetention(ctx context.Context, year int, from, to time.Month) cohort.MonthlyReport
	QuarterlyRetention(ctx context.Context, year int) cohort.QuarterlyReport
}

// GrowthService builds growth indices and seasonality profiles.
type GrowthService interface {
	Indices(ctx context.Context, end time.Time, months int) growth.Report
	Seasonality(ctx context.Context, year, prior int) growth.SeasonalityReport
}

// Invalidator drops cached aggregates after the ledger changed.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Warmer schedules a background refresh of the cached reports.
type Warmer interface {
	EnqueueWarmup(ctx context.Context) error
}

// PDFService renders dashboard content to PDF bytes.
type PDFService interface {
	RenderDashboard(ctx context.Context, payload export.DashboardPayload) ([]byte, error)
}

// Dependencies groups the collaborators of the handler. Importer, Warmer and PDF are
// optional; the matching endpoints answer 404 without them.
type Dependencies struct {
	Metrics     MetricsService
	Cohorts     CohortService
	Growth      GrowthService
	Importer    ledger.Importer
	Invalidator Invalidator
	Warmer      Warmer
	PDF         PDFService
	Company     settings.Source
	Tenant      accounts.Tenant
	Jobs        *jobmetrics.Metrics
	// ImportTokenHash is the bcrypt hash of the bearer token accepted by the import endpoint.
	ImportTokenHash string
}

// Handler serves the analytics JSON API.
type Handler struct {
	logger   *slog.Logger
	deps     Dependencies
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, deps Dependencies) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger.With(slog.String("component", "analytics_http")),
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	dashboard, err := h.deps.Metrics.Dashboard(ctx, period)
	if err != nil {
		h.handleServerError(w, "load dashboard", err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		h.writeCSV(w, "dashboard", func(buf *strings.Builder) error { return export.WriteDashboardCSV(buf, dashboard) })
	case "pdf":
		h.writeDashboardPDF(ctx, w, period, dashboard)
	default:
		httpx.JSON(w, http.StatusOK, dashboard)
	}
}

func (h *Handler) writeDashboardPDF(ctx context.Context, w http.ResponseWriter, period ledger.Period, dashboard metrics.Dashboard) {
	if h.deps.PDF == nil {
		httpx.RespondError(w, fmt.Errorf("%w: pdf export disabled", httpx.ErrNotFound))
		return
	}
	payload := export.DashboardPayload{Dashboard: dashboard}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		payload.Trend = h.deps.Metrics.MonthlyTrend(gctx, period.End.Year())
		if len(payload.Trend) == 0 {
			return nil
		}
		chart, err := svg.TrendChart(period.End.Year(), payload.Trend)
		if err != nil {
			return err
		}
		payload.TrendSVG = chart
		return nil
	})
	g.Go(func() error {
		report := h.deps.Cohorts.Customers(gctx, period, nil, 10)
		payload.Customers = report.Customers
		return nil
	})
	if err := g.Wait(); err != nil {
		h.handleServerError(w, "render charts", err)
		return
	}
	pdf, err := h.deps.PDF.RenderDashboard(ctx, payload)
	if err != nil {
		h.handleServerError(w, "render pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"dashboard-%s.pdf\"", period.End.Format(ledger.DateLayout)))
	_, _ = w.Write(pdf)
}

func (h *Handler) handleEfficiency(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	compare, err := parseComparison(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	employees, err := intParam(r, "employees", 0, 0, 1_000_000)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	httpx.JSON(w, http.StatusOK, h.deps.Metrics.Efficiency(ctx, period, compare, employees))
}

func (h *Handler) handleRevenueCenters(w http.ResponseWriter, r *http.Request) {
	h.serveCenters(w, r, h.deps.Metrics.RevenueCenters)
}

func (h *Handler) handleCostCenters(w http.ResponseWriter, r *http.Request) {
	h.serveCenters(w, r, h.deps.Metrics.CostCenters)
}

func (h *Handler) serveCenters(w http.ResponseWriter, r *http.Request, fn func(context.Context, ledger.Period) metrics.Centers) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	httpx.JSON(w, http.StatusOK, fn(ctx, period))
}

func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	months := h.deps.Metrics.MonthlyTrend(ctx, year)
	if months == nil {
		h.handleServerError(w, "load trend", httpx.ErrUnavailable)
		return
	}
	switch r.URL.Query().Get("format") {
	case "csv":
		h.writeCSV(w, fmt.Sprintf("trend-%d", year), func(buf *strings.Builder) error { return export.WriteTrendCSV(buf, months) })
	case "svg":
		h.writeSVG(w, func() ([]byte, error) { return svg.TrendChart(year, months) })
	default:
		httpx.JSON(w, http.StatusOK, struct {
			Year   int                  `json:"year"`
			Months []metrics.MonthTrend `json:"months"`
		}{year, months})
	}
}

func (h *Handler) handleCustomers(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	compare, err := parseComparison(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := intParam(r, "limit", cohort.DefaultLimit, 1, maxCustomers)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report := h.deps.Cohorts.Customers(ctx, period, compare, limit)
	if report.Error != "" {
		h.handleReportError(w, "load customers", report.Error)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		h.writeCSV(w, "customers", func(buf *strings.Builder) error { return export.WriteEntitiesCSV(buf, report.Customers) })
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	compare, err := parseComparison(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report := h.deps.Cohorts.Suppliers(ctx, period, compare)
	if report.Error != "" {
		h.handleReportError(w, "load suppliers", report.Error)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		h.writeCSV(w, "suppliers", func(buf *strings.Builder) error { return export.WriteEntitiesCSV(buf, report.Suppliers) })
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleRetention(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	switch granularity := r.URL.Query().Get("granularity"); granularity {
	case "", "quarter":
		report := h.deps.Cohorts.QuarterlyRetention(ctx, year)
		if report.Error != "" {
			h.handleReportError(w, "load quarterly retention", report.Error)
			return
		}
		httpx.JSON(w, http.StatusOK, report)
	case "month":
		from, err := intParam(r, "from_month", 1, 1, 12)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		to, err := intParam(r, "to_month", 12, 1, 12)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if from > to {
			httpx.RespondError(w, validationError{field: "from_month", reason: "must not exceed to_month"})
			return
		}
		report := h.deps.Cohorts.MonthlyRetention(ctx, year, time.Month(from), time.Month(to))
		if report.Error != "" {
			h.handleReportError(w, "load monthly retention", report.Error)
			return
		}
		httpx.JSON(w, http.StatusOK, report)
	default:
		httpx.RespondError(w, validationError{field: "granularity", reason: "must be month or quarter"})
	}
}

func (h *Handler) handleGrowth(w http.ResponseWriter, r *http.Request) {
	end := ledger.Day(h.now())
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse(ledger.DateLayout, raw)
		if err != nil {
			httpx.RespondError(w, validationError{field: "to", reason: "must be YYYY-MM-DD"})
			return
		}
		end = parsed
	}
	months, err := intParam(r, "months", growth.DefaultWindow, 1, 120)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report := h.deps.Growth.Indices(ctx, end, months)
	if report.Error != "" {
		h.handleReportError(w, "load growth", report.Error)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleSeasonality(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	prior, err := intParam(r, "prior", year-1, 1900, 2100)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report := h.deps.Growth.Seasonality(ctx, year, prior)
	if report.Error != "" {
		h.handleReportError(w, "load seasonality", report.Error)
		return
	}
	if r.URL.Query().Get("format") == "svg" {
		h.writeSVG(w, func() ([]byte, error) { return svg.SeasonalityChart(report) })
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// importRequest is the JSON body of the ledger import endpoint.
type importRequest struct {
	Entries []entryPayload `json:"entries" validate:"required,min=1,max=50000,dive"`
}

type entryPayload struct {
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	Debit        float64 `json:"debit"`
	Credit       float64 `json:"credit"`
	Account      string  `json:"account" validate:"required,max=32"`
	Protocol     string  `json:"protocol" validate:"max=64"`
	Annotation   string  `json:"annotation" validate:"max=512"`
	Description  string  `json:"description" validate:"max=512"`
	Causale      string  `json:"causale" validate:"max=128"`
	Registration string  `json:"registration" validate:"max=64"`
}

func (p entryPayload) entry() ledger.Entry {
	date, _ := time.Parse(ledger.DateLayout, p.Date)
	return ledger.Entry{
		Date:         date,
		Debit:        p.Debit,
		Credit:       p.Credit,
		Account:      strings.TrimSpace(p.Account),
		Protocol:     strings.TrimSpace(p.Protocol),
		Annotation:   p.Annotation,
		Description:  p.Description,
		Causale:      p.Causale,
		Registration: strings.TrimSpace(p.Registration),
	}
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if h.deps.Importer == nil {
		httpx.RespondError(w, fmt.Errorf("%w: import disabled", httpx.ErrNotFound))
		return
	}
	if err := h.authorizeImport(r); err != nil {
		httpx.RespondError(w, err)
		return
	}

	entries, err := h.decodeEntries(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	company, err := h.deps.Company.Company(ctx, h.deps.Tenant)
	if err != nil {
		h.handleServerError(w, "load company settings", err)
		return
	}
	result, err := h.deps.Importer.Import(ctx, company.Classifier(), entries)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidEntry) {
			httpx.RespondError(w, err)
			return
		}
		h.handleServerError(w, "import entries", err)
		return
	}
	h.deps.Jobs.AddImported(importSource, int(result.Rows))
	h.logger.Info("ledger batch imported",
		slog.String("batch_id", result.BatchID.String()),
		slog.Int64("rows", result.Rows),
		slog.Int("openings", result.Openings),
		slog.Int("closings", result.Closings),
	)

	if h.deps.Invalidator != nil {
		if err := h.deps.Invalidator.Invalidate(ctx); err != nil {
			h.logError("invalidate cache", err)
		}
	}
	if h.deps.Warmer != nil {
		if err := h.deps.Warmer.EnqueueWarmup(ctx); err != nil {
			h.logError("enqueue warmup", err)
		}
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) authorizeImport(r *http.Request) error {
	if h.deps.ImportTokenHash == "" {
		return fmt.Errorf("%w: import token not configured", httpx.ErrUnauthorized)
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: bearer token required", httpx.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.deps.ImportTokenHash), []byte(strings.TrimSpace(token))); err != nil {
		return fmt.Errorf("%w: invalid token", httpx.ErrUnauthorized)
	}
	return nil
}

func (h *Handler) decodeEntries(w http.ResponseWriter, r *http.Request) ([]ledger.Entry, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		entries, err := ledger.ReadCSV(http.MaxBytesReader(w, r.Body, maxCSVBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, httpx.ErrTooLarge
			}
			return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
		}
		if len(entries) == 0 {
			return nil, validationError{field: "entries", reason: "no rows"}
		}
		return entries, nil
	}

	var req importRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, 0, len(req.Entries))
	for _, p := range req.Entries {
		entries = append(entries, p.entry())
	}
	return entries, nil
}

// parsePeriod reads from/to, defaulting to the current calendar year.
func (h *Handler) parsePeriod(r *http.Request) (ledger.Period, error) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" && to == "" {
		return ledger.YearPeriod(h.now().Year()), nil
	}
	if from == "" || to == "" {
		return ledger.Period{}, validationError{field: "from", reason: "from and to must be given together"}
	}
	return ledger.ParsePeriod(from, to)
}

// parseComparison reads the optional compare_from/compare_to pair.
func parseComparison(r *http.Request) (*ledger.Period, error) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("compare_from")), strings.TrimSpace(q.Get("compare_to"))
	if from == "" && to == "" {
		return nil, nil
	}
	p, err := ledger.ParsePeriod(from, to)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func yearParam(r *http.Request) (int, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 2100 {
		return 0, validationError{field: "year", reason: "must be between 1900 and 2100"}
	}
	return year, nil
}

func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, validationError{field: name, reason: fmt.Sprintf("must be an integer between %d and %d", lo, hi)}
	}
	return v, nil
}

func (h *Handler) writeCSV(w http.ResponseWriter, name string, write func(*strings.Builder) error) {
	var buf strings.Builder
	if err := write(&buf); err != nil {
		h.handleServerError(w, "export csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", name))
	_, _ = w.Write([]byte(buf.String()))
}

func (h *Handler) writeSVG(w http.ResponseWriter, render func() ([]byte, error)) {
	doc, err := render()
	if err != nil {
		h.handleServerError(w, "render chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(doc)
}

func (h *Handler) handleReportError(w http.ResponseWriter, msg, reason string) {
	h.logger.Error(msg, slog.String("error", reason))
	httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrUnavailable, reason))
}

func (h *Handler) handleServerError(w http.ResponseWriter, msg string, err error) {
	h.logError(msg, err)
	httpx.RespondError(w, err)
}

func (h *Handler) logError(msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.Error(msg, slog.Any("error", err))
}

type validationError struct {
	field  string
	reason string
}

func (e validationError) Error() string {
	return fmt.Sprintf("%s %s", e.field, e.reason)
}

func (e validationError) Unwrap() error {
	return httpx.ErrValidation
}
