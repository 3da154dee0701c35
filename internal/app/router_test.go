package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-analytics/internal/observability"
	_ "github.com/odyssey-erp/ledger-analytics/testing"
)

func TestInTestMode(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestRouterHealthAndReadiness(t *testing.T) {
	cfg := &Config{AppEnv: "development", AppRateLimit: 100}
	router := NewRouter(RouterParams{
		Config:  cfg,
		Metrics: observability.NewMetrics(),
		Readiness: map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.JSONEq(t, `{"postgres":"ok","redis":"connection refused"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "ledger_http_requests_total")
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("IMPORT_TOKEN_HASH", "")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("IMPORT_TOKEN_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("TAX_RATE", "0.3")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 0.3, cfg.TaxRate)
	require.Equal(t, "APERTURA", cfg.OpeningKeyword)

	t.Setenv("TAX_RATE", "1.5")
	_, err = LoadConfig()
	require.Error(t, err)
}
