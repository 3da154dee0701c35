package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
)

// MountRoutes registers the analytics API under /api/v1.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(gr chi.Router) {
			gr.Use(memo)
			gr.Get("/metrics", h.handleDashboard)
			gr.Get("/metrics/efficiency", h.handleEfficiency)
			gr.Get("/centers/revenue", h.handleRevenueCenters)
			gr.Get("/centers/cost", h.handleCostCenters)
			gr.Get("/trend/{year}", h.handleTrend)
			gr.Get("/customers", h.handleCustomers)
			gr.Get("/suppliers", h.handleSuppliers)
			gr.Get("/retention/{year}", h.handleRetention)
			gr.Get("/growth", h.handleGrowth)
			gr.Get("/seasonality/{year}", h.handleSeasonality)
		})
		api.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Post("/ledger/entries", h.handleImport)
		})
	})
}

// memo shares aggregates across the calculators invoked by one request.
func memo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(analytics.WithMemo(r.Context())))
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
