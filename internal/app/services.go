package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/cohort"
	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger/pgstore"
	"github.com/odyssey-erp/ledger-analytics/internal/metrics"
	"github.com/odyssey-erp/ledger-analytics/internal/settings"
)

// Services bundles the analytics components shared by the server, the worker and the CLI.
type Services struct {
	Tenant     accounts.Tenant
	Store      *pgstore.Store
	Cache      *analytics.Cache
	Aggregator *analytics.Aggregator
	Accounts   *accounts.Registry
	Company    settings.Source
	Metrics    *metrics.Calculator
	Cohorts    *cohort.Analyzer
	Growth     *growth.Analyzer
}

// NewServices wires the calculators over PostgreSQL and the Redis aggregation cache.
// observer may be nil.
func NewServices(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, client *redis.Client, observer analytics.CacheObserver) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	tenant := accounts.Tenant(cfg.Tenant)

	var cache *analytics.Cache
	if client != nil {
		cache = analytics.NewCache(client, cfg.CacheTTL).WithLogger(logger)
		if observer != nil {
			cache = cache.WithObserver(observer)
		}
	}

	store := pgstore.New(pool)
	agg := analytics.NewAggregator(store, cache, logger)
	registry := accounts.NewRegistry(accounts.NewRepository(pool),
		accounts.WithStrict(cfg.StrictCategories),
		accounts.WithTTL(cfg.CategoryTTL),
		accounts.WithLogger(logger),
	)
	company := settings.NewRepository(pool, CompanyDefaults(cfg), logger)

	return &Services{
		Tenant:     tenant,
		Store:      store,
		Cache:      cache,
		Aggregator: agg,
		Accounts:   registry,
		Company:    company,
		Metrics: metrics.NewCalculator(agg, registry, company, metrics.Options{
			Tenant:  tenant,
			TaxRate: cfg.TaxRate,
			Logger:  logger,
		}),
		Cohorts: cohort.NewAnalyzer(agg, registry, tenant, logger),
		Growth:  growth.NewAnalyzer(agg, registry, tenant, logger),
	}
}

// CompanyDefaults maps the environment onto the company settings used when
// system_settings holds no value.
func CompanyDefaults(cfg *Config) settings.Company {
	return settings.Company{
		City:           cfg.CompanyCity,
		Country:        cfg.CompanyCountry,
		ShareCapital:   cfg.ShareCapital,
		OpeningKeyword: cfg.OpeningKeyword,
		ClosingKeyword: cfg.ClosingKeyword,
	}
}
