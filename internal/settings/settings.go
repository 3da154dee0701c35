// Package settings exposes company metadata and ingestion keywords, tenant scoped.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Keys stored in system_settings.
const (
	KeyCity           = "CITTA_AZIENDA"
	KeyCountry        = "NAZIONE_AZIENDA"
	KeyShareCapital   = "CAPITALE_SOCIALE"
	KeyOpeningKeyword = "KEYWORD_SALDO_APERTURA"
	KeyClosingKeyword = "KEYWORD_SALDO_CHIUSURA"
)

// DefaultCountry is reported when no country is configured.
const DefaultCountry = "Italia"

// Company holds per-tenant configuration consumed by the calculators.
type Company struct {
	City           string  `json:"city,omitempty"`
	Country        string  `json:"country"`
	ShareCapital   float64 `json:"share_capital"`
	OpeningKeyword string  `json:"opening_keyword"`
	ClosingKeyword string  `json:"closing_keyword"`
}

// Territory renders "City, Country", or the country alone.
func (c Company) Territory() string {
	country := c.Country
	if strings.TrimSpace(country) == "" {
		country = DefaultCountry
	}
	if city := strings.TrimSpace(c.City); city != "" {
		return city + ", " + country
	}
	return country
}

// Classifier returns the ingestion classifier for the configured keywords.
func (c Company) Classifier() ledger.BalanceClassifier {
	return ledger.NewBalanceClassifier(c.OpeningKeyword, c.ClosingKeyword)
}

// Source resolves company configuration for a tenant.
type Source interface {
	Company(ctx context.Context, tenant accounts.Tenant) (Company, error)
}

// Static returns the same configuration for every tenant.
type Static Company

// Company implements Source.
func (s Static) Company(context.Context, accounts.Tenant) (Company, error) {
	return withDefaults(Company(s)), nil
}

// Repository reads system_settings and falls back to env-provided defaults.
type Repository struct {
	pool     *pgxpool.Pool
	defaults Company
	logger   *slog.Logger
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, defaults Company, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{pool: pool, defaults: defaults, logger: logger}
}

// Company implements Source. Store failures degrade to the defaults.
func (r *Repository) Company(ctx context.Context, tenant accounts.Tenant) (Company, error) {
	c := r.defaults
	rows, err := r.pool.Query(ctx,
		`SELECT key, value FROM system_settings WHERE tenant_id = $1 AND key = ANY($2::text[])`,
		int64(tenant), []string{KeyCity, KeyCountry, KeyShareCapital, KeyOpeningKeyword, KeyClosingKeyword})
	if err != nil {
		r.logger.Warn("settings query failed", slog.Int64("tenant", int64(tenant)), slog.Any("error", err))
		return withDefaults(c), nil
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return withDefaults(c), fmt.Errorf("settings: scan: %w", err)
		}
		apply(&c, key, value)
	}
	if err := rows.Err(); err != nil {
		r.logger.Warn("settings rows failed", slog.Any("error", err))
	}
	return withDefaults(c), nil
}

func apply(c *Company, key, value string) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyCity:
		c.City = value
	case KeyCountry:
		c.Country = value
	case KeyShareCapital:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			c.ShareCapital = v
		}
	case KeyOpeningKeyword:
		c.OpeningKeyword = value
	case KeyClosingKeyword:
		c.ClosingKeyword = value
	}
}

func withDefaults(c Company) Company {
	if strings.TrimSpace(c.Country) == "" {
		c.Country = DefaultCountry
	}
	if strings.TrimSpace(c.OpeningKeyword) == "" {
		c.OpeningKeyword = ledger.DefaultOpeningKeyword
	}
	if strings.TrimSpace(c.ClosingKeyword) == "" {
		c.ClosingKeyword = ledger.DefaultClosingKeyword
	}
	return c
}
