package accounts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Repository loads mappings from account_category_patterns and account_cost_natures.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const categoryPatternsSQL = `SELECT category, pattern, is_prefix
FROM account_category_patterns
WHERE tenant_id = $1 AND active
ORDER BY category, priority DESC, pattern`

const costNaturesSQL = `SELECT nature, pattern, is_prefix
FROM account_cost_natures
WHERE tenant_id = $1 AND active
ORDER BY nature, priority DESC, pattern`

// Load implements Loader.
func (r *Repository) Load(ctx context.Context, tenant Tenant) (Mapping, error) {
	m := Mapping{
		Categories: make(map[Category]ledger.Predicate),
		Natures:    make(map[Nature]ledger.Predicate),
	}

	rows, err := r.pool.Query(ctx, categoryPatternsSQL, int64(tenant))
	if err != nil {
		return Mapping{}, fmt.Errorf("accounts: query categories: %w", err)
	}
	for rows.Next() {
		var (
			category, pattern string
			prefix            bool
		)
		if err := rows.Scan(&category, &pattern, &prefix); err != nil {
			rows.Close()
			return Mapping{}, fmt.Errorf("accounts: scan category: %w", err)
		}
		c := Category(category)
		m.Categories[c] = append(m.Categories[c], ledger.Match{Pattern: pattern, Prefix: prefix})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Mapping{}, fmt.Errorf("accounts: categories: %w", err)
	}

	rows, err = r.pool.Query(ctx, costNaturesSQL, int64(tenant))
	if err != nil {
		return Mapping{}, fmt.Errorf("accounts: query natures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			nature, pattern string
			prefix          bool
		)
		if err := rows.Scan(&nature, &pattern, &prefix); err != nil {
			return Mapping{}, fmt.Errorf("accounts: scan nature: %w", err)
		}
		n := Nature(nature)
		m.Natures[n] = append(m.Natures[n], ledger.Match{Pattern: pattern, Prefix: prefix})
	}
	if err := rows.Err(); err != nil {
		return Mapping{}, fmt.Errorf("accounts: natures: %w", err)
	}
	return m, nil
}
