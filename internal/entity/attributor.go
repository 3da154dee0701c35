package entity

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Side selects which balance-sheet account carries the counterparty annotation.
type Side int

const (
	// Customer resolves names from customer receivable rows.
	Customer Side = iota
	// Supplier resolves names from supplier payable rows.
	Supplier
)

func (s Side) String() string {
	if s == Supplier {
		return "supplier"
	}
	return "customer"
}

func (s Side) category() accounts.Category {
	if s == Supplier {
		return accounts.SupplierPayables
	}
	return accounts.CustomerReceivables
}

// Attributor resolves protocols to counterparties.
type Attributor struct {
	agg      *analytics.Aggregator
	accounts accounts.Source
	tenant   accounts.Tenant
	logger   *slog.Logger
}

// NewAttributor constructs an Attributor.
func NewAttributor(agg *analytics.Aggregator, src accounts.Source, tenant accounts.Tenant, logger *slog.Logger) *Attributor {
	if logger == nil {
		logger = agg.Logger()
	}
	return &Attributor{agg: agg, accounts: src, tenant: tenant, logger: logger}
}

// Resolve maps each protocol to the counterparty found on a receivable (or payable)
// row of the same document. Protocols without one are absent from the result.
func (a *Attributor) Resolve(ctx context.Context, protocols []string, side Side) (map[string]Name, error) {
	if len(protocols) == 0 {
		return map[string]Name{}, nil
	}
	pred, err := a.accounts.PatternsForCategory(ctx, a.tenant, side.category())
	if err != nil {
		a.logger.Error("counterparty predicate unavailable", slog.String("side", side.String()), slog.Any("error", err))
		return nil, err
	}
	if pred.Empty() {
		a.logger.Warn("no counterparty accounts mapped", slog.String("side", side.String()))
		return map[string]Name{}, nil
	}
	raw, err := a.agg.Counterparties(ctx, protocols, pred, ledger.ExcludeBoth)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Name, len(raw))
	for protocol, annotation := range raw {
		out[protocol] = Normalize(annotation)
	}
	return out, nil
}
