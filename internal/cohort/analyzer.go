// Package cohort aggregates revenue and cost by counterparty, ranks counterparties into
// ABC tiers, labels their period-over-period trend and measures customer retention.
package cohort

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/entity"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// DefaultLimit bounds the customer list when the caller gives none.
const DefaultLimit = 20

// Analyzer runs cohort analyses for one tenant.
type Analyzer struct {
	agg        *analytics.Aggregator
	accounts   accounts.Source
	attributor *entity.Attributor
	tenant     accounts.Tenant
	logger     *slog.Logger
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(agg *analytics.Aggregator, src accounts.Source, tenant accounts.Tenant, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = agg.Logger()
	}
	logger = logger.With(slog.String("component", "cohort"))
	return &Analyzer{
		agg:        agg,
		accounts:   src,
		attributor: entity.NewAttributor(agg, src, tenant, logger),
		tenant:     tenant,
		logger:     logger,
	}
}

// EntityAggregate is the net movement of one counterparty over a period.
type EntityAggregate struct {
	Key             string    `json:"key"`
	Name            string    `json:"name"`
	Gross           float64   `json:"gross"`
	CreditNotes     float64   `json:"credit_notes"`
	Net             float64   `json:"net"`
	InvoiceCount    int       `json:"invoice_count"`
	CreditNoteCount int       `json:"credit_note_count"`
	FirstDate       time.Time `json:"first_date"`
	LastDate        time.Time `json:"last_date"`
	Previous        float64   `json:"previous"`
	Variation       float64   `json:"variation"`
	Trend           Trend     `json:"trend"`
	Tier            Tier      `json:"tier,omitempty"`
	Share           float64   `json:"share,omitempty"`
	CumulativeShare float64   `json:"cumulative_share,omitempty"`
}

// flow describes which rows and which counterparty side feed an aggregation.
type flow struct {
	name       string
	categories []accounts.Category
	side       entity.Side
}

var (
	customerFlow = flow{name: "customers", categories: accounts.CustomerRevenueCategories, side: entity.Customer}
	supplierFlow = flow{name: "suppliers", categories: accounts.SupplierCostCategories, side: entity.Supplier}
)

// classify reports whether a row is an invoice (true) or a credit note (false) for the
// flow, and its positive amount. Rows that are neither return ok=false.
func (f flow) classify(e ledger.Entry) (amount float64, invoice, ok bool) {
	in, out := e.Credit, e.Debit
	if f.side == entity.Supplier {
		in, out = e.Debit, e.Credit
	}
	switch {
	case in > 0:
		return in, true, true
	case in < 0:
		return -in, false, true
	case out > 0:
		return out, false, true
	default:
		return 0, false, false
	}
}

// aggregate scans the flow rows of p, attributes them to counterparties by display name
// and keeps the counterparties with a positive net amount.
func (a *Analyzer) aggregate(ctx context.Context, f flow, p ledger.Period) (map[string]*EntityAggregate, error) {
	pred, err := accounts.Union(ctx, a.accounts, a.tenant, f.categories...)
	if err != nil {
		a.logger.Error("category predicate unavailable", slog.String("flow", f.name), slog.Any("error", err))
		return nil, err
	}
	var rows []ledger.Entry
	err = a.agg.Scan(ctx, ledger.Query{
		Predicate:    pred,
		Period:       p,
		Side:         ledger.SideEither,
		WithProtocol: true,
		Exclusion:    ledger.ExcludeBoth,
	}, func(e ledger.Entry) error {
		rows = append(rows, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]*EntityAggregate{}, nil
	}

	protocols := distinctProtocols(rows)
	names, err := a.attributor.Resolve(ctx, protocols, f.side)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*EntityAggregate)
	unresolved := make(map[string]struct{})
	for _, e := range rows {
		name, found := names[e.Protocol]
		if !found {
			unresolved[e.Protocol] = struct{}{}
			continue
		}
		amount, invoice, ok := f.classify(e)
		if !ok {
			continue
		}
		agg := byName[name.Display]
		if agg == nil {
			agg = &EntityAggregate{Key: name.Key, Name: name.Display, FirstDate: e.Date, LastDate: e.Date}
			byName[name.Display] = agg
		}
		if invoice {
			agg.Gross += amount
			agg.InvoiceCount++
		} else {
			agg.CreditNotes += amount
			agg.CreditNoteCount++
		}
		if e.Date.Before(agg.FirstDate) {
			agg.FirstDate = e.Date
		}
		if e.Date.After(agg.LastDate) {
			agg.LastDate = e.Date
		}
	}
	if len(unresolved) > 0 {
		a.logger.Info("protocols without counterparty skipped",
			slog.String("flow", f.name), slog.String("period", p.String()), slog.Int("protocols", len(unresolved)))
	}

	for name, agg := range byName {
		agg.Net = agg.Gross - agg.CreditNotes
		if agg.Net <= 0 {
			delete(byName, name)
		}
	}
	return byName, nil
}

// attachTrends attaches the previous amount, variation and trend of every current entity.
func attachTrends(current, previous map[string]*EntityAggregate) {
	for name, agg := range current {
		var prior float64
		if p, ok := previous[name]; ok {
			prior = p.Net
		}
		agg.Previous = ledger.Round2(prior)
		agg.Trend, agg.Variation = TrendLabel(agg.Net, prior)
	}
}

// ranked returns the entities sorted by descending net amount, name breaking ties.
func ranked(in map[string]*EntityAggregate) []EntityAggregate {
	out := make([]EntityAggregate, 0, len(in))
	for _, agg := range in {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Net != out[j].Net {
			return out[i].Net > out[j].Net
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func roundAggregate(e *EntityAggregate) {
	e.Gross = ledger.Round2(e.Gross)
	e.CreditNotes = ledger.Round2(e.CreditNotes)
	e.Net = ledger.Round2(e.Net)
}

func total(in map[string]*EntityAggregate) float64 {
	var sum float64
	for _, agg := range in {
		sum += agg.Net
	}
	return sum
}

func distinctProtocols(rows []ledger.Entry) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, e := range rows {
		if _, ok := seen[e.Protocol]; ok {
			continue
		}
		seen[e.Protocol] = struct{}{}
		out = append(out, e.Protocol)
	}
	return out
}

// comparison resolves the comparison period, defaulting to the preceding one.
func comparison(p ledger.Period, compare *ledger.Period) ledger.Period {
	if compare != nil && compare.Valid() {
		return *compare
	}
	return p.Previous()
}
