package entity

import (
	"context"
	"testing"
	"time"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

func TestCleanDisplay(t *testing.T) {
	cases := map[string]string{
		"ACME Forniture - Fattura 12/2024":  "ACME Forniture",
		"Rossi Mario del 03/02/2024 saldo":  "Rossi Mario",
		"Bianchi   Luigi,":                  "Bianchi Luigi",
		"Verdi Impianti #4411":              "Verdi Impianti",
		"Gamma Trasporti n. 77":             "Gamma Trasporti",
		"Delta Service invoice 2024-001":    "Delta Service",
		"  Omega Srl  ":                     "Omega Srl",
		"12/03/2024":                        UnknownEntity,
		"":                                  UnknownEntity,
		"Zeta 01/01/2024":                   "Zeta",
	}
	for in, want := range cases {
		if got := CleanDisplay(in); got != want {
			t.Fatalf("CleanDisplay(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanDisplayFallsBackToLeadingLetters(t *testing.T) {
	if got := CleanDisplay("Fattura Rossi"); got != "Fattura Rossi" {
		t.Fatalf("expected leading alphabetic run, got %q", got)
	}
}

func TestCohortKey(t *testing.T) {
	cases := map[string]string{
		"ACME Forniture Srl, via Roma 1":              "acmeforniture",
		"Studio di Architettura del Centro":           "studioarchitetturace",
		"Caffè Nero S.p.A.":                           "caffenero",
		"Costruzioni Edili Romane Associate Spa":      "costruzioniediliroma",
		"a b c":                                       "abc",
		"Società per Azioni Industriali Riunite Nord": "societaazioniindustr",
	}
	for in, want := range cases {
		if got := CohortKey(in); got != want {
			t.Fatalf("CohortKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeSharesParse(t *testing.T) {
	a := Normalize("ACME Forniture - Fattura 12")
	b := Normalize("ACME Forniture, nr. 44")
	if a.Key != b.Key || a.Key != "acmeforniture" {
		t.Fatalf("expected shared key, got %q and %q", a.Key, b.Key)
	}
	if a.Display != "ACME Forniture" {
		t.Fatalf("unexpected display %q", a.Display)
	}
	if n := Normalize("#12"); !n.Unknown() || n.Key != "" {
		t.Fatalf("expected unknown entity, got %+v", n)
	}
}

func TestAttributorResolve(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := ledger.NewMemoryStore(
		ledger.Entry{Date: d, Account: "7001", Credit: 100, Protocol: "P1"},
		ledger.Entry{Date: d, Account: "1501", Debit: 100, Protocol: "P1", Annotation: "ACME Forniture - Fattura 1"},
		ledger.Entry{Date: d, Account: "7001", Credit: 50, Protocol: "P2"},
		ledger.Entry{Date: d, Account: "2601", Credit: 80, Protocol: "P3", Annotation: "Fornitore Uno"},
	)
	registry, err := accounts.NewStatic(accounts.Mapping{Categories: map[accounts.Category]ledger.Predicate{
		accounts.CustomerReceivables: {ledger.PrefixOf("15")},
		accounts.SupplierPayables:    {ledger.PrefixOf("26")},
	}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	attr := NewAttributor(analytics.NewAggregator(store, nil, nil), registry, accounts.DefaultTenant, nil)

	names, err := attr.Resolve(context.Background(), []string{"P1", "P2", "P3"}, Customer)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(names) != 1 || names["P1"].Display != "ACME Forniture" {
		t.Fatalf("unexpected customer names %+v", names)
	}

	names, err = attr.Resolve(context.Background(), []string{"P3"}, Supplier)
	if err != nil {
		t.Fatalf("resolve suppliers: %v", err)
	}
	if names["P3"].Key != "fornitoreuno" {
		t.Fatalf("unexpected supplier names %+v", names)
	}
}
