package cohort

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newAnalyzer(t *testing.T, entries ...ledger.Entry) *Analyzer {
	t.Helper()
	return newAnalyzerWithLogger(t, nil, entries...)
}

func newAnalyzerWithLogger(t *testing.T, logger *slog.Logger, entries ...ledger.Entry) *Analyzer {
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
	agg := analytics.NewAggregator(ledger.NewMemoryStore(entries...), nil, nil)
	return NewAnalyzer(agg, registry, accounts.DefaultTenant, logger)
}

// sale books a revenue row and its receivable row under one protocol.
func sale(date time.Time, protocol, account, customer string, credit, debit float64) []ledger.Entry {
	out := []ledger.Entry{{Date: date, Account: account, Protocol: protocol, Credit: credit, Debit: debit}}
	if customer != "" {
		out = append(out, ledger.Entry{Date: date, Account: "1500", Protocol: protocol, Annotation: customer, Debit: credit})
	}
	return out
}

func purchase(date time.Time, protocol, supplier string, debit float64) []ledger.Entry {
	return []ledger.Entry{
		{Date: date, Account: "6010", Protocol: protocol, Debit: debit},
		{Date: date, Account: "2600", Protocol: protocol, Annotation: supplier, Credit: debit},
	}
}

func flatten(groups ...[]ledger.Entry) []ledger.Entry {
	var out []ledger.Entry
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func TestUnresolvedCounterpartiesCountedByProtocol(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	a := newAnalyzerWithLogger(t, logger, flatten(
		sale(day(2024, 3, 1), "P1", "7011", "ACME Srl", 100, 0),
		sale(day(2024, 3, 2), "X1", "7011", "", 50, 0),
		sale(day(2024, 3, 3), "X1", "7051", "", 70, 0),
	)...)

	report := a.Customers(context.Background(), ledger.YearPeriod(2024), nil, 10)
	require.Empty(t, report.Error)
	require.Contains(t, buf.String(), `"protocols":1`)
	require.NotContains(t, buf.String(), `"protocols":2`)
}

func TestTrendLabel(t *testing.T) {
	cases := []struct {
		current, previous float64
		trend             Trend
		variation         float64
	}{
		{111, 100, TrendGrowing, 11},
		{110, 100, TrendStable, 10},
		{90, 100, TrendStable, -10},
		{89, 100, TrendDeclining, -11},
		{50, 0, TrendNew, 100},
	}
	for _, tc := range cases {
		trend, variation := TrendLabel(tc.current, tc.previous)
		if trend != tc.trend || variation != tc.variation {
			t.Fatalf("TrendLabel(%v, %v) = %s %v, want %s %v", tc.current, tc.previous, trend, variation, tc.trend, tc.variation)
		}
	}
}

func TestClassifyABC(t *testing.T) {
	entities := ClassifyABC([]EntityAggregate{
		{Name: "a", Net: 700},
		{Name: "b", Net: 200},
		{Name: "c", Net: 60},
		{Name: "d", Net: 40},
	})
	want := []Tier{TierA, TierB, TierC, TierC}
	for i, e := range entities {
		if e.Tier != want[i] {
			t.Fatalf("entity %s tier = %s, want %s", e.Name, e.Tier, want[i])
		}
	}
	if entities[1].CumulativeShare != 90 || entities[2].Share != 6 {
		t.Fatalf("unexpected shares: %+v", entities)
	}
	if ClassifyABC(nil) != nil {
		t.Fatalf("expected nil for no entities")
	}
}

func TestRetentionSets(t *testing.T) {
	set := func(keys ...string) map[string]struct{} {
		out := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			out[k] = struct{}{}
		}
		return out
	}

	churn := RetentionSets(set(), set("acme"))
	require.Equal(t, 0.0, churn.Rate)
	require.Equal(t, []string{"acme"}, churn.Churned)
	require.Empty(t, churn.New)
	require.Empty(t, churn.Retained)

	mixed := RetentionSets(set("b", "c"), set("a", "b"))
	require.Equal(t, []string{"b"}, mixed.Retained)
	require.Equal(t, []string{"c"}, mixed.New)
	require.Equal(t, []string{"a"}, mixed.Churned)
	require.Equal(t, 50.0, mixed.Rate)

	require.Equal(t, 0.0, RetentionSets(set("x"), set()).Rate)
}

func TestCustomers(t *testing.T) {
	a := newAnalyzer(t, flatten(
		sale(day(2024, 3, 5), "P1", "7051", "ACME Srl - fattura 1", 1000, 0),
		sale(day(2024, 3, 6), "P2", "7011", "Beta Spa", 500, 0),
		sale(day(2024, 3, 7), "P3", "7051", "ACME Srl", 0, 200),
		sale(day(2024, 3, 8), "P4", "7051", "", 900, 0),
		sale(day(2024, 3, 9), "P5", "7051", "Gamma", 100, 0),
		sale(day(2024, 3, 10), "P6", "7051", "Gamma", 0, 150),
		sale(day(2024, 2, 10), "P0", "7051", "ACME Srl", 500, 0),
	)...)

	report := a.Customers(context.Background(), ledger.MonthPeriod(2024, time.March), nil, 0)
	require.Empty(t, report.Error)
	require.Equal(t, "2024-01-30..2024-02-29", report.Comparison)
	require.Equal(t, 2, report.ActiveCustomers)
	require.Equal(t, 1300.0, report.Total)
	require.Equal(t, 500.0, report.PreviousTotal)
	require.Equal(t, 160.0, report.Variation)
	require.Len(t, report.Customers, 2)

	acme := report.Customers[0]
	require.Equal(t, "ACME Srl", acme.Name)
	require.Equal(t, "acme", acme.Key)
	require.Equal(t, 1000.0, acme.Gross)
	require.Equal(t, 200.0, acme.CreditNotes)
	require.Equal(t, 800.0, acme.Net)
	require.Equal(t, 1, acme.InvoiceCount)
	require.Equal(t, 1, acme.CreditNoteCount)
	require.Equal(t, TrendGrowing, acme.Trend)
	require.Equal(t, 60.0, acme.Variation)

	beta := report.Customers[1]
	require.Equal(t, "Beta Spa", beta.Name)
	require.Equal(t, TrendNew, beta.Trend)
	require.Equal(t, 100.0, beta.Variation)

	limited := a.Customers(context.Background(), ledger.MonthPeriod(2024, time.March), nil, 1)
	require.Len(t, limited.Customers, 1)
	require.Equal(t, 2, limited.ActiveCustomers)
}

func TestCustomersInvalidPeriod(t *testing.T) {
	a := newAnalyzer(t)
	report := a.Customers(context.Background(), ledger.Period{Start: day(2024, 2, 1), End: day(2024, 1, 1)}, nil, 5)
	require.NotEmpty(t, report.Error)
	require.Empty(t, report.Customers)
}

func TestSuppliers(t *testing.T) {
	a := newAnalyzer(t, flatten(
		purchase(day(2024, 5, 2), "F1", "Alfa Forniture", 700),
		purchase(day(2024, 5, 3), "F2", "Beta Metalli", 200),
		purchase(day(2024, 5, 4), "F3", "Gamma Trasporti", 60),
		purchase(day(2024, 5, 5), "F4", "Omega Pulizie", 40),
		purchase(day(2023, 5, 5), "F0", "Beta Metalli", 100),
	)...)

	year := ledger.YearPeriod(2024)
	prior := ledger.YearPeriod(2023)
	report := a.Suppliers(context.Background(), year, &prior)
	require.Empty(t, report.Error)
	require.Equal(t, 1000.0, report.Total)
	require.Equal(t, 100.0, report.PreviousTotal)
	require.Len(t, report.Suppliers, 4)
	require.Equal(t, TierA, report.Suppliers[0].Tier)
	require.Equal(t, TierB, report.Suppliers[1].Tier)
	require.Equal(t, TierC, report.Suppliers[3].Tier)

	require.Equal(t, []TierSummary{
		{Tier: TierA, Count: 1, Amount: 700, Percent: 70},
		{Tier: TierB, Count: 1, Amount: 200, Percent: 20},
		{Tier: TierC, Count: 2, Amount: 100, Percent: 10},
	}, report.Tiers)

	require.Equal(t, 3, report.NewSuppliers)
	require.Equal(t, 1, report.Growing)
	require.Equal(t, 25.0, report.GrowingPercent)
	require.Equal(t, 200.0, report.GrowingSpend)
	require.Equal(t, 20.0, report.GrowingShare)
}

func TestQuarterlyRetentionChurn(t *testing.T) {
	a := newAnalyzer(t, ledger.Entry{
		Date: day(2023, 2, 1), Account: "7051", Credit: 300, Annotation: "ACME Srl - fattura 7",
	})

	report := a.QuarterlyRetention(context.Background(), 2024)
	require.Empty(t, report.Error)
	require.Len(t, report.Quarters, 4)
	q1 := report.Quarters[0]
	require.Equal(t, 0, q1.Customers)
	require.Equal(t, 1, q1.PriorCustomers)
	require.Equal(t, 1, q1.Churned)
	require.Equal(t, 0.0, q1.Rate)
	require.Equal(t, 300.0, q1.PreviousRevenue)

	require.Equal(t, 0.0, report.YearRate)
	require.Equal(t, []string{"acme"}, report.ChurnedKeys)
	require.Empty(t, report.NewKeys)
	require.Equal(t, 1, report.TotalChurned)
}

func TestMonthlyRetention(t *testing.T) {
	a := newAnalyzer(t,
		ledger.Entry{Date: day(2024, 1, 10), Account: "7051", Credit: 100, Annotation: "ACME Srl"},
		ledger.Entry{Date: day(2024, 1, 11), Account: "7011", Credit: 100, Annotation: "Beta Spa"},
		ledger.Entry{Date: day(2024, 2, 12), Account: "7051", Credit: 100, Annotation: "ACME Srl, Bologna"},
	)

	report := a.MonthlyRetention(context.Background(), 2024, time.January, time.February)
	require.Empty(t, report.Error)
	require.Equal(t, 2, report.Analysed)
	jan, feb := report.Months[0], report.Months[1]
	require.Equal(t, 2, jan.New)
	require.Equal(t, 0.0, jan.Rate)
	require.Equal(t, 1, feb.Retained)
	require.Equal(t, 1, feb.Churned)
	require.Equal(t, 50.0, feb.Rate)
	require.Equal(t, 50.0, report.AverageRate)
	require.Equal(t, 2, report.TotalNew)
	require.Equal(t, 1, report.TotalChurned)

	empty := a.MonthlyRetention(context.Background(), 2024, time.May, time.March)
	require.NotEmpty(t, empty.Error)
}
