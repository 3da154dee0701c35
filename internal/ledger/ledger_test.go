package ledger

import (
	"context"
	"strings"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodDaysAndPrevious(t *testing.T) {
	p, err := NewPeriod(date(2024, 1, 1), date(2024, 3, 31))
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	if p.Days() != 91 {
		t.Fatalf("expected 91 days, got %d", p.Days())
	}
	prev := p.Previous()
	if !prev.End.Equal(date(2023, 12, 31)) || !prev.Start.Equal(date(2023, 10, 1)) {
		t.Fatalf("unexpected previous period %s", prev)
	}
	if _, err := NewPeriod(date(2024, 2, 1), date(2024, 1, 1)); err == nil {
		t.Fatalf("expected inverted period to fail")
	}
}

func TestPeriodMonths(t *testing.T) {
	p := Period{Start: date(2023, 11, 15), End: date(2024, 2, 3)}
	months := p.Months()
	if len(months) != 4 {
		t.Fatalf("expected 4 months, got %d", len(months))
	}
	if months[0].Key() != "2023-11" || months[3].Key() != "2024-02" {
		t.Fatalf("unexpected months %v", months)
	}
	if QuarterPeriod(2024, 2).End != date(2024, 6, 30) {
		t.Fatalf("unexpected Q2 end")
	}
}

func TestPredicateMatchingAndOverlap(t *testing.T) {
	pred := Predicate{PrefixOf("70"), Exact("7510001")}
	if !pred.Matches("7001") || !pred.Matches("7510001") || pred.Matches("751") {
		t.Fatalf("unexpected match results")
	}
	if (Predicate{}).Matches("70") {
		t.Fatalf("empty predicate must match nothing")
	}
	if !PrefixOf("70").Overlaps(Exact("7001")) || PrefixOf("70").Overlaps(PrefixOf("71")) {
		t.Fatalf("unexpected overlap results")
	}
	a := Predicate{PrefixOf("70"), Exact("1")}
	b := Predicate{Exact("1"), PrefixOf("70")}
	if a.Signature() != b.Signature() {
		t.Fatalf("signature must be order independent")
	}
	if got := len(Union(a, b)); got != 2 {
		t.Fatalf("expected union to dedupe, got %d", got)
	}
}

func TestBalanceClassifier(t *testing.T) {
	c := NewBalanceClassifier("", "")
	opening := c.Classify(Entry{Date: date(2024, 1, 1), Description: "Saldo di apertura"})
	if !opening.Opening || opening.Closing {
		t.Fatalf("expected opening row, got %+v", opening)
	}
	notOpening := c.Classify(Entry{Date: date(2024, 1, 2), Description: "APERTURA"})
	if notOpening.Opening {
		t.Fatalf("keyword outside Jan-1 must not flag")
	}
	closing := c.Classify(Entry{Date: date(2024, 12, 31), Causale: "chiusura conti"})
	if !closing.Closing {
		t.Fatalf("expected closing row")
	}
}

func TestBalanceClassifierClassifyAll(t *testing.T) {
	entries := []Entry{
		{Date: date(2024, 1, 1), Description: "Saldo APERTURA"},
		{Date: date(2024, 6, 1), Description: "Vendita"},
		{Date: date(2024, 12, 31), Annotation: "chiusura"},
	}
	NewBalanceClassifier("", "").ClassifyAll(entries)
	if !entries[0].Opening || entries[1].Opening || entries[1].Closing || !entries[2].Closing {
		t.Fatalf("unexpected classification %+v", entries)
	}
}

func TestMemoryStoreAggregates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(
		Entry{Date: date(2024, 1, 1), Account: "7001", Credit: 100, Opening: true},
		Entry{Date: date(2024, 1, 10), Account: "7001", Credit: 250.10, Protocol: "P1", Registration: "R1"},
		Entry{Date: date(2024, 2, 10), Account: "7001", Credit: 0.20, Debit: 50, Protocol: "P2", Registration: "R2"},
		Entry{Date: date(2024, 2, 11), Account: "6001", Debit: 80, Protocol: "P3"},
	)
	q := Query{
		Predicate: Predicate{PrefixOf("70")},
		Period:    YearPeriod(2024),
		Exclusion: ExcludeBoth,
		Sign:      CreditMinusDebit,
	}
	sum, err := store.Sum(ctx, q)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 200.3 {
		t.Fatalf("expected 200.3, got %v", sum)
	}
	byMonth, err := store.SumByMonth(ctx, q)
	if err != nil {
		t.Fatalf("sum by month: %v", err)
	}
	if byMonth[Month{Year: 2024, Month: time.February}] != -49.8 {
		t.Fatalf("unexpected february total %v", byMonth)
	}
	q.Side = SideCredit
	count, err := store.Count(ctx, q, DistinctProtocol)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 protocols, got %d (%v)", count, err)
	}
	if empty, _ := store.Sum(ctx, Query{Period: YearPeriod(2024)}); empty != 0 {
		t.Fatalf("empty predicate must sum to zero")
	}
}

func TestMemoryStoreCounterparties(t *testing.T) {
	store := NewMemoryStore(
		Entry{Date: date(2024, 3, 1), Account: "1201", Protocol: "F1", Annotation: "  "},
		Entry{Date: date(2024, 3, 1), Account: "1201", Protocol: "F1", Annotation: "ACME SRL fattura 12"},
		Entry{Date: date(2024, 3, 1), Account: "7001", Protocol: "F1", Annotation: "ricavo"},
		Entry{Date: date(2024, 3, 2), Account: "1201", Protocol: "F2", Annotation: "Beta"},
	)
	got, err := store.Counterparties(context.Background(), []string{"F1", "F3"}, Predicate{PrefixOf("12")}, ExcludeBoth)
	if err != nil {
		t.Fatalf("counterparties: %v", err)
	}
	if got["F1"] != "ACME SRL fattura 12" {
		t.Fatalf("unexpected F1 counterparty %q", got["F1"])
	}
	if _, ok := got["F3"]; ok {
		t.Fatalf("F3 must be unresolved")
	}
}

func TestReadCSV(t *testing.T) {
	input := "date,account,debit,credit,protocol,annotation\n" +
		"2024-05-02,7001,,\"1.234,50\",P1,ACME\n" +
		"03/05/2024,1201,1234.50,,P1,ACME\n"
	entries, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Credit != 1234.5 || entries[1].Debit != 1234.5 {
		t.Fatalf("unexpected amounts %+v", entries)
	}
	if !entries[1].Date.Equal(date(2024, 5, 3)) {
		t.Fatalf("unexpected date %v", entries[1].Date)
	}
	if _, err := ReadCSV(strings.NewReader("account\n7001\n")); err == nil {
		t.Fatalf("expected missing date column error")
	}
}

func TestRound(t *testing.T) {
	if got := Round2(2.675); got != 2.68 {
		t.Fatalf("expected 2.68, got %v", got)
	}
	if got := Round2(-1.005); got != -1.01 {
		t.Fatalf("expected -1.01, got %v", got)
	}
	if Round(1234.5678, 0) != 1235 {
		t.Fatalf("unexpected integer rounding")
	}
}

func TestMemoryStoreImport(t *testing.T) {
	s := NewMemoryStore()
	res, err := s.Import(context.Background(), NewBalanceClassifier("", ""), []Entry{
		{Date: date(2024, 1, 1), Account: "1800", Debit: 100, Description: "Saldo APERTURA"},
		{Date: date(2024, 3, 5), Account: "7051", Credit: 100},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Rows != 2 || res.Openings != 1 || res.Closings != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 stored entries, got %d", s.Len())
	}
	sum, _ := s.Sum(context.Background(), Query{Predicate: Predicate{PrefixOf("18")}, Period: YearPeriod(2024), Sign: DebitMinusCredit, Exclusion: ExcludeOpening})
	if sum != 0 {
		t.Fatalf("opening row must be excluded, got %v", sum)
	}

	if _, err := s.Import(context.Background(), NewBalanceClassifier("", ""), []Entry{{Date: date(2024, 1, 2)}}); err == nil {
		t.Fatalf("expected validation error for missing account")
	}
	if s.Len() != 2 {
		t.Fatalf("failed import must not append")
	}
}
