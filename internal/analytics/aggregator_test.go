package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

type countingStore struct {
	*ledger.MemoryStore
	sumCalls   int
	monthCalls int
	fail       error
}

func (s *countingStore) Sum(ctx context.Context, q ledger.Query) (float64, error) {
	s.sumCalls++
	if s.fail != nil {
		return 0, s.fail
	}
	return s.MemoryStore.Sum(ctx, q)
}

func (s *countingStore) SumByMonth(ctx context.Context, q ledger.Query) (map[ledger.Month]float64, error) {
	s.monthCalls++
	return s.MemoryStore.SumByMonth(ctx, q)
}

type recordingObserver struct {
	hits, misses int
}

func (o *recordingObserver) ObserveCache(kind string, hit bool) {
	if hit {
		o.hits++
		return
	}
	o.misses++
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixtureStore() *countingStore {
	return &countingStore{MemoryStore: ledger.NewMemoryStore(
		ledger.Entry{Date: day(2024, 1, 1), Account: "7001", Credit: 500, Opening: true},
		ledger.Entry{Date: day(2024, 1, 15), Account: "7001", Credit: 1000},
		ledger.Entry{Date: day(2024, 2, 15), Account: "7001", Credit: 300, Debit: 50},
		ledger.Entry{Date: day(2024, 12, 31), Account: "1201", Debit: 900, Closing: true},
		ledger.Entry{Date: day(2024, 6, 30), Account: "1201", Debit: 400},
		ledger.Entry{Date: day(2023, 6, 30), Account: "1201", Debit: 100, Credit: 20},
	)}
}

func newTestAggregator(t *testing.T, store ledger.Store) (*Aggregator, *Cache, *recordingObserver) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	obs := &recordingObserver{}
	cache := NewCache(client, time.Minute).WithObserver(obs)
	return NewAggregator(store, cache, nil), cache, obs
}

func TestAggregateUsesCache(t *testing.T) {
	store := fixtureStore()
	agg, _, obs := newTestAggregator(t, store)
	ctx := context.Background()
	revenue := ledger.Predicate{ledger.PrefixOf("70")}

	first := agg.Aggregate(ctx, revenue, ledger.YearPeriod(2024), ledger.CreditMinusDebit, ledger.ExcludeBoth)
	second := agg.Aggregate(ctx, revenue, ledger.YearPeriod(2024), ledger.CreditMinusDebit, ledger.ExcludeBoth)
	if first != 1250 || second != 1250 {
		t.Fatalf("expected 1250 twice, got %v and %v", first, second)
	}
	if store.sumCalls != 1 {
		t.Fatalf("expected store hit once, got %d", store.sumCalls)
	}
	if obs.hits != 1 || obs.misses != 1 {
		t.Fatalf("unexpected cache observations hits=%d misses=%d", obs.hits, obs.misses)
	}

	withOpening := agg.Aggregate(ctx, revenue, ledger.YearPeriod(2024), ledger.CreditMinusDebit, ledger.ExcludeNone)
	if withOpening != 1750 {
		t.Fatalf("expected 1750 with opening row, got %v", withOpening)
	}
}

func TestBumpInvalidatesCache(t *testing.T) {
	store := fixtureStore()
	agg, _, _ := newTestAggregator(t, store)
	ctx := context.Background()
	revenue := ledger.Predicate{ledger.PrefixOf("70")}

	agg.Aggregate(ctx, revenue, ledger.YearPeriod(2024), ledger.CreditMinusDebit, ledger.ExcludeBoth)
	store.Append(ledger.Entry{Date: day(2024, 3, 1), Account: "7002", Credit: 10})
	if err := agg.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	got := agg.Aggregate(ctx, revenue, ledger.YearPeriod(2024), ledger.CreditMinusDebit, ledger.ExcludeBoth)
	if got != 1260 {
		t.Fatalf("expected refreshed total 1260, got %v", got)
	}
	if store.sumCalls != 2 {
		t.Fatalf("expected two store calls, got %d", store.sumCalls)
	}
}

func TestCumulativeSkipsClosingRows(t *testing.T) {
	agg := NewAggregator(fixtureStore(), nil, nil)
	receivables := ledger.Predicate{ledger.PrefixOf("12")}
	got := agg.Cumulative(context.Background(), receivables, day(2024, 12, 31), ledger.DebitMinusCredit)
	if got != 480 {
		t.Fatalf("expected 480, got %v", got)
	}
}

func TestAggregateGuards(t *testing.T) {
	store := fixtureStore()
	agg := NewAggregator(store, nil, nil)
	ctx := context.Background()

	if got := agg.Aggregate(ctx, nil, ledger.YearPeriod(2024), ledger.CreditMinusDebit, ledger.ExcludeBoth); got != 0 {
		t.Fatalf("empty predicate must yield 0, got %v", got)
	}
	if store.sumCalls != 0 {
		t.Fatalf("empty predicate must not reach the store")
	}
	inverted := ledger.Period{Start: day(2024, 2, 1), End: day(2024, 1, 1)}
	if _, err := agg.Sum(ctx, ledger.Query{Predicate: ledger.Predicate{ledger.PrefixOf("70")}, Period: inverted}); !errors.Is(err, ledger.ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
	store.fail = errors.New("connection reset")
	if got := agg.Aggregate(ctx, ledger.Predicate{ledger.PrefixOf("70")}, ledger.YearPeriod(2024), ledger.CreditMinusDebit, ledger.ExcludeBoth); got != 0 {
		t.Fatalf("store failure must yield 0, got %v", got)
	}
}

func TestMemoDeduplicatesWithoutRedis(t *testing.T) {
	store := fixtureStore()
	agg := NewAggregator(store, nil, nil)
	ctx := WithMemo(context.Background())
	q := ledger.Query{Predicate: ledger.Predicate{ledger.PrefixOf("70")}, Period: ledger.YearPeriod(2024), Sign: ledger.CreditMinusDebit}

	for i := 0; i < 3; i++ {
		if _, err := agg.Sum(ctx, q); err != nil {
			t.Fatalf("sum: %v", err)
		}
	}
	if store.sumCalls != 1 {
		t.Fatalf("expected memoised store call, got %d", store.sumCalls)
	}

	byMonth, err := agg.SumByMonth(ctx, q)
	if err != nil {
		t.Fatalf("sum by month: %v", err)
	}
	if byMonth[ledger.Month{Year: 2024, Month: time.February}] != 250 {
		t.Fatalf("unexpected february total %v", byMonth)
	}
	if _, err := agg.SumByMonth(ctx, q); err != nil || store.monthCalls != 1 {
		t.Fatalf("expected memoised monthly call, got %d (%v)", store.monthCalls, err)
	}
}
