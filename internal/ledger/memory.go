package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store used by tests and the offline CLI.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int64
}

// NewMemoryStore seeds a store with entries.
func NewMemoryStore(entries ...Entry) *MemoryStore {
	s := &MemoryStore{}
	s.Append(entries...)
	return s
}

// Append adds entries, assigning ids to those without one.
func (s *MemoryStore) Append(entries ...Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.nextID++
		if e.ID == 0 {
			e.ID = s.nextID
		}
		e.Date = Day(e.Date)
		s.entries = append(s.entries, e)
	}
}

// Import validates and classifies entries, then appends them under a new batch id.
func (s *MemoryStore) Import(_ context.Context, classifier BalanceClassifier, entries []Entry) (ImportResult, error) {
	result := ImportResult{BatchID: uuid.New()}
	batch := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return ImportResult{}, err
		}
		e = classifier.Classify(e)
		e.BatchID = result.BatchID
		if e.Opening {
			result.Openings++
		}
		if e.Closing {
			result.Closings++
		}
		batch = append(batch, e)
	}
	s.Append(batch...)
	result.Rows = int64(len(batch))
	return result, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) matching(q Query) []Entry {
	if q.Predicate.Empty() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if q.Accepts(e) {
			out = append(out, e)
		}
	}
	return out
}

// Sum implements Store.
func (s *MemoryStore) Sum(ctx context.Context, q Query) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	total := decimal.Zero
	for _, e := range s.matching(q) {
		total = total.Add(decimal.NewFromFloat(q.Sign.Apply(e.Debit, e.Credit)))
	}
	return total.InexactFloat64(), nil
}

// SumByMonth implements Store.
func (s *MemoryStore) SumByMonth(ctx context.Context, q Query) (map[Month]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	totals := make(map[Month]decimal.Decimal)
	for _, e := range s.matching(q) {
		m := MonthOf(e.Date)
		totals[m] = totals[m].Add(decimal.NewFromFloat(q.Sign.Apply(e.Debit, e.Credit)))
	}
	out := make(map[Month]float64, len(totals))
	for m, v := range totals {
		out[m] = v.InexactFloat64()
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, q Query, d Distinct) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	seen := make(map[string]struct{})
	for _, e := range s.matching(q) {
		if key := distinctKey(e, d); key != "" {
			seen[key] = struct{}{}
		}
	}
	return len(seen), nil
}

// CountByMonth implements Store.
func (s *MemoryStore) CountByMonth(ctx context.Context, q Query, d Distinct) (map[Month]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[Month]map[string]struct{})
	for _, e := range s.matching(q) {
		key := distinctKey(e, d)
		if key == "" {
			continue
		}
		m := MonthOf(e.Date)
		if seen[m] == nil {
			seen[m] = make(map[string]struct{})
		}
		seen[m][key] = struct{}{}
	}
	out := make(map[Month]int, len(seen))
	for m, keys := range seen {
		out[m] = len(keys)
	}
	return out, nil
}

// Scan implements Store.
func (s *MemoryStore) Scan(ctx context.Context, q Query, fn func(Entry) error) error {
	rows := s.matching(q)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		if rows[i].Protocol != rows[j].Protocol {
			return rows[i].Protocol < rows[j].Protocol
		}
		return rows[i].ID < rows[j].ID
	})
	for _, e := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Counterparties implements Store.
func (s *MemoryStore) Counterparties(ctx context.Context, protocols []string, pred Predicate, mode ExclusionMode) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if len(protocols) == 0 || pred.Empty() {
		return out, nil
	}
	wanted := make(map[string]struct{}, len(protocols))
	for _, p := range protocols {
		wanted[p] = struct{}{}
	}
	s.mu.RLock()
	rows := append([]Entry(nil), s.entries...)
	s.mu.RUnlock()
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].ID < rows[j].ID
	})
	for _, e := range rows {
		if _, ok := wanted[e.Protocol]; !ok {
			continue
		}
		if _, done := out[e.Protocol]; done {
			continue
		}
		if !pred.Matches(e.Account) || mode.Excludes(e) {
			continue
		}
		if annot := strings.TrimSpace(e.Annotation); annot != "" {
			out[e.Protocol] = annot
		}
	}
	return out, nil
}
