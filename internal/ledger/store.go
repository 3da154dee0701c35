package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the read contract of the journal backend. Every aggregate is a single
// filtered reduce; callers never iterate rows to compute a sum.
type Store interface {
	Sum(ctx context.Context, q Query) (float64, error)
	SumByMonth(ctx context.Context, q Query) (map[Month]float64, error)
	Count(ctx context.Context, q Query, d Distinct) (int, error)
	CountByMonth(ctx context.Context, q Query, d Distinct) (map[Month]int, error)
	// Scan streams matching entries ordered by date, protocol and id.
	Scan(ctx context.Context, q Query, fn func(Entry) error) error
	// Counterparties returns, per protocol, the annotation of the first entry sharing
	// that protocol whose account matches pred and whose annotation is not blank.
	Counterparties(ctx context.Context, protocols []string, pred Predicate, mode ExclusionMode) (map[string]string, error)
}

// ImportResult summarises one ingestion batch.
type ImportResult struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Rows     int64     `json:"rows"`
	Openings int       `json:"openings"`
	Closings int       `json:"closings"`
}

// Importer appends a classified batch of entries.
type Importer interface {
	Import(ctx context.Context, classifier BalanceClassifier, entries []Entry) (ImportResult, error)
}

// Round rounds half away from zero to the given number of places.
func Round(v float64, places int32) float64 {
	if v == 0 {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 rounds a monetary value to cents.
func Round2(v float64) float64 { return Round(v, 2) }

func distinctKey(e Entry, d Distinct) string {
	switch d {
	case DistinctRegistration:
		return e.Registration
	case DistinctDay:
		return e.Date.Format(time.DateOnly)
	default:
		return e.Protocol
	}
}
