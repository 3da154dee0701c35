package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
	"github.com/odyssey-erp/ledger-analytics/internal/platform/db"
)

// Store reads and appends ledger_entries rows.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store backed by pgxpool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ ledger.Store = (*Store)(nil)

// Sum implements ledger.Store.
func (s *Store) Sum(ctx context.Context, q ledger.Query) (float64, error) {
	if q.Predicate.Empty() {
		return 0, nil
	}
	b := buildFilter(q)
	sql := "SELECT COALESCE(SUM(" + signExpr(q.Sign) + "), 0)::float8 FROM ledger_entries" + b.clause()
	var total float64
	if err := s.pool.QueryRow(ctx, sql, b.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("pgstore: sum: %w", err)
	}
	return total, nil
}

// SumByMonth implements ledger.Store.
func (s *Store) SumByMonth(ctx context.Context, q ledger.Query) (map[ledger.Month]float64, error) {
	out := make(map[ledger.Month]float64)
	if q.Predicate.Empty() {
		return out, nil
	}
	b := buildFilter(q)
	sql := `SELECT EXTRACT(YEAR FROM entry_date)::int, EXTRACT(MONTH FROM entry_date)::int,
		COALESCE(SUM(` + signExpr(q.Sign) + `), 0)::float8
		FROM ledger_entries` + b.clause() + ` GROUP BY 1, 2`
	rows, err := s.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: sum by month: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			year, month int
			total       float64
		)
		if err := rows.Scan(&year, &month, &total); err != nil {
			return nil, fmt.Errorf("pgstore: scan month sum: %w", err)
		}
		out[ledger.Month{Year: year, Month: time.Month(month)}] = total
	}
	return out, rows.Err()
}

// Count implements ledger.Store.
func (s *Store) Count(ctx context.Context, q ledger.Query, d ledger.Distinct) (int, error) {
	if q.Predicate.Empty() {
		return 0, nil
	}
	b := buildFilter(q)
	sql := "SELECT COUNT(DISTINCT " + distinctExpr(d) + ") FROM ledger_entries" + b.clause()
	var count int64
	if err := s.pool.QueryRow(ctx, sql, b.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgstore: count: %w", err)
	}
	return int(count), nil
}

// CountByMonth implements ledger.Store.
func (s *Store) CountByMonth(ctx context.Context, q ledger.Query, d ledger.Distinct) (map[ledger.Month]int, error) {
	out := make(map[ledger.Month]int)
	if q.Predicate.Empty() {
		return out, nil
	}
	b := buildFilter(q)
	sql := `SELECT EXTRACT(YEAR FROM entry_date)::int, EXTRACT(MONTH FROM entry_date)::int,
		COUNT(DISTINCT ` + distinctExpr(d) + `)
		FROM ledger_entries` + b.clause() + ` GROUP BY 1, 2`
	rows, err := s.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: count by month: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			year, month int
			count       int64
		)
		if err := rows.Scan(&year, &month, &count); err != nil {
			return nil, fmt.Errorf("pgstore: scan month count: %w", err)
		}
		out[ledger.Month{Year: year, Month: time.Month(month)}] = int(count)
	}
	return out, rows.Err()
}

// Scan implements ledger.Store.
func (s *Store) Scan(ctx context.Context, q ledger.Query, fn func(ledger.Entry) error) error {
	if q.Predicate.Empty() {
		return nil
	}
	b := buildFilter(q)
	sql := "SELECT " + entryColumns + " FROM ledger_entries" + b.clause() + " ORDER BY entry_date, protocol, id"
	rows, err := s.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return fmt.Errorf("pgstore: scan: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Counterparties implements ledger.Store with one DISTINCT ON query per batch.
func (s *Store) Counterparties(ctx context.Context, protocols []string, pred ledger.Predicate, mode ledger.ExclusionMode) (map[string]string, error) {
	out := make(map[string]string)
	if len(protocols) == 0 || pred.Empty() {
		return out, nil
	}
	b := &builder{}
	b.where("protocol = ANY(" + b.arg(protocols) + "::text[])")
	b.accounts(pred)
	b.exclusion(mode)
	b.where("COALESCE(TRIM(annotation), '') <> ''")
	sql := "SELECT DISTINCT ON (protocol) protocol, TRIM(annotation) FROM ledger_entries" +
		b.clause() + " ORDER BY protocol, entry_date, id"
	rows, err := s.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: counterparties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var protocol, annotation string
		if err := rows.Scan(&protocol, &annotation); err != nil {
			return nil, fmt.Errorf("pgstore: scan counterparty: %w", err)
		}
		out[protocol] = annotation
	}
	return out, rows.Err()
}

// Import classifies carry-forward rows and appends the batch atomically.
func (s *Store) Import(ctx context.Context, classifier ledger.BalanceClassifier, entries []ledger.Entry) (ledger.ImportResult, error) {
	result := ledger.ImportResult{BatchID: uuid.New()}
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return ledger.ImportResult{}, err
		}
		e = classifier.Classify(e)
		if e.Opening {
			result.Openings++
		}
		if e.Closing {
			result.Closings++
		}
		rows = append(rows, []any{
			result.BatchID, ledger.Day(e.Date), e.Debit, e.Credit, e.Account,
			nullable(e.Protocol), nullable(e.Annotation), nullable(e.Description),
			nullable(e.Causale), nullable(e.Registration), e.Opening, e.Closing,
		})
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"ledger_entries"}, []string{
			"batch_id", "entry_date", "debit", "credit", "account_code",
			"protocol", "annotation", "description", "causale", "registration_no",
			"is_opening", "is_closing",
		}, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("pgstore: copy entries: %w", err)
		}
		result.Rows = n
		return nil
	})
	if err != nil {
		return ledger.ImportResult{}, err
	}
	return result, nil
}

func scanEntry(rows pgx.Rows) (ledger.Entry, error) {
	var (
		e     ledger.Entry
		batch pgtype.UUID
	)
	if err := rows.Scan(
		&e.ID, &batch, &e.Date, &e.Debit, &e.Credit, &e.Account,
		&e.Protocol, &e.Annotation, &e.Description, &e.Causale, &e.Registration,
		&e.Opening, &e.Closing,
	); err != nil {
		return ledger.Entry{}, fmt.Errorf("pgstore: scan entry: %w", err)
	}
	if batch.Valid {
		e.BatchID = uuid.UUID(batch.Bytes)
	}
	return e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
