package pgstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

func TestBuildFilterParameterizesPatterns(t *testing.T) {
	q := ledger.Query{
		Predicate:    ledger.Predicate{ledger.PrefixOf("70_1"), ledger.Exact("7510'01")},
		Period:       ledger.YearPeriod(2024),
		Exclusion:    ledger.ExcludeBoth,
		Side:         ledger.SideCredit,
		WithProtocol: true,
	}
	b := buildFilter(q)
	clause := b.clause()

	require.NotContains(t, clause, "7510'01")
	require.Contains(t, clause, "entry_date BETWEEN $1::date AND $2::date")
	require.Contains(t, clause, "account_code = ANY($3::text[])")
	require.Contains(t, clause, "account_code LIKE ANY($4::text[])")
	require.Contains(t, clause, "NOT is_opening")
	require.Contains(t, clause, "NOT is_closing")
	require.Contains(t, clause, "credit > 0")
	require.Len(t, b.args, 4)
	require.Equal(t, []string{"7510'01"}, b.args[2])
	require.Equal(t, []string{`70\_1%`}, b.args[3])
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), b.args[0])
}

func TestBuildFilterEmptyPredicateMatchesNothing(t *testing.T) {
	b := buildFilter(ledger.Query{Period: ledger.YearPeriod(2024)})
	require.Contains(t, b.clause(), "FALSE")
}

func TestSignAndDistinctExpressions(t *testing.T) {
	require.Equal(t, "ABS(debit - credit)", signExpr(ledger.AbsDebitMinusCredit))
	require.Equal(t, "credit - debit", signExpr(ledger.CreditMinusDebit))
	require.Equal(t, "entry_date", distinctExpr(ledger.DistinctDay))
	require.Equal(t, "NULLIF(TRIM(protocol), '')", distinctExpr(ledger.DistinctProtocol))
}
