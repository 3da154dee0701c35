// Package pgstore implements ledger.Store on PostgreSQL. Predicates are translated into
// parameterized filters; pattern text never reaches the SQL string.
package pgstore

import (
	"strconv"
	"strings"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

type builder struct {
	args  []any
	conds []string
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) where(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *builder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// accounts adds the OR-combined account predicate.
func (b *builder) accounts(pred ledger.Predicate) {
	exact, prefixes := pred.Split()
	var alts []string
	if len(exact) > 0 {
		alts = append(alts, "account_code = ANY("+b.arg(exact)+"::text[])")
	}
	if len(prefixes) > 0 {
		likes := make([]string, len(prefixes))
		for i, p := range prefixes {
			likes[i] = escapeLike(p) + "%"
		}
		alts = append(alts, "account_code LIKE ANY("+b.arg(likes)+"::text[])")
	}
	if len(alts) == 0 {
		b.where("FALSE")
		return
	}
	b.where("(" + strings.Join(alts, " OR ") + ")")
}

func (b *builder) exclusion(mode ledger.ExclusionMode) {
	if mode.SkipOpening() {
		b.where("NOT is_opening")
	}
	if mode.SkipClosing() {
		b.where("NOT is_closing")
	}
}

func buildFilter(q ledger.Query) *builder {
	b := &builder{}
	b.where("entry_date BETWEEN " + b.arg(q.Period.Start) + "::date AND " + b.arg(q.Period.End) + "::date")
	b.accounts(q.Predicate)
	b.exclusion(q.Exclusion)
	switch q.Side {
	case ledger.SideDebit:
		b.where("debit > 0")
	case ledger.SideCredit:
		b.where("credit > 0")
	case ledger.SideEither:
		b.where("(debit > 0 OR credit > 0)")
	}
	if q.WithProtocol {
		b.where("COALESCE(TRIM(protocol), '') <> ''")
	}
	if q.WithAnnotation {
		b.where("COALESCE(TRIM(annotation), '') <> ''")
	}
	return b
}

func signExpr(s ledger.SignExpr) string {
	switch s {
	case ledger.CreditMinusDebit:
		return "credit - debit"
	case ledger.AbsDebitMinusCredit:
		return "ABS(debit - credit)"
	case ledger.DebitOnly:
		return "debit"
	case ledger.CreditOnly:
		return "credit"
	default:
		return "debit - credit"
	}
}

func distinctExpr(d ledger.Distinct) string {
	switch d {
	case ledger.DistinctRegistration:
		return "NULLIF(TRIM(registration_no), '')"
	case ledger.DistinctDay:
		return "entry_date"
	default:
		return "NULLIF(TRIM(protocol), '')"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

const entryColumns = `id, batch_id, entry_date, debit::float8, credit::float8, account_code,
	COALESCE(protocol, ''), COALESCE(annotation, ''), COALESCE(description, ''),
	COALESCE(causale, ''), COALESCE(registration_no, ''), is_opening, is_closing`
