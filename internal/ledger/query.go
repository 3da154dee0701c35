package ledger

import (
	"math"
	"strconv"
	"strings"
)

// ExclusionMode selects which carry-forward rows a query ignores.
type ExclusionMode int

const (
	ExcludeNone ExclusionMode = iota
	ExcludeOpening
	ExcludeClosing
	ExcludeBoth
)

// Excludes reports whether the entry is dropped under the mode.
func (m ExclusionMode) Excludes(e Entry) bool {
	switch m {
	case ExcludeOpening:
		return e.Opening
	case ExcludeClosing:
		return e.Closing
	case ExcludeBoth:
		return e.Opening || e.Closing
	default:
		return false
	}
}

// SkipOpening reports whether opening rows are excluded.
func (m ExclusionMode) SkipOpening() bool { return m == ExcludeOpening || m == ExcludeBoth }

// SkipClosing reports whether closing rows are excluded.
func (m ExclusionMode) SkipClosing() bool { return m == ExcludeClosing || m == ExcludeBoth }

func (m ExclusionMode) String() string {
	switch m {
	case ExcludeOpening:
		return "opening"
	case ExcludeClosing:
		return "closing"
	case ExcludeBoth:
		return "both"
	default:
		return "none"
	}
}

// SignExpr is the per-row amount expression summed by the aggregator.
type SignExpr int

const (
	DebitMinusCredit SignExpr = iota
	CreditMinusDebit
	AbsDebitMinusCredit
	DebitOnly
	CreditOnly
)

// Apply evaluates the expression for one row.
func (s SignExpr) Apply(debit, credit float64) float64 {
	switch s {
	case CreditMinusDebit:
		return credit - debit
	case AbsDebitMinusCredit:
		return math.Abs(debit - credit)
	case DebitOnly:
		return debit
	case CreditOnly:
		return credit
	default:
		return debit - credit
	}
}

func (s SignExpr) String() string {
	switch s {
	case CreditMinusDebit:
		return "c-d"
	case AbsDebitMinusCredit:
		return "|d-c|"
	case DebitOnly:
		return "d"
	case CreditOnly:
		return "c"
	default:
		return "d-c"
	}
}

// Side restricts rows by which amount column is populated.
type Side int

const (
	SideAny Side = iota
	SideDebit
	SideCredit
	SideEither
)

// Accepts reports whether a row with the given amounts passes the side filter.
func (s Side) Accepts(debit, credit float64) bool {
	switch s {
	case SideDebit:
		return debit > 0
	case SideCredit:
		return credit > 0
	case SideEither:
		return debit > 0 || credit > 0
	default:
		return true
	}
}

// Distinct selects the column counted by Count queries.
type Distinct int

const (
	DistinctProtocol Distinct = iota
	DistinctRegistration
	DistinctDay
)

func (d Distinct) String() string {
	switch d {
	case DistinctRegistration:
		return "registration"
	case DistinctDay:
		return "day"
	default:
		return "protocol"
	}
}

// Query is the filter shared by every store operation.
type Query struct {
	Predicate      Predicate
	Period         Period
	Exclusion      ExclusionMode
	Sign           SignExpr
	Side           Side
	WithProtocol   bool
	WithAnnotation bool
}

// Accepts evaluates the filter in memory.
func (q Query) Accepts(e Entry) bool {
	if !q.Predicate.Matches(e.Account) {
		return false
	}
	if !q.Period.Contains(e.Date) {
		return false
	}
	if q.Exclusion.Excludes(e) {
		return false
	}
	if !q.Side.Accepts(e.Debit, e.Credit) {
		return false
	}
	if q.WithProtocol && strings.TrimSpace(e.Protocol) == "" {
		return false
	}
	if q.WithAnnotation && strings.TrimSpace(e.Annotation) == "" {
		return false
	}
	return true
}

// Signature identifies the query for caching.
func (q Query) Signature() string {
	parts := []string{
		q.Predicate.Signature(),
		q.Period.String(),
		q.Exclusion.String(),
		q.Sign.String(),
		strconv.Itoa(int(q.Side)),
	}
	if q.WithProtocol {
		parts = append(parts, "proto")
	}
	if q.WithAnnotation {
		parts = append(parts, "annot")
	}
	return strings.Join(parts, ":")
}
