package ledger

import (
	"sort"
	"strings"
)

// Match is one account-code rule. Prefix rules match every code starting with Pattern;
// exact rules match the code itself.
type Match struct {
	Pattern string `json:"pattern"`
	Prefix  bool   `json:"prefix"`
}

// Exact returns an exact-code rule.
func Exact(pattern string) Match { return Match{Pattern: pattern} }

// PrefixOf returns a prefix rule.
func PrefixOf(pattern string) Match { return Match{Pattern: pattern, Prefix: true} }

// Matches evaluates the rule against an account code.
func (m Match) Matches(account string) bool {
	if m.Pattern == "" {
		return false
	}
	if m.Prefix {
		return strings.HasPrefix(account, m.Pattern)
	}
	return account == m.Pattern
}

// Overlaps reports whether some account code could satisfy both rules.
func (m Match) Overlaps(o Match) bool {
	switch {
	case m.Prefix && o.Prefix:
		return strings.HasPrefix(m.Pattern, o.Pattern) || strings.HasPrefix(o.Pattern, m.Pattern)
	case m.Prefix:
		return strings.HasPrefix(o.Pattern, m.Pattern)
	case o.Prefix:
		return strings.HasPrefix(m.Pattern, o.Pattern)
	default:
		return m.Pattern == o.Pattern
	}
}

func (m Match) String() string {
	if m.Prefix {
		return m.Pattern + "*"
	}
	return m.Pattern
}

// Predicate is an OR-combination of account rules. The empty predicate matches nothing.
type Predicate []Match

// Union concatenates predicates, dropping duplicate rules.
func Union(preds ...Predicate) Predicate {
	seen := make(map[Match]struct{})
	var out Predicate
	for _, p := range preds {
		for _, m := range p {
			if m.Pattern == "" {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// Empty reports whether the predicate can match any account.
func (p Predicate) Empty() bool {
	for _, m := range p {
		if m.Pattern != "" {
			return false
		}
	}
	return true
}

// Matches reports whether any rule accepts the account.
func (p Predicate) Matches(account string) bool {
	for _, m := range p {
		if m.Matches(account) {
			return true
		}
	}
	return false
}

// Split separates exact codes from prefixes, as consumed by the SQL layer.
func (p Predicate) Split() (exact []string, prefixes []string) {
	for _, m := range p {
		switch {
		case m.Pattern == "":
		case m.Prefix:
			prefixes = append(prefixes, m.Pattern)
		default:
			exact = append(exact, m.Pattern)
		}
	}
	return exact, prefixes
}

// Signature is an order-independent identity used for cache keys.
func (p Predicate) Signature() string {
	if p.Empty() {
		return "none"
	}
	parts := make([]string, 0, len(p))
	for _, m := range p {
		if m.Pattern != "" {
			parts = append(parts, m.String())
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
