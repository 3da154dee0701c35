package ledger

import (
	"strings"
	"time"
)

// Default carry-forward keywords.
const (
	DefaultOpeningKeyword = "APERTURA"
	DefaultClosingKeyword = "CHIUSURA"
)

// BalanceClassifier marks opening and closing carry-forward rows at ingestion time.
// A row is an opening row when the opening keyword appears in its description, causale
// or annotation and it is dated January 1st; closing rows mirror this on December 31st.
type BalanceClassifier struct {
	OpeningKeyword string
	ClosingKeyword string
}

// NewBalanceClassifier applies the default keywords to blank values.
func NewBalanceClassifier(opening, closing string) BalanceClassifier {
	if strings.TrimSpace(opening) == "" {
		opening = DefaultOpeningKeyword
	}
	if strings.TrimSpace(closing) == "" {
		closing = DefaultClosingKeyword
	}
	return BalanceClassifier{OpeningKeyword: opening, ClosingKeyword: closing}
}

// Classify returns the entry with Opening and Closing set.
func (c BalanceClassifier) Classify(e Entry) Entry {
	_, month, day := e.Date.Date()
	e.Opening = month == time.January && day == 1 && mentions(e, c.OpeningKeyword)
	e.Closing = month == time.December && day == 31 && mentions(e, c.ClosingKeyword)
	return e
}

// ClassifyAll classifies a batch in place.
func (c BalanceClassifier) ClassifyAll(entries []Entry) {
	for i := range entries {
		entries[i] = c.Classify(entries[i])
	}
}

func mentions(e Entry, keyword string) bool {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}
	for _, field := range []string{e.Description, e.Causale, e.Annotation} {
		if strings.Contains(strings.ToUpper(field), keyword) {
			return true
		}
	}
	return false
}
