// Package ledger holds the journal data model shared by every analytics component:
// entries, periods, account predicates and the query contract of the ledger store.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors exposed by the ledger package.
var (
	ErrInvalidPeriod = errors.New("ledger: invalid period")
	ErrInvalidEntry  = errors.New("ledger: invalid entry")
)

// Entry is one journal row. Entries are append-only; the Opening and Closing flags are
// assigned once at ingestion by a BalanceClassifier.
type Entry struct {
	ID           int64     `json:"id,omitempty"`
	BatchID      uuid.UUID `json:"batch_id,omitempty"`
	Date         time.Time `json:"date"`
	Debit        float64   `json:"debit"`
	Credit       float64   `json:"credit"`
	Account      string    `json:"account"`
	Protocol     string    `json:"protocol,omitempty"`
	Annotation   string    `json:"annotation,omitempty"`
	Description  string    `json:"description,omitempty"`
	Causale      string    `json:"causale,omitempty"`
	Registration string    `json:"registration,omitempty"`
	Opening      bool      `json:"opening"`
	Closing      bool      `json:"closing"`
}

// Validate checks the minimal shape required to store an entry.
func (e Entry) Validate() error {
	if e.Date.IsZero() {
		return errors.Join(ErrInvalidEntry, errors.New("date is required"))
	}
	if e.Account == "" {
		return errors.Join(ErrInvalidEntry, errors.New("account is required"))
	}
	return nil
}
