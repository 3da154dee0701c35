// Package cli holds the testable bodies of the ledgerctl commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Invalidator drops cached aggregates after the ledger changed.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Notifier announces a stored batch to the background workers.
type Notifier interface {
	NotifyImported(ctx context.Context, result ledger.ImportResult, source string) error
}

// ImportOptions configures one CSV import run.
type ImportOptions struct {
	Source      string
	Reader      io.Reader
	Classifier  ledger.BalanceClassifier
	Importer    ledger.Importer
	Invalidator Invalidator
	Notifier    Notifier
	DryRun      bool
	Stdout      io.Writer
}

// ImportSummary is printed after each run.
type ImportSummary struct {
	ledger.ImportResult
	Source   string `json:"source"`
	DryRun   bool   `json:"dry_run"`
	Notified bool   `json:"notified"`
}

// Import parses a journal CSV and stores it. A dry run only validates and classifies.
func Import(ctx context.Context, opts ImportOptions) (ImportSummary, error) {
	if opts.Reader == nil {
		return ImportSummary{}, errors.New("import: reader required")
	}
	entries, err := ledger.ReadCSV(opts.Reader)
	if err != nil {
		return ImportSummary{}, err
	}
	if len(entries) == 0 {
		return ImportSummary{}, errors.New("import: no rows")
	}
	summary := ImportSummary{Source: opts.Source, DryRun: opts.DryRun}
	if summary.Source == "" {
		summary.Source = "cli"
	}

	if opts.DryRun {
		for _, e := range entries {
			if err := e.Validate(); err != nil {
				return ImportSummary{}, err
			}
		}
		opts.Classifier.ClassifyAll(entries)
		for _, e := range entries {
			if e.Opening {
				summary.Openings++
			}
			if e.Closing {
				summary.Closings++
			}
		}
		summary.Rows = int64(len(entries))
		return summary, writeJSON(opts.Stdout, summary)
	}

	if opts.Importer == nil {
		return ImportSummary{}, errors.New("import: store not configured")
	}
	result, err := opts.Importer.Import(ctx, opts.Classifier, entries)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("import: store batch: %w", err)
	}
	summary.ImportResult = result

	if opts.Invalidator != nil {
		if err := opts.Invalidator.Invalidate(ctx); err != nil {
			return summary, fmt.Errorf("import: invalidate cache: %w", err)
		}
	}
	if opts.Notifier != nil {
		if err := opts.Notifier.NotifyImported(ctx, result, summary.Source); err != nil {
			return summary, fmt.Errorf("import: notify workers: %w", err)
		}
		summary.Notified = true
	}
	return summary, writeJSON(opts.Stdout, summary)
}

// WriteJSON prints v indented, defaulting to stdout.
func WriteJSON(w io.Writer, v any) error {
	return writeJSON(w, v)
}

func writeJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
