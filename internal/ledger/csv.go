package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{DateLayout, "02/01/2006", "2006/01/02"}

// ReadCSV parses a header-driven journal export. Recognised columns: date, debit, credit,
// account, protocol, annotation, description, causale, registration.
func ReadCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ledger: read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "account"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("ledger: csv column %q missing", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var entries []Entry
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("ledger: csv line %d: %w", line, err)
		}
		date, err := parseDate(field(record, "date"))
		if err != nil {
			return nil, fmt.Errorf("ledger: csv line %d: %w", line, err)
		}
		debit, err := parseAmount(field(record, "debit"))
		if err != nil {
			return nil, fmt.Errorf("ledger: csv line %d debit: %w", line, err)
		}
		credit, err := parseAmount(field(record, "credit"))
		if err != nil {
			return nil, fmt.Errorf("ledger: csv line %d credit: %w", line, err)
		}
		entry := Entry{
			Date:         date,
			Debit:        debit,
			Credit:       credit,
			Account:      field(record, "account"),
			Protocol:     field(record, "protocol"),
			Annotation:   field(record, "annotation"),
			Description:  field(record, "description"),
			Causale:      field(record, "causale"),
			Registration: field(record, "registration"),
		}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("ledger: csv line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// parseAmount accepts "1234.56" and the Italian "1.234,56" notation.
func parseAmount(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
