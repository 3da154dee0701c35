package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

const journal = `date,account,debit,credit,description,protocol,annotation
2024-01-01,1800,100,0,Saldo APERTURA,,
2024-03-05,7051,0,250,Vendita,P1,ACME Srl
2024-12-31,7051,250,0,Saldo CHIUSURA,,
`

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

type recordingNotifier struct {
	results []ledger.ImportResult
	sources []string
}

func (r *recordingNotifier) NotifyImported(_ context.Context, result ledger.ImportResult, source string) error {
	r.results = append(r.results, result)
	r.sources = append(r.sources, source)
	return nil
}

func TestImportStoresAndNotifies(t *testing.T) {
	store := ledger.NewMemoryStore()
	inv := &countingInvalidator{}
	notifier := &recordingNotifier{}
	stdout := new(bytes.Buffer)

	summary, err := Import(context.Background(), ImportOptions{
		Source:      "nightly",
		Reader:      strings.NewReader(journal),
		Classifier:  ledger.NewBalanceClassifier("", ""),
		Importer:    store,
		Invalidator: inv,
		Notifier:    notifier,
		Stdout:      stdout,
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), summary.Rows)
	require.Equal(t, 1, summary.Openings)
	require.Equal(t, 1, summary.Closings)
	require.True(t, summary.Notified)
	require.Equal(t, 3, store.Len())
	require.Equal(t, 1, inv.calls)
	require.Equal(t, []string{"nightly"}, notifier.sources)
	require.Equal(t, summary.BatchID, notifier.results[0].BatchID)

	var printed map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &printed))
	require.Equal(t, "nightly", printed["source"])
	require.EqualValues(t, 3, printed["rows"])
	require.Equal(t, summary.BatchID.String(), printed["batch_id"])
}

func TestImportDryRunLeavesStoreUntouched(t *testing.T) {
	store := ledger.NewMemoryStore()
	inv := &countingInvalidator{}
	stdout := new(bytes.Buffer)

	summary, err := Import(context.Background(), ImportOptions{
		Reader:      strings.NewReader(journal),
		Classifier:  ledger.NewBalanceClassifier("", ""),
		Importer:    store,
		Invalidator: inv,
		DryRun:      true,
		Stdout:      stdout,
	})
	require.NoError(t, err)
	require.True(t, summary.DryRun)
	require.Equal(t, "cli", summary.Source)
	require.Equal(t, int64(3), summary.Rows)
	require.Equal(t, 1, summary.Openings)
	require.Equal(t, 1, summary.Closings)
	require.Zero(t, store.Len())
	require.Zero(t, inv.calls)
}

func TestImportRejectsBadInput(t *testing.T) {
	_, err := Import(context.Background(), ImportOptions{Reader: strings.NewReader("date,debit\n")})
	require.Error(t, err)

	_, err = Import(context.Background(), ImportOptions{
		Reader:     strings.NewReader("date,account,debit\n"),
		Classifier: ledger.NewBalanceClassifier("", ""),
		Importer:   ledger.NewMemoryStore(),
	})
	require.ErrorContains(t, err, "no rows")

	_, err = Import(context.Background(), ImportOptions{
		Reader:     strings.NewReader("date,account,debit\n2024-13-40,7051,1\n"),
		Classifier: ledger.NewBalanceClassifier("", ""),
		Importer:   ledger.NewMemoryStore(),
	})
	require.Error(t, err)
}

func TestImportReportsInvalidationFailure(t *testing.T) {
	store := ledger.NewMemoryStore()
	inv := &countingInvalidator{err: errors.New("redis down")}
	summary, err := Import(context.Background(), ImportOptions{
		Reader:      strings.NewReader(journal),
		Classifier:  ledger.NewBalanceClassifier("", ""),
		Importer:    store,
		Invalidator: inv,
		Stdout:      new(bytes.Buffer),
	})
	require.ErrorContains(t, err, "invalidate cache")
	require.Equal(t, int64(3), summary.Rows)
	require.Equal(t, 3, store.Len())
}

func TestHashToken(t *testing.T) {
	_, err := HashToken("short", bcrypt.MinCost)
	require.Error(t, err)

	hash, err := HashToken("  0123456789abcdef-import  ", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("0123456789abcdef-import")))
}

func TestJobsCLINotConfigured(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "warmup", 2024, 12)
	require.Error(t, err)
	require.Error(t, c.NotifyImported(context.Background(), ledger.ImportResult{}, "cli"))
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
}
