package settings

import (
	"context"
	"testing"
	"time"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

func TestTerritory(t *testing.T) {
	if got := (Company{City: "Bologna", Country: "Italia"}).Territory(); got != "Bologna, Italia" {
		t.Fatalf("unexpected territory %q", got)
	}
	if got := (Company{}).Territory(); got != "Italia" {
		t.Fatalf("expected default country, got %q", got)
	}
}

func TestStaticDefaults(t *testing.T) {
	c, err := Static{ShareCapital: 10000}.Company(context.Background(), accounts.DefaultTenant)
	if err != nil {
		t.Fatalf("company: %v", err)
	}
	if c.OpeningKeyword != ledger.DefaultOpeningKeyword || c.ClosingKeyword != ledger.DefaultClosingKeyword {
		t.Fatalf("expected default keywords, got %+v", c)
	}
	entry := c.Classifier().Classify(ledger.Entry{
		Date:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Description: "Chiusura esercizio",
	})
	if !entry.Closing {
		t.Fatalf("expected closing flag")
	}
}

func TestApply(t *testing.T) {
	var c Company
	apply(&c, KeyShareCapital, " 50000.50 ")
	apply(&c, KeyOpeningKeyword, "OPEN")
	apply(&c, "UNKNOWN", "x")
	if c.ShareCapital != 50000.50 || c.OpeningKeyword != "OPEN" {
		t.Fatalf("unexpected company %+v", c)
	}
}
