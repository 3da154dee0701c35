package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/odyssey-erp/ledger-analytics/internal/cohort"
	"github.com/odyssey-erp/ledger-analytics/internal/metrics"
)

func TestWriteDashboardCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteDashboardCSV(buf, metrics.Dashboard{Period: "2024-01-01..2024-12-31", Revenue: 1000, EBITDA: 250.5}); err != nil {
		t.Fatalf("dashboard csv error: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	if records[1][1] != "2024-01-01..2024-12-31" {
		t.Fatalf("expected period row, got %v", records[1])
	}
	if records[2][0] != "Revenue" || records[2][1] != "1000.00" {
		t.Fatalf("unexpected revenue row %v", records[2])
	}
}

func TestWriteEntitiesCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	err := WriteEntitiesCSV(buf, []cohort.EntityAggregate{{Name: "ACME, Srl", Net: 800, InvoiceCount: 2, Trend: cohort.TrendGrowing}})
	if err != nil {
		t.Fatalf("entities csv error: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	if len(records) != 2 || records[1][0] != "ACME, Srl" || records[1][7] != "growing" {
		t.Fatalf("unexpected records %v", records)
	}
}

func TestPDFExporterRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/chromium/convert/html" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, _, err := r.FormFile("files")
		if err != nil {
			t.Errorf("missing html file: %v", err)
			return
		}
		html, _ := io.ReadAll(file)
		if !strings.Contains(string(html), "<svg>chart</svg>") || !strings.Contains(string(html), "Beta &amp; Co") {
			t.Errorf("unexpected html %s", html)
		}
		_, _ = w.Write([]byte("PDF"))
	}))
	defer srv.Close()

	exporter := &PDFExporter{Endpoint: srv.URL}
	data, err := exporter.RenderDashboard(context.Background(), DashboardPayload{
		Dashboard: metrics.Dashboard{Period: "2024-01-01..2024-12-31"},
		TrendSVG:  []byte("<svg>chart</svg>"),
		Customers: []cohort.EntityAggregate{{Name: "Beta & Co", Net: 10}},
	})
	if err != nil {
		t.Fatalf("pdf render error: %v", err)
	}
	if string(data) != "PDF" {
		t.Fatalf("unexpected payload %q", string(data))
	}
}

func TestPDFExporterRequiresEndpoint(t *testing.T) {
	if _, err := (&PDFExporter{}).RenderDashboard(context.Background(), DashboardPayload{}); err == nil {
		t.Fatalf("expected endpoint error")
	}
}

func TestPDFExporterPing(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exporter := &PDFExporter{Endpoint: srv.URL + "/", Client: srv.Client()}
	if err := exporter.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	healthy.Store(false)
	if err := exporter.Ping(context.Background()); err == nil {
		t.Fatalf("expected unhealthy gotenberg to fail")
	}
}
