package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/odyssey-erp/ledger-analytics/internal/cohort"
	"github.com/odyssey-erp/ledger-analytics/internal/metrics"
)

// DashboardPayload aggregates the reports printed in the PDF dashboard.
type DashboardPayload struct {
	Dashboard metrics.Dashboard
	Trend     []metrics.MonthTrend
	TrendSVG  []byte
	Customers []cohort.EntityAggregate
}

// PDFExporter converts the dashboard HTML to PDF through a Gotenberg endpoint.
type PDFExporter struct {
	Endpoint string
	Client   *http.Client
}

// RenderDashboard sends the dashboard HTML to Gotenberg and returns the PDF bytes.
func (p *PDFExporter) RenderDashboard(ctx context.Context, payload DashboardPayload) ([]byte, error) {
	if p == nil {
		return nil, errors.New("export: pdf exporter not initialised")
	}
	endpoint := strings.TrimRight(p.Endpoint, "/")
	if endpoint == "" {
		return nil, errors.New("export: gotenberg endpoint required")
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	var html bytes.Buffer
	if err := dashboardTemplate.Execute(&html, newDashboardView(payload)); err != nil {
		return nil, fmt.Errorf("export: render html: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(html.Bytes()); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export: gotenberg request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("export: gotenberg response %d: %s", resp.StatusCode, string(data))
	}
	return io.ReadAll(resp.Body)
}

// Ping checks that the Gotenberg service answers its health endpoint.
func (p *PDFExporter) Ping(ctx context.Context) error {
	if p == nil || p.Endpoint == "" {
		return errors.New("export: gotenberg endpoint required")
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.Endpoint, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("export: gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

type dashboardView struct {
	Period    string
	Territory string
	Metrics   []metricRow
	Trend     []metrics.MonthTrend
	Chart     template.HTML
	Customers []cohort.EntityAggregate
}

func newDashboardView(p DashboardPayload) dashboardView {
	return dashboardView{
		Period:    p.Dashboard.Period,
		Territory: p.Dashboard.Territory,
		Metrics:   dashboardRows(p.Dashboard),
		Trend:     p.Trend,
		// The chart is produced by the svg package, which escapes every label.
		Chart:     template.HTML(p.TrendSVG),
		Customers: p.Customers,
	}
}

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"money": formatFloat,
}).Parse(`<html><head><meta charset="utf-8"><style>
body{font-family:sans-serif;margin:24px;}h1{font-size:20px;}table{width:100%;border-collapse:collapse;margin-bottom:16px;}
th,td{border:1px solid #ddd;padding:6px;text-align:right;}th{background:#f5f5f5;}.label{text-align:left;}section{margin-bottom:24px;}
</style></head><body>
<h1>Ledger Analytics {{.Period}}</h1>{{if .Territory}}<p>{{.Territory}}</p>{{end}}
<section><h2>Headline metrics</h2><table><tbody>
{{range .Metrics}}<tr><td class="label">{{.Label}}</td><td>{{money .Value}}</td></tr>{{end}}
</tbody></table></section>
{{if .Chart}}<section>{{.Chart}}</section>{{end}}
{{if .Trend}}<section><h2>Monthly trend</h2><table><thead><tr><th class="label">Month</th><th>Revenue</th><th>Cost</th><th>Margin</th></tr></thead><tbody>
{{range .Trend}}<tr><td class="label">{{.Name}}</td><td>{{money .Revenue}}</td><td>{{money .Cost}}</td><td>{{money .Margin}}</td></tr>{{end}}
</tbody></table></section>{{end}}
{{if .Customers}}<section><h2>Top customers</h2><table><thead><tr><th class="label">Customer</th><th>Net</th><th>Share %</th><th>Trend</th></tr></thead><tbody>
{{range .Customers}}<tr><td class="label">{{.Name}}</td><td>{{money .Net}}</td><td>{{money .Share}}</td><td>{{.Trend}}</td></tr>{{end}}
</tbody></table></section>{{end}}
</body></html>`))
