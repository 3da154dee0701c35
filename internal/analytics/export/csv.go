// Package export renders analytics reports as CSV downloads and PDF documents.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/ledger-analytics/internal/cohort"
	"github.com/odyssey-erp/ledger-analytics/internal/metrics"
)

// WriteDashboardCSV serialises the headline metrics of a dashboard as metric/value rows.
func WriteDashboardCSV(w io.Writer, d metrics.Dashboard) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	if err := writer.Write([]string{"Period", d.Period}); err != nil {
		return err
	}
	for _, row := range dashboardRows(d) {
		if err := writer.Write([]string{row.Label, formatFloat(row.Value)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTrendCSV emits the monthly revenue, cost and margin of a year.
func WriteTrendCSV(w io.Writer, months []metrics.MonthTrend) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Month", "Revenue", "Cost", "Margin"}); err != nil {
		return err
	}
	for _, m := range months {
		if err := writer.Write([]string{
			m.Name,
			formatFloat(m.Revenue),
			formatFloat(m.Cost),
			formatFloat(m.Margin),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteEntitiesCSV emits ranked customers or suppliers with their trend.
func WriteEntitiesCSV(w io.Writer, entities []cohort.EntityAggregate) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Name", "Gross", "Credit Notes", "Net", "Invoices", "Previous", "Variation", "Trend", "Tier", "Share"}); err != nil {
		return err
	}
	for _, e := range entities {
		if err := writer.Write([]string{
			e.Name,
			formatFloat(e.Gross),
			formatFloat(e.CreditNotes),
			formatFloat(e.Net),
			strconv.Itoa(e.InvoiceCount),
			formatFloat(e.Previous),
			formatFloat(e.Variation),
			string(e.Trend),
			string(e.Tier),
			formatFloat(e.Share),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

type metricRow struct {
	Label string
	Value float64
}

func dashboardRows(d metrics.Dashboard) []metricRow {
	return []metricRow{
		{"Revenue", d.Revenue},
		{"Cost", d.Cost},
		{"Operating Cost", d.OperatingCost},
		{"Direct Cost", d.DirectCost},
		{"Indirect Cost", d.IndirectCost},
		{"Cost of Goods Sold", d.COGS},
		{"Gross Margin", d.GrossMargin},
		{"Gross Margin %", d.GrossMarginPercent},
		{"EBITDA", d.EBITDA},
		{"EBITDA Margin %", d.EBITDAMargin},
		{"Net Income", d.NetIncome},
		{"Net Margin %", d.NetMargin},
		{"Break-even Revenue", d.BreakEven},
		{"ROI %", d.ROI},
		{"ROE %", d.ROE},
		{"ROS %", d.ROS},
		{"Debt Ratio", d.DebtRatio},
		{"Current Ratio", d.CurrentRatio},
		{"Quick Ratio", d.QuickRatio},
		{"Overhead Ratio %", d.OverheadRatio},
		{"DSO", d.DSO},
		{"DPO", d.DPO},
		{"Equity", d.Equity},
		{"Financial Charges", d.FinancialCharges},
		{"Depreciation", d.Depreciation},
		{"Taxes", d.Taxes},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
