package svg

import (
	"fmt"

	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	"github.com/odyssey-erp/ledger-analytics/internal/metrics"
)

// TrendChart draws monthly revenue and cost bars with the margin line.
func TrendChart(year int, months []metrics.MonthTrend) ([]byte, error) {
	c := Chart{
		Title:       fmt.Sprintf("Trend %d", year),
		Description: "Monthly revenue, cost and margin",
		Bars:        []Series{{Label: "Revenue"}, {Label: "Cost"}},
		Lines:       []Series{{Label: "Margin", Color: "#16a34a"}},
	}
	for _, m := range months {
		c.Labels = append(c.Labels, short(m.Name))
		c.Bars[0].Values = append(c.Bars[0].Values, m.Revenue)
		c.Bars[1].Values = append(c.Bars[1].Values, m.Cost)
		c.Lines[0].Values = append(c.Lines[0].Values, m.Margin)
	}
	return Render(c)
}

// SeasonalityChart draws the monthly revenue of a year against its prior year.
func SeasonalityChart(r growth.SeasonalityReport) ([]byte, error) {
	c := Chart{
		Title:       fmt.Sprintf("Seasonality %d", r.Year),
		Description: fmt.Sprintf("Monthly revenue %d against %d", r.Year, r.PriorYear),
		Bars:        []Series{{Label: fmt.Sprint(r.Year)}},
		Lines:       []Series{{Label: fmt.Sprint(r.PriorYear), Color: "#a855f7"}},
	}
	for _, m := range r.Months {
		c.Labels = append(c.Labels, short(m.Name))
		c.Bars[0].Values = append(c.Bars[0].Values, m.Revenue)
		c.Lines[0].Values = append(c.Lines[0].Values, m.PriorRevenue)
	}
	return Render(c)
}

func short(name string) string {
	if len(name) > 3 {
		return name[:3]
	}
	return name
}
