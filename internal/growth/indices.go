package growth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// NoteInsufficientData is reported instead of a CAGR when no month with revenue precedes
// the last one, or the last month has none.
const NoteInsufficientData = "insufficient data"

// yoyLag is the distance, in months, of the year-over-year comparison.
const yoyLag = 12

// MonthRow is one calendar month of the growth series.
type MonthRow struct {
	Period               string   `json:"period"`
	Year                 int      `json:"year"`
	Month                int      `json:"month"`
	Name                 string   `json:"name"`
	Revenue              float64  `json:"revenue"`
	Cost                 float64  `json:"cost"`
	Margin               float64  `json:"margin"`
	SalesTransactions    int      `json:"sales_transactions"`
	PurchaseTransactions int      `json:"purchase_transactions"`
	AverageTransaction   float64  `json:"average_transaction"`
	MarginPercent        float64  `json:"margin_percent"`
	RevenueMoM           float64  `json:"revenue_mom"`
	CostMoM              float64  `json:"cost_mom"`
	MarginMoM            float64  `json:"margin_mom"`
	TransactionsMoM      float64  `json:"transactions_mom"`
	RevenueYoY           *float64 `json:"revenue_yoy"`
	CostYoY              *float64 `json:"cost_yoy"`
	MarginYoY            *float64 `json:"margin_yoy"`
}

// Rollup is a quarter or a year summed from monthly rows.
type Rollup struct {
	Period               string  `json:"period"`
	Year                 int     `json:"year"`
	Quarter              int     `json:"quarter,omitempty"`
	Revenue              float64 `json:"revenue"`
	Cost                 float64 `json:"cost"`
	Margin               float64 `json:"margin"`
	SalesTransactions    int     `json:"sales_transactions"`
	PurchaseTransactions int     `json:"purchase_transactions"`
	AverageTransaction   float64 `json:"average_transaction"`
	MarginPercent        float64 `json:"margin_percent"`
	RevenueGrowth        float64 `json:"revenue_growth"`
	MarginGrowth         float64 `json:"margin_growth"`
}

// Indicators summarise the whole window.
type Indicators struct {
	RevenueCAGR          float64  `json:"revenue_cagr"`
	CAGRStart            string   `json:"cagr_start,omitempty"`
	CAGREnd              string   `json:"cagr_end,omitempty"`
	CAGRMonths           int      `json:"cagr_months,omitempty"`
	CAGRNote             string   `json:"cagr_note,omitempty"`
	MarginCAGR           *float64 `json:"margin_cagr"`
	MarginChange         *float64 `json:"margin_change,omitempty"`
	MarginChangePercent  *float64 `json:"margin_change_percent,omitempty"`
	AverageMoM           float64  `json:"average_mom"`
	AverageMarginMoM     float64  `json:"average_margin_mom"`
	LastQuarterTrend     float64  `json:"last_quarter_trend"`
	InitialMarginPercent float64  `json:"initial_margin_percent"`
	FinalMarginPercent   float64  `json:"final_margin_percent"`
	ProfitabilityChange  float64  `json:"profitability_change"`
}

// Report is the growth analysis of one window.
type Report struct {
	Start      string     `json:"start"`
	End        string     `json:"end"`
	Months     []MonthRow `json:"months"`
	Quarters   []Rollup   `json:"quarters"`
	Years      []Rollup   `json:"years"`
	Indicators Indicators `json:"indicators"`
	Error      string     `json:"error,omitempty"`
}

// Window returns the months-long span ending at end. The start is counted back from the
// day after end, so a window ending on a month end covers whole calendar months.
func Window(end time.Time, months int) ledger.Period {
	if months <= 0 {
		months = DefaultWindow
	}
	end = ledger.Day(end)
	return ledger.Period{Start: end.AddDate(0, 0, 1).AddDate(0, -months, 0), End: end}
}

// Indices builds the growth report for the months-long window ending at end. Every
// calendar month of the window is reported, months without movements as zero.
func (a *Analyzer) Indices(ctx context.Context, end time.Time, months int) Report {
	window := Window(end, months)
	report := Report{Start: window.Start.Format(ledger.DateLayout), End: window.End.Format(ledger.DateLayout)}

	revPred, err := a.predicate(ctx, accounts.TradingRevenueCategories...)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	costPred, err := a.predicate(ctx, accounts.GrowthCostCategories...)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	rev, err := a.monthly(ctx, revPred, revPred, window, ledger.CreditMinusDebit, ledger.SideCredit, ledger.DistinctProtocol)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	cost, err := a.monthly(ctx, costPred, costPred, window, ledger.DebitMinusCredit, ledger.SideDebit, ledger.DistinctProtocol)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.Months = buildMonths(window.Months(), rev, cost)
	report.Quarters = rollup(report.Months, true)
	report.Years = rollup(report.Months, false)
	report.Indicators = indicators(report.Months)
	a.logger.Debug("growth indices computed", slog.String("window", window.String()), slog.Int("months", len(report.Months)))
	return report
}

func buildMonths(months []ledger.Month, rev, cost series) []MonthRow {
	rows := make([]MonthRow, len(months))
	for i, m := range months {
		r := rev.values[m]
		c := cost.values[m]
		row := MonthRow{
			Period:               m.Key(),
			Year:                 m.Year,
			Month:                int(m.Month),
			Name:                 m.Month.String(),
			Revenue:              r,
			Cost:                 c,
			Margin:               r - c,
			SalesTransactions:    rev.counts[m],
			PurchaseTransactions: cost.counts[m],
		}
		if row.SalesTransactions > 0 {
			row.AverageTransaction = r / float64(row.SalesTransactions)
		}
		row.MarginPercent = Share(row.Margin, r)
		if i > 0 {
			prev := rows[i-1]
			row.RevenueMoM = Delta(r, prev.Revenue)
			row.CostMoM = Delta(c, prev.Cost)
			row.MarginMoM = MarginDelta(row.Margin, prev.Margin)
			row.TransactionsMoM = Delta(float64(row.SalesTransactions), float64(prev.SalesTransactions))
		}
		if i >= yoyLag {
			prior := rows[i-yoyLag]
			row.RevenueYoY = ptr(Delta(r, prior.Revenue))
			row.CostYoY = ptr(Delta(c, prior.Cost))
			row.MarginYoY = ptr(MarginDelta(row.Margin, prior.Margin))
		}
		rows[i] = row
	}
	for i := range rows {
		roundMonth(&rows[i])
	}
	return rows
}

func roundMonth(r *MonthRow) {
	r.Revenue, r.Cost, r.Margin = round(r.Revenue), round(r.Cost), round(r.Margin)
	r.AverageTransaction, r.MarginPercent = round(r.AverageTransaction), round(r.MarginPercent)
	r.RevenueMoM, r.CostMoM = round(r.RevenueMoM), round(r.CostMoM)
	r.MarginMoM, r.TransactionsMoM = round(r.MarginMoM), round(r.TransactionsMoM)
	for _, p := range []*float64{r.RevenueYoY, r.CostYoY, r.MarginYoY} {
		if p != nil {
			*p = round(*p)
		}
	}
}

// rollup sums monthly rows by quarter (or by year) and derives growth between
// consecutive rollups.
func rollup(months []MonthRow, quarterly bool) []Rollup {
	var out []Rollup
	index := map[string]int{}
	for _, m := range months {
		key := fmt.Sprintf("%04d", m.Year)
		quarter := 0
		if quarterly {
			quarter = (m.Month-1)/3 + 1
			key = fmt.Sprintf("%04d-Q%d", m.Year, quarter)
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Rollup{Period: key, Year: m.Year, Quarter: quarter})
		}
		r := &out[i]
		r.Revenue += m.Revenue
		r.Cost += m.Cost
		r.Margin += m.Margin
		r.SalesTransactions += m.SalesTransactions
		r.PurchaseTransactions += m.PurchaseTransactions
	}
	for i := range out {
		r := &out[i]
		if r.SalesTransactions > 0 {
			r.AverageTransaction = r.Revenue / float64(r.SalesTransactions)
		}
		r.MarginPercent = Share(r.Margin, r.Revenue)
		if i > 0 {
			r.RevenueGrowth = Delta(r.Revenue, out[i-1].Revenue)
			r.MarginGrowth = MarginDelta(r.Margin, out[i-1].Margin)
		}
	}
	for i := range out {
		r := &out[i]
		r.Revenue, r.Cost, r.Margin = round(r.Revenue), round(r.Cost), round(r.Margin)
		r.AverageTransaction, r.MarginPercent = round(r.AverageTransaction), round(r.MarginPercent)
		r.RevenueGrowth, r.MarginGrowth = round(r.RevenueGrowth), round(r.MarginGrowth)
	}
	return out
}

func indicators(months []MonthRow) Indicators {
	var ind Indicators
	if len(months) == 0 {
		ind.CAGRNote = NoteInsufficientData
		return ind
	}
	first := -1
	for i, m := range months {
		if m.Revenue > 0 {
			first = i
			break
		}
	}
	last := months[len(months)-1]

	elapsed := 0
	if first >= 0 {
		elapsed = len(months) - first - 1
	}
	if rate, ok := CAGR(revenueAt(months, first), last.Revenue, elapsed); ok {
		ind.RevenueCAGR = round(rate)
		ind.CAGRStart = months[first].Period
		ind.CAGREnd = last.Period
		ind.CAGRMonths = elapsed
	} else {
		ind.CAGRNote = NoteInsufficientData
	}

	if first >= 0 {
		firstMargin := months[first].Margin
		if rate, ok := CAGR(firstMargin, last.Margin, elapsed); ok {
			ind.MarginCAGR = ptr(round(rate))
		} else {
			ind.MarginChange = ptr(round(last.Margin - firstMargin))
			change := 0.0
			if firstMargin != 0 {
				change = MarginDelta(last.Margin, firstMargin)
			}
			ind.MarginChangePercent = ptr(round(change))
		}
		ind.InitialMarginPercent = round(Share(firstMargin, months[first].Revenue))
	} else {
		ind.MarginChange = ptr(0)
		ind.MarginChangePercent = ptr(0)
	}

	// The first month has no predecessor, so its MoM is left out of the averages.
	moved := months[1:]
	if len(moved) > 0 {
		var mom, marginMoM float64
		for _, m := range moved {
			mom += m.RevenueMoM
			marginMoM += m.MarginMoM
		}
		ind.AverageMoM = round(mom / float64(len(moved)))
		ind.AverageMarginMoM = round(marginMoM / float64(len(moved)))

		tail := moved
		if len(tail) > 3 {
			tail = tail[len(tail)-3:]
		}
		var trend float64
		for _, m := range tail {
			trend += m.RevenueMoM
		}
		ind.LastQuarterTrend = round(trend / float64(len(tail)))
	}

	ind.FinalMarginPercent = round(Share(last.Margin, last.Revenue))
	ind.ProfitabilityChange = round(ind.FinalMarginPercent - ind.InitialMarginPercent)
	return ind
}

func ptr(v float64) *float64 { return &v }

func revenueAt(months []MonthRow, i int) float64 {
	if i < 0 {
		return 0
	}
	return months[i].Revenue
}
