package cohort

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/odyssey-erp/ledger-analytics/internal/accounts"
	"github.com/odyssey-erp/ledger-analytics/internal/entity"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Sets compares the customer keys of two periods.
type Sets struct {
	Retained []string `json:"retained"`
	New      []string `json:"new"`
	Churned  []string `json:"churned"`
	Rate     float64  `json:"rate"`
}

// RetentionSets computes retained, new and churned keys and the retention rate
// |retained| / |prior| * 100, which is 0 when prior is empty.
func RetentionSets(current, prior map[string]struct{}) Sets {
	s := Sets{Retained: []string{}, New: []string{}, Churned: []string{}}
	for k := range current {
		if _, ok := prior[k]; ok {
			s.Retained = append(s.Retained, k)
		} else {
			s.New = append(s.New, k)
		}
	}
	for k := range prior {
		if _, ok := current[k]; !ok {
			s.Churned = append(s.Churned, k)
		}
	}
	sort.Strings(s.Retained)
	sort.Strings(s.New)
	sort.Strings(s.Churned)
	if len(prior) > 0 {
		s.Rate = ledger.Round2(float64(len(s.Retained)) / float64(len(prior)) * 100)
	}
	return s
}

// RetentionPeriod is the retention of one month or quarter against its comparison.
type RetentionPeriod struct {
	Index           int     `json:"index"`
	Name            string  `json:"name"`
	Period          string  `json:"period"`
	Comparison      string  `json:"comparison"`
	Customers       int     `json:"customers"`
	PriorCustomers  int     `json:"prior_customers"`
	Retained        int     `json:"retained"`
	New             int     `json:"new"`
	Churned         int     `json:"churned"`
	Rate            float64 `json:"rate"`
	Revenue         float64 `json:"revenue,omitempty"`
	PreviousRevenue float64 `json:"previous_revenue,omitempty"`
}

func retentionPeriod(index int, name string, p, cmp ledger.Period, s Sets, current, prior int) RetentionPeriod {
	return RetentionPeriod{
		Index:          index,
		Name:           name,
		Period:         p.String(),
		Comparison:     cmp.String(),
		Customers:      current,
		PriorCustomers: prior,
		Retained:       len(s.Retained),
		New:            len(s.New),
		Churned:        len(s.Churned),
		Rate:           s.Rate,
	}
}

// MonthlyReport compares each month with the month before it.
type MonthlyReport struct {
	Year         int               `json:"year"`
	Months       []RetentionPeriod `json:"months"`
	AverageRate  float64           `json:"average_rate"`
	TotalNew     int               `json:"total_new"`
	TotalChurned int               `json:"total_churned"`
	Analysed     int               `json:"analysed"`
	Error        string            `json:"error,omitempty"`
}

// MonthlyRetention measures customer retention month over month for fromMonth..toMonth
// of year. The average rate only counts months whose previous month had customers.
func (a *Analyzer) MonthlyRetention(ctx context.Context, year int, fromMonth, toMonth time.Month) MonthlyReport {
	out := MonthlyReport{Year: year, Months: []RetentionPeriod{}}
	if fromMonth < time.January {
		fromMonth = time.January
	}
	if toMonth > time.December || toMonth < time.January {
		toMonth = time.December
	}
	if fromMonth > toMonth {
		out.Error = fmt.Sprintf("cohort: month range %d..%d is empty", fromMonth, toMonth)
		return out
	}
	pred, err := a.revenuePredicate(ctx)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	var rateSum float64
	var valid int
	for m := fromMonth; m <= toMonth; m++ {
		month := ledger.Month{Year: year, Month: m}
		p, cmp := month.Period(), month.Add(-1).Period()
		current, _, err := a.customerKeys(ctx, pred, p, ledger.SideAny)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		prior, _, err := a.customerKeys(ctx, pred, cmp, ledger.SideAny)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		s := RetentionSets(current, prior)
		out.Months = append(out.Months, retentionPeriod(int(m), m.String(), p, cmp, s, len(current), len(prior)))
		out.TotalNew += len(s.New)
		out.TotalChurned += len(s.Churned)
		if len(prior) > 0 {
			rateSum += s.Rate
			valid++
		}
	}
	if valid > 0 {
		out.AverageRate = ledger.Round2(rateSum / float64(valid))
	}
	out.Analysed = len(out.Months)
	return out
}

// QuarterlyReport compares each quarter with the same quarter of the prior year.
type QuarterlyReport struct {
	Year           int               `json:"year"`
	Quarters       []RetentionPeriod `json:"quarters"`
	AverageRate    float64           `json:"average_rate"`
	YearRate       float64           `json:"year_rate"`
	Customers      int               `json:"customers"`
	PriorCustomers int               `json:"prior_customers"`
	Recurring      int               `json:"recurring"`
	TotalNew       int               `json:"total_new"`
	TotalChurned   int               `json:"total_churned"`
	CurrentKeys    []string          `json:"current_keys"`
	NewKeys        []string          `json:"new_keys"`
	ChurnedKeys    []string          `json:"churned_keys"`
	Error          string            `json:"error,omitempty"`
}

// QuarterlyRetention measures customer retention of each quarter of year against the
// same quarter of the prior year, plus the whole year against the prior year. Only
// revenue rows with a positive credit identify a customer.
//
// New and churned totals take the larger of the quarterly sum and the annual count. The
// annual rate replaces the quarterly average when the prior year has more customers than
// the quarterly comparisons combined.
func (a *Analyzer) QuarterlyRetention(ctx context.Context, year int) QuarterlyReport {
	out := QuarterlyReport{
		Year: year, Quarters: []RetentionPeriod{},
		CurrentKeys: []string{}, NewKeys: []string{}, ChurnedKeys: []string{},
	}
	pred, err := a.revenuePredicate(ctx)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	var rateSum float64
	var valid, priorSum int
	for q := 1; q <= 4; q++ {
		p, cmp := ledger.QuarterPeriod(year, q), ledger.QuarterPeriod(year-1, q)
		current, revenue, err := a.customerKeys(ctx, pred, p, ledger.SideCredit)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		prior, prevRevenue, err := a.customerKeys(ctx, pred, cmp, ledger.SideCredit)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		s := RetentionSets(current, prior)
		row := retentionPeriod(q, fmt.Sprintf("Q%d %d", q, year), p, cmp, s, len(current), len(prior))
		row.Revenue = ledger.Round2(revenue)
		row.PreviousRevenue = ledger.Round2(prevRevenue)
		out.Quarters = append(out.Quarters, row)

		out.TotalNew += len(s.New)
		out.TotalChurned += len(s.Churned)
		priorSum += len(prior)
		if len(prior) > 0 {
			rateSum += s.Rate
			valid++
		}
	}
	if valid > 0 {
		out.AverageRate = ledger.Round2(rateSum / float64(valid))
	}

	current, _, err := a.customerKeys(ctx, pred, ledger.YearPeriod(year), ledger.SideCredit)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	prior, _, err := a.customerKeys(ctx, pred, ledger.YearPeriod(year-1), ledger.SideCredit)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	annual := RetentionSets(current, prior)
	out.YearRate = annual.Rate
	out.Customers = len(current)
	out.PriorCustomers = len(prior)
	out.Recurring = len(annual.Retained)
	out.CurrentKeys = sortedKeys(current)
	out.NewKeys = annual.New
	out.ChurnedKeys = annual.Churned
	if len(annual.New) > out.TotalNew {
		out.TotalNew = len(annual.New)
	}
	if len(annual.Churned) > out.TotalChurned {
		out.TotalChurned = len(annual.Churned)
	}
	if len(prior) > priorSum {
		out.AverageRate = out.YearRate
	}
	return out
}

func (a *Analyzer) revenuePredicate(ctx context.Context) (ledger.Predicate, error) {
	pred, err := accounts.Union(ctx, a.accounts, a.tenant, accounts.CustomerRevenueCategories...)
	if err != nil {
		a.logger.Error("revenue predicate unavailable", slog.Any("error", err))
		return nil, err
	}
	return pred, nil
}

// customerKeys collects the cohort keys of annotated revenue rows in p, with the credit
// total of those rows.
func (a *Analyzer) customerKeys(ctx context.Context, pred ledger.Predicate, p ledger.Period, side ledger.Side) (map[string]struct{}, float64, error) {
	keys := make(map[string]struct{})
	var revenue float64
	err := a.agg.Scan(ctx, ledger.Query{
		Predicate:      pred,
		Period:         p,
		Side:           side,
		WithAnnotation: true,
		Exclusion:      ledger.ExcludeBoth,
	}, func(e ledger.Entry) error {
		if k := entity.Normalize(e.Annotation).Key; k != "" {
			keys[k] = struct{}{}
		}
		revenue += e.Credit
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return keys, revenue, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
