package ledger

import (
	"fmt"
	"time"
)

// DateLayout is the canonical wire format for ledger dates.
const DateLayout = "2006-01-02"

// AllTime is the lower bound used by cumulative-to-date aggregations.
var AllTime = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Period is a closed date range; both Start and End are included.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewPeriod builds a period, rejecting inverted ranges.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: Day(start), End: Day(end)}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return p, nil
}

// ParsePeriod parses two YYYY-MM-DD dates.
func ParsePeriod(from, to string) (Period, error) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return Period{}, fmt.Errorf("%w: start %q", ErrInvalidPeriod, from)
	}
	end, err := time.Parse(DateLayout, to)
	if err != nil {
		return Period{}, fmt.Errorf("%w: end %q", ErrInvalidPeriod, to)
	}
	return NewPeriod(start, end)
}

// Through returns the cumulative period from AllTime to end.
func Through(end time.Time) Period {
	return Period{Start: AllTime, End: Day(end)}
}

// MonthPeriod covers one calendar month.
func MonthPeriod(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

// QuarterPeriod covers quarter q (1..4) of year.
func QuarterPeriod(year, q int) Period {
	start := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 3, -1)}
}

// YearPeriod covers one calendar year.
func YearPeriod(year int) Period {
	return Period{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Valid reports whether the period is set and not inverted.
func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && !p.End.Before(p.Start)
}

// Days counts calendar days, both ends included.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// Contains reports whether t falls on a day inside the period.
func (p Period) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Previous returns the period of equal length ending the day before Start.
func (p Period) Previous() Period {
	end := p.Start.AddDate(0, 0, -1)
	return Period{Start: end.Add(-p.End.Sub(p.Start)), End: end}
}

// Months lists every calendar month touched by the period.
func (p Period) Months() []Month {
	if !p.Valid() {
		return nil
	}
	var out []Month
	last := MonthOf(p.End)
	for m := MonthOf(p.Start); !last.Before(m); m = m.Add(1) {
		out = append(out, m)
	}
	return out
}

func (p Period) String() string {
	return p.Start.Format(DateLayout) + ".." + p.End.Format(DateLayout)
}

// Month identifies a calendar month.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Add moves n months forward (or backward when n < 0).
func (m Month) Add(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return MonthOf(t)
}

// Before reports whether m precedes o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Quarter returns 1..4.
func (m Month) Quarter() int {
	return (int(m.Month)-1)/3 + 1
}

// Period covers the whole month.
func (m Month) Period() Period {
	return MonthPeriod(m.Year, m.Month)
}

// Key formats the month as YYYY-MM.
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
