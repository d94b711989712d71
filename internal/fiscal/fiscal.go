// Package fiscal converts calendar period-end dates into fiscal year/quarter
// identifiers and validates filing dates against the periods they report.
package fiscal

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used throughout the filings data.
const DateLayout = "2006-01-02"

// DefaultFiscalYearEndMonth is assumed when a company's fiscal year end cannot
// be detected from its own filings.
const DefaultFiscalYearEndMonth = 12

// ErrInvalidInput is returned when a required argument is missing or does not
// parse to a valid calendar date.
var ErrInvalidInput = errors.New("invalid input")

// Period is the canonical fiscal identity of a quarter end.
type Period struct {
	FiscalYear    int    `json:"fiscal_year"`
	FiscalQuarter string `json:"fiscal_quarter"`
	PeriodID      string `json:"period_id"`
}

// ParseDate parses a YYYY-MM-DD date. RFC 3339 timestamps are accepted and
// reduced to their calendar date; anything else is rejected.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// DerivePeriod computes the fiscal year, quarter and period id for a quarter
// ending on endDate, for a company whose fiscal year ends in fiscalYearEndMonth.
//
// Once the calendar month has passed the fiscal-year-end month the period
// belongs to the next fiscal year. A quarter ending in the fiscal-year-end
// month itself is Q4 of the year that is ending.
func DerivePeriod(endDate string, fiscalYearEndMonth int) (Period, error) {
	if strings.TrimSpace(endDate) == "" {
		return Period{}, fmt.Errorf("%w: end date is required", ErrInvalidInput)
	}
	if fiscalYearEndMonth < 1 || fiscalYearEndMonth > 12 {
		return Period{}, fmt.Errorf("%w: fiscal year end month %d out of range", ErrInvalidInput, fiscalYearEndMonth)
	}
	end, ok := ParseDate(endDate)
	if !ok {
		return Period{}, fmt.Errorf("%w: unparseable end date %q", ErrInvalidInput, endDate)
	}

	month := int(end.Month())
	fiscalYear := end.Year()
	if month > fiscalYearEndMonth {
		fiscalYear++
	}

	monthsFromFYEnd := (month - fiscalYearEndMonth + 12) % 12
	if monthsFromFYEnd == 0 {
		monthsFromFYEnd = 12
	}
	quarter := (monthsFromFYEnd + 2) / 3

	return Period{
		FiscalYear:    fiscalYear,
		FiscalQuarter: fmt.Sprintf("Q%d", quarter),
		PeriodID:      FormatPeriodID(fiscalYear, quarter),
	}, nil
}

// FormatPeriodID renders the canonical FY<year>Q<n> identifier.
func FormatPeriodID(fiscalYear, quarter int) string {
	return fmt.Sprintf("FY%dQ%d", fiscalYear, quarter)
}

// FilingDelta returns the number of days between the quarter end and the
// filing date. Positive means the filing arrived after the quarter closed.
// ok is false when either date is missing or unparseable.
func FilingDelta(quarterEndDate, filingDate string) (days int, ok bool) {
	end, ok := ParseDate(quarterEndDate)
	if !ok {
		return 0, false
	}
	filed, ok := ParseDate(filingDate)
	if !ok {
		return 0, false
	}
	return int(math.Round(filed.Sub(end).Hours() / 24)), true
}

// LabeledEnd is the minimal view of a fact needed to vote on the fiscal year end.
type LabeledEnd struct {
	PeriodEnd string
	Label     string
}

// DetectYearEndMonth returns the calendar month in which the company's Q4
// periods most often end. Without any Q4-labeled item it falls back to
// DefaultFiscalYearEndMonth. Ties go to the month seen first.
func DetectYearEndMonth(items []LabeledEnd) int {
	counts := make(map[int]int)
	var order []int
	for _, it := range items {
		if !strings.EqualFold(strings.TrimSpace(it.Label), "Q4") {
			continue
		}
		end, ok := ParseDate(it.PeriodEnd)
		if !ok {
			continue
		}
		m := int(end.Month())
		if counts[m] == 0 {
			order = append(order, m)
		}
		counts[m]++
	}
	if len(order) == 0 {
		return DefaultFiscalYearEndMonth
	}

	best := order[0]
	for _, m := range order[1:] {
		if counts[m] > counts[best] {
			best = m
		}
	}
	return best
}
