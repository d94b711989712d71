package fiscal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePeriod(t *testing.T) {
	tests := []struct {
		name  string
		end   string
		fyEnd int
		want  Period
	}{
		{"june year end, june quarter", "2025-06-30", 6, Period{2025, "Q4", "FY2025Q4"}},
		{"june year end, rolls into next year", "2025-09-30", 6, Period{2026, "Q1", "FY2026Q1"}},
		{"june year end, december", "2025-12-31", 6, Period{2026, "Q2", "FY2026Q2"}},
		{"june year end, march", "2026-03-31", 6, Period{2026, "Q3", "FY2026Q3"}},
		{"september year end", "2024-12-28", 9, Period{2025, "Q1", "FY2025Q1"}},
		{"september year end, q4", "2024-09-28", 9, Period{2024, "Q4", "FY2024Q4"}},
		{"january year end, april", "2025-04-30", 1, Period{2026, "Q1", "FY2026Q1"}},
		{"timestamp suffix", "2025-03-31T00:00:00Z", 12, Period{2025, "Q1", "FY2025Q1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DerivePeriod(tt.end, tt.fyEnd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerivePeriod_CalendarYear(t *testing.T) {
	for month := 1; month <= 12; month++ {
		end := fmt.Sprintf("2024-%02d-15", month)
		got, err := DerivePeriod(end, 12)
		require.NoError(t, err)

		wantQuarter := (month + 2) / 3
		assert.Equal(t, 2024, got.FiscalYear, "month %d", month)
		assert.Equal(t, fmt.Sprintf("Q%d", wantQuarter), got.FiscalQuarter, "month %d", month)
		assert.Equal(t, fmt.Sprintf("FY2024Q%d", wantQuarter), got.PeriodID, "month %d", month)
	}
}

func TestDerivePeriod_Deterministic(t *testing.T) {
	for fyEnd := 1; fyEnd <= 12; fyEnd++ {
		a, errA := DerivePeriod("2023-11-30", fyEnd)
		b, errB := DerivePeriod("2023-11-30", fyEnd)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b)
	}
}

func TestDerivePeriod_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		end   string
		fyEnd int
	}{
		{"missing end date", "", 6},
		{"garbage end date", "not-a-date", 6},
		{"impossible calendar date", "2025-02-30", 6},
		{"trailing junk", "2025-06-30garbage", 6},
		{"missing fiscal year end month", "2025-12-31", 0},
		{"month out of range", "2025-12-31", 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DerivePeriod(tt.end, tt.fyEnd)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestFilingDelta(t *testing.T) {
	tests := []struct {
		name   string
		end    string
		filed  string
		want   int
		wantOK bool
	}{
		{"filed after quarter end", "2025-12-31", "2026-01-30", 30, true},
		{"filed before quarter end", "2025-12-31", "2025-12-15", -16, true},
		{"same day", "2025-12-31", "2025-12-31", 0, true},
		{"across leap day", "2024-02-28", "2024-03-01", 2, true},
		{"missing filing date", "2025-12-31", "", 0, false},
		{"missing end date", "", "2026-01-30", 0, false},
		{"unparseable filing date", "2025-12-31", "soon", 0, false},
		{"trailing junk on end date", "2025-12-31junk", "2026-01-30", 0, false},
		{"timestamp filing date", "2025-12-31", "2026-01-30T16:05:00-05:00", 30, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FilingDelta(tt.end, tt.filed)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectYearEndMonth(t *testing.T) {
	t.Run("majority of q4 months", func(t *testing.T) {
		items := []LabeledEnd{
			{PeriodEnd: "2023-06-30", Label: "Q4"},
			{PeriodEnd: "2024-06-30", Label: "q4"},
			{PeriodEnd: "2025-06-30", Label: "Q4"},
			{PeriodEnd: "2025-03-31", Label: "Q3"},
			{PeriodEnd: "2025-06-30", Label: "FY"},
		}
		assert.Equal(t, 6, DetectYearEndMonth(items))
	})

	t.Run("no q4 items defaults to december", func(t *testing.T) {
		items := []LabeledEnd{
			{PeriodEnd: "2025-03-31", Label: "Q1"},
			{PeriodEnd: "2025-06-30", Label: "FY"},
		}
		assert.Equal(t, DefaultFiscalYearEndMonth, DetectYearEndMonth(items))
		assert.Equal(t, 12, DetectYearEndMonth(nil))
	})

	t.Run("most frequent wins over first seen", func(t *testing.T) {
		items := []LabeledEnd{
			{PeriodEnd: "2022-12-31", Label: "Q4"},
			{PeriodEnd: "2023-09-30", Label: "Q4"},
			{PeriodEnd: "2024-09-28", Label: "Q4"},
		}
		assert.Equal(t, 9, DetectYearEndMonth(items))
	})

	t.Run("tie goes to first encountered", func(t *testing.T) {
		items := []LabeledEnd{
			{PeriodEnd: "2023-03-31", Label: "Q4"},
			{PeriodEnd: "2023-09-30", Label: "Q4"},
		}
		assert.Equal(t, 3, DetectYearEndMonth(items))
	})

	t.Run("unparseable q4 dates are ignored", func(t *testing.T) {
		items := []LabeledEnd{
			{PeriodEnd: "", Label: "Q4"},
			{PeriodEnd: "bad", Label: "Q4"},
		}
		assert.Equal(t, 12, DetectYearEndMonth(items))
	})
}
