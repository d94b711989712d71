package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/concepts"
	"findash/internal/series"
)

func sampleResult() series.SeriesResult {
	db := map[string]any{"facts": map[string]any{"us-gaap": map[string]any{
		"Revenues": map[string]any{"units": map[string]any{"USD": []any{
			map[string]any{"start": "2025-04-01", "end": "2025-06-30", "val": 1234567.0, "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-09-15"},
		}}},
	}}}
	return series.New(series.DefaultConfig()).ExtractSeries("exm", db, 4)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestRender_Text(t *testing.T) {
	out, err := Render(sampleResult(), FormatText)
	require.NoError(t, err)

	assert.Contains(t, out, "QUARTERLY FUNDAMENTALS - EXM")
	assert.Contains(t, out, "FY2025Q2  ended 2025-06-30  10-Q filed 2025-09-15 (+77d)")
	assert.Contains(t, out, "1,234,567")
	assert.Contains(t, out, "! filing_delayed")

	empty, err := Render(series.SeriesResult{Ticker: "NONE"}, FormatText)
	require.NoError(t, err)
	assert.Contains(t, empty, "No quarterly periods found.")
}

func TestRender_CSV(t *testing.T) {
	out, err := Render(sampleResult(), FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	header, row := rows[0], rows[1]
	assert.Len(t, header, 9+len(concepts.Table()))
	col := make(map[string]string)
	for i, h := range header {
		col[h] = row[i]
	}
	assert.Equal(t, "EXM", col["ticker"])
	assert.Equal(t, "FY2025Q2", col["period_id"])
	assert.Equal(t, "77", col["filing_delta_days"])
	assert.Equal(t, "filing_delayed", col["warnings"])
	assert.Equal(t, "1234567", col["revenue"])
	assert.Equal(t, "", col["total_assets"])
}

func TestRender_JSON(t *testing.T) {
	out, err := Render(sampleResult(), FormatJSON)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &back))
	assert.Equal(t, "EXM", back["ticker"])

	_, err = Render(sampleResult(), Format("xml"))
	assert.Error(t, err)
}

func TestRenderMetric(t *testing.T) {
	m := concepts.MetricSeries{Key: "revenue", Concept: "Revenues", Unit: "USD", Points: []concepts.Point{
		{Value: 10, PeriodStart: "2025-04-01", PeriodEnd: "2025-06-30", FiscalYear: 2025, FiscalPeriod: "Q2"},
	}}

	out, err := RenderMetric(m, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "period_start,period_end,value,form,filed,fp,fy\n2025-04-01,2025-06-30,10,,,Q2,2025\n", out)

	out, err = RenderMetric(m, FormatText)
	require.NoError(t, err)
	assert.Contains(t, out, "2025-04-01\t2025-06-30\t10")
}

func TestSaveReport(t *testing.T) {
	r := NewReporter(t.TempDir())
	at := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	path, err := r.SaveReport(sampleResult(), FormatCSV, at)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "EXM_quarters_2025-10-01_12-00-00.csv"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ticker,period_end"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "999", formatValue(999))
	assert.Equal(t, "1,000", formatValue(1000))
	assert.Equal(t, "-12,345,678", formatValue(-12345678))
	assert.Equal(t, "0.42", formatValue(0.42))
}
