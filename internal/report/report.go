package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"findash/internal/concepts"
	"findash/internal/series"
)

// Format specifies the output format for series reports
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json, text or csv in any case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Reporter renders series results and writes them to disk
type Reporter struct {
	outputDir string
}

// NewReporter creates a new reporter
func NewReporter(outputDir string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
	}
}

// Render renders a series result in the specified format
func Render(result series.SeriesResult, format Format) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatText:
		return renderText(result), nil
	case FormatCSV:
		return renderCSV(result)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// SaveReport renders result and writes it under the output directory
func (r *Reporter) SaveReport(result series.SeriesResult, format Format, at time.Time) (string, error) {
	content, err := Render(result, format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_quarters_%s.%s", result.Ticker, at.UTC().Format("2006-01-02_15-04-05"), format)
	path := filepath.Join(r.outputDir, filename)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}

	return path, nil
}

// text columns shown per quarter
var textMetrics = []string{
	"revenue", "gross_profit", "operating_income", "net_income", "eps_diluted",
	"total_assets", "total_liabilities", "stockholders_equity",
	"operating_cash_flow", "capex", "shares_outstanding",
}

func renderText(result series.SeriesResult) string {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("QUARTERLY FUNDAMENTALS - %s\n", result.Ticker))
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	d := result.Debug
	if d.RequestID != "" {
		sb.WriteString(fmt.Sprintf("Request: %s\n", d.RequestID))
	}
	sb.WriteString(fmt.Sprintf("Quarters: %d (limit %d)  Fiscal year end month: %d  Latest fact: %s\n",
		d.PeriodsFound, d.Limit, d.FiscalYearEndMonth, orDash(d.LatestEndAll)))
	sb.WriteString(fmt.Sprintf("Warnings: mismatched %d, delayed %d, early %d, unresolved %d, amended %d\n",
		d.MismatchCount, d.DelayedFilings, d.EarlyFilings, d.UnresolvedPeriods, d.AmendedFilings))

	if result.Empty() {
		sb.WriteString("\nNo quarterly periods found.\n")
		return sb.String()
	}

	for _, b := range result.Series {
		sb.WriteString("\n" + strings.Repeat("-", 80) + "\n")
		sb.WriteString(fmt.Sprintf("%s  ended %s  %s filed %s", orDash(deref(b.PeriodID)), b.PeriodEnd, orDash(b.Form), orDash(b.Filed)))
		if b.FilingDeltaDays != nil {
			sb.WriteString(fmt.Sprintf(" (%+dd)", *b.FilingDeltaDays))
		}
		sb.WriteString("\n")

		for _, key := range textMetrics {
			v, ok := b.Value(key)
			if !ok {
				continue
			}
			marker := ""
			if src, ok := b.Sources[key]; ok && !src.Exact {
				marker = " ~"
			}
			sb.WriteString(fmt.Sprintf("  %-22s %20s%s\n", key, formatValue(v), marker))
		}
		for _, w := range b.Warnings {
			sb.WriteString(fmt.Sprintf("  ! %s\n", w))
		}
	}

	sb.WriteString("\n" + strings.Repeat("=", 80) + "\n")
	return sb.String()
}

func renderCSV(result series.SeriesResult) (string, error) {
	table := concepts.Table()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"ticker", "period_end", "period_id", "fiscal_year", "fiscal_quarter", "form", "filed", "filing_delta_days", "warnings"}
	for _, spec := range table {
		header = append(header, spec.Key)
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, b := range result.Series {
		row := []string{
			result.Ticker,
			b.PeriodEnd,
			deref(b.PeriodID),
			intOrEmpty(b.FiscalYear),
			deref(b.FiscalQuarter),
			b.Form,
			b.Filed,
			intOrEmpty(b.FilingDeltaDays),
			strings.Join(b.Warnings, ";"),
		}
		for _, spec := range table {
			if v, ok := b.Value(spec.Key); ok {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	return buf.String(), w.Error()
}

// RenderMetric renders one metric history as json, csv or tab-separated text
func RenderMetric(m concepts.MetricSeries, format Format) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatCSV, FormatText:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if format == FormatText {
			w.Comma = '\t'
		}
		_ = w.Write([]string{"period_start", "period_end", "value", "form", "filed", "fp", "fy"})
		for _, p := range m.Points {
			fy := ""
			if p.FiscalYear != 0 {
				fy = strconv.Itoa(p.FiscalYear)
			}
			_ = w.Write([]string{p.PeriodStart, p.PeriodEnd, strconv.FormatFloat(p.Value, 'f', -1, 64), p.Form, p.Filed, p.FiscalPeriod, fy})
		}
		w.Flush()
		return buf.String(), w.Error()
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatValue prints large amounts with thousands separators
func formatValue(v float64) string {
	if v != float64(int64(v)) {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	s := strconv.FormatInt(int64(v), 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
