// Package series turns a company-facts database into an ordered quarterly
// series of statement bundles with data-quality warnings.
//
// Extraction is a pure function of its inputs: it does no I/O and keeps no
// state between calls.
package series

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"findash/internal/anchor"
	"findash/internal/concepts"
	"findash/internal/facts"
	"findash/internal/fiscal"
)

// Data-quality warnings attached to a bundle.
const (
	WarnPeriodIDMismatch = "period_id_mismatch_sec_vs_derived"
	WarnFilingDelayed    = "filing_delayed"
	WarnFilingBeforeEnd  = "filing_before_quarter_end"
	WarnFiscalUnresolved = "fiscal_period_unresolved"
	WarnAmendedFiling    = "amended_filing"
)

// QuarterBundle is the statement data for one anchor period. Fiscal fields
// are null when the period could not be derived; metric values are null
// when no concept resolves.
type QuarterBundle struct {
	PeriodEnd       string  `json:"period_end"`
	FiscalYear      *int    `json:"fiscal_year"`
	FiscalQuarter   *string `json:"fiscal_quarter"`
	PeriodID        *string `json:"period_id"`
	Form            string  `json:"form,omitempty"`
	Filed           string  `json:"filed,omitempty"`
	SECFiscalPeriod string  `json:"sec_fp,omitempty"`
	SECFiscalYear   *int    `json:"sec_fy,omitempty"`
	FilingDeltaDays *int    `json:"filing_delta_days"`

	Income   map[string]*float64 `json:"income"`
	Balance  map[string]*float64 `json:"balance"`
	CashFlow map[string]*float64 `json:"cash_flow"`
	Shares   map[string]*float64 `json:"shares"`

	Sources  map[string]concepts.Source `json:"sources"`
	Warnings []string                   `json:"warnings"`
}

// Value returns a resolved metric by key from whichever statement holds it.
func (b QuarterBundle) Value(key string) (float64, bool) {
	for _, m := range []map[string]*float64{b.Income, b.Balance, b.CashFlow, b.Shares} {
		if v, ok := m[key]; ok && v != nil {
			return *v, true
		}
	}
	return 0, false
}

// HasWarning reports whether w is attached to the bundle.
func (b QuarterBundle) HasWarning(w string) bool {
	for _, x := range b.Warnings {
		if x == w {
			return true
		}
	}
	return false
}

// Debug carries diagnostics about one extraction.
type Debug struct {
	RequestID          string         `json:"requestId,omitempty"`
	PeriodsFound       int            `json:"periodsFound"`
	MismatchCount      int            `json:"mismatchCount"`
	DelayedFilings     int            `json:"delayedFilings"`
	EarlyFilings       int            `json:"earlyFilings"`
	UnresolvedPeriods  int            `json:"unresolvedPeriods"`
	AmendedFilings     int            `json:"amendedFilings"`
	FiscalYearEndMonth int            `json:"fiscalYearEndMonth"`
	LatestEndAll       string         `json:"latestEndAll,omitempty"`
	FactsScanned       int            `json:"factsScanned"`
	Limit              int            `json:"limit"`
	WarningCounts      map[string]int `json:"warningCounts"`
}

// SeriesResult is the extracted series, newest first, plus diagnostics.
type SeriesResult struct {
	Ticker string          `json:"ticker"`
	Series []QuarterBundle `json:"series"`
	Debug  Debug           `json:"debug"`
}

// Empty reports whether no anchor survived selection.
func (r SeriesResult) Empty() bool {
	return len(r.Series) == 0
}

// Config tunes an Extractor.
type Config struct {
	Policy              anchor.Policy
	Allow10QFallback    bool
	FilingDelayWarnDays int
	ToleranceDays       int
}

// DefaultConfig returns the stock extraction settings.
func DefaultConfig() Config {
	return Config{
		Policy:              anchor.DefaultPolicy(),
		Allow10QFallback:    true,
		FilingDelayWarnDays: 60,
		ToleranceDays:       10,
	}
}

// Extractor builds quarterly series.
type Extractor struct {
	cfg      Config
	selector *anchor.Selector
	mapper   *concepts.Mapper
}

// New returns an Extractor for cfg.
func New(cfg Config) *Extractor {
	m := concepts.NewMapper()
	m.QuarterMinDays = cfg.Policy.QuarterMinDays
	m.QuarterMaxDays = cfg.Policy.QuarterMaxDays
	m.ToleranceDays = cfg.ToleranceDays

	return &Extractor{
		cfg:      cfg,
		selector: anchor.New(cfg.Policy),
		mapper:   m,
	}
}

// ExtractSeries builds up to limit quarter bundles for ticker from a raw
// company-facts payload. An empty series is a valid result.
func (e *Extractor) ExtractSeries(ticker string, payload any, limit int) SeriesResult {
	all := facts.CollectAllFacts(payload)

	labeled := make([]fiscal.LabeledEnd, len(all))
	for i, f := range all {
		labeled[i] = fiscal.LabeledEnd{PeriodEnd: f.PeriodEnd, Label: f.FiscalPeriod}
	}
	fyEnd := fiscal.DetectYearEndMonth(labeled)

	anchors := e.selector.Select(all, anchor.Options{
		Max:              limit,
		Allow10QFallback: e.cfg.Allow10QFallback,
	})

	result := SeriesResult{
		Ticker: strings.ToUpper(strings.TrimSpace(ticker)),
		Series: make([]QuarterBundle, 0, len(anchors)),
		Debug: Debug{
			FiscalYearEndMonth: fyEnd,
			LatestEndAll:       latestEnd(all),
			FactsScanned:       len(all),
			Limit:              limit,
			WarningCounts:      make(map[string]int),
		},
	}
	if len(anchors) == 0 {
		return result
	}

	ix := concepts.IndexByName(payload)
	for _, a := range anchors {
		b := e.bundle(ix, a, fyEnd)
		for _, w := range b.Warnings {
			result.Debug.WarningCounts[w]++
		}
		result.Series = append(result.Series, b)
	}

	d := &result.Debug
	d.PeriodsFound = len(result.Series)
	d.MismatchCount = d.WarningCounts[WarnPeriodIDMismatch]
	d.DelayedFilings = d.WarningCounts[WarnFilingDelayed]
	d.EarlyFilings = d.WarningCounts[WarnFilingBeforeEnd]
	d.UnresolvedPeriods = d.WarningCounts[WarnFiscalUnresolved]
	d.AmendedFilings = d.WarningCounts[WarnAmendedFiling]
	return result
}

func (e *Extractor) bundle(ix *concepts.Index, a anchor.Period, fyEnd int) QuarterBundle {
	b := QuarterBundle{
		PeriodEnd:       a.PeriodEnd,
		Form:            a.Form,
		Filed:           a.Filed,
		SECFiscalPeriod: a.FiscalPeriod,
		Income:          make(map[string]*float64),
		Balance:         make(map[string]*float64),
		CashFlow:        make(map[string]*float64),
		Shares:          make(map[string]*float64),
		Sources:         make(map[string]concepts.Source),
		Warnings:        []string{},
	}
	if a.FiscalYear != 0 {
		fy := a.FiscalYear
		b.SECFiscalYear = &fy
	}

	for _, spec := range e.mapper.Metrics {
		var val *float64
		if r, ok := e.mapper.Resolve(ix, spec, a.PeriodEnd); ok {
			v := r.Value
			val = &v
			b.Sources[spec.Key] = r.Source
		}
		b.statement(spec.Statement)[spec.Key] = val
	}

	period, err := fiscal.DerivePeriod(a.PeriodEnd, fyEnd)
	switch {
	case errors.Is(err, fiscal.ErrInvalidInput):
		b.Warnings = append(b.Warnings, WarnFiscalUnresolved)
	case err == nil:
		b.FiscalYear = &period.FiscalYear
		b.FiscalQuarter = &period.FiscalQuarter
		b.PeriodID = &period.PeriodID
		if secID, ok := secPeriodID(a); ok && !matchesPeriod(secID, period) {
			b.Warnings = append(b.Warnings, WarnPeriodIDMismatch)
		}
	}

	if days, ok := fiscal.FilingDelta(a.PeriodEnd, a.Filed); ok {
		b.FilingDeltaDays = &days
		switch {
		case days > e.cfg.FilingDelayWarnDays:
			b.Warnings = append(b.Warnings, WarnFilingDelayed)
		case days < 0:
			b.Warnings = append(b.Warnings, WarnFilingBeforeEnd)
		}
	}

	if a.Source.IsAmended() {
		b.Warnings = append(b.Warnings, WarnAmendedFiling)
	}
	return b
}

func (b *QuarterBundle) statement(s concepts.Statement) map[string]*float64 {
	switch s {
	case concepts.Balance:
		return b.Balance
	case concepts.CashFlow:
		return b.CashFlow
	case concepts.Shares:
		return b.Shares
	default:
		return b.Income
	}
}

// secPeriodID renders the period identity the filer attached to the anchor
// record: "FY<fy>Q<n>" when both are present, otherwise "Q<n>". Records
// without a quarter label carry nothing to compare.
func secPeriodID(a anchor.Period) (string, bool) {
	label := a.Source.Label()
	if len(label) != 2 || label[0] != 'Q' {
		return "", false
	}
	if a.FiscalYear == 0 {
		return label, true
	}
	return fmt.Sprintf("FY%d%s", a.FiscalYear, label), true
}

func matchesPeriod(secID string, p fiscal.Period) bool {
	if strings.HasPrefix(secID, "FY") {
		return secID == p.PeriodID
	}
	return secID == p.FiscalQuarter
}

func latestEnd(all []facts.FactRecord) string {
	latest := ""
	for _, f := range all {
		if t, ok := f.EndTime(); ok {
			if end := t.Format(fiscal.DateLayout); end > latest {
				latest = end
			}
		}
	}
	return latest
}

// ExtractMetric returns the full history of one abstract metric.
func (e *Extractor) ExtractMetric(payload any, key string) (concepts.MetricSeries, error) {
	return e.mapper.Series(concepts.IndexByName(payload), key)
}

// Extract is ExtractSeries behind the context-first contract the route layer
// and decorators share. It never fails.
func (e *Extractor) Extract(ctx context.Context, ticker string, payload any, limit int) (SeriesResult, error) {
	return e.ExtractSeries(ticker, payload, limit), nil
}

// Metric is ExtractMetric behind the context-first contract.
func (e *Extractor) Metric(ctx context.Context, ticker string, payload any, key string) (concepts.MetricSeries, error) {
	return e.ExtractMetric(payload, key)
}
