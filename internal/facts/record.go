// Package facts flattens an EDGAR company-facts database into uniform fact
// records and normalizes the field names different sources use for them.
package facts

import (
	"math"
	"strconv"
	"strings"
	"time"

	"findash/internal/fiscal"
)

// RawRecord is one data point exactly as a source delivered it.
type RawRecord map[string]any

// FactRecord is one reported, numeric data point for one concept.
// Empty strings and a zero FiscalYear mean "absent".
type FactRecord struct {
	Value        float64 `json:"val"`
	PeriodStart  string  `json:"start,omitempty"`
	PeriodEnd    string  `json:"end"`
	Filed        string  `json:"filed,omitempty"`
	Form         string  `json:"form,omitempty"`
	FiscalPeriod string  `json:"fp,omitempty"`
	FiscalYear   int     `json:"fy,omitempty"`
	Frame        string  `json:"frame,omitempty"`
	Accession    string  `json:"accn,omitempty"`
	Concept      string  `json:"concept,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	Taxonomy     string  `json:"taxonomy,omitempty"`
}

// EndTime parses PeriodEnd.
func (f FactRecord) EndTime() (time.Time, bool) {
	return fiscal.ParseDate(f.PeriodEnd)
}

// IsDuration reports whether the fact covers a span rather than an instant.
func (f FactRecord) IsDuration() bool {
	return f.PeriodStart != ""
}

// DurationDays is the length of the reported span in days.
func (f FactRecord) DurationDays() (int, bool) {
	if !f.IsDuration() {
		return 0, false
	}
	return fiscal.FilingDelta(f.PeriodStart, f.PeriodEnd)
}

// BaseForm is the upper-cased form type with any amendment suffix removed,
// so "10-q/a" becomes "10-Q".
func (f FactRecord) BaseForm() string {
	form := strings.ToUpper(strings.TrimSpace(f.Form))
	return strings.TrimSuffix(form, "/A")
}

// IsAmended reports whether the form type carries the "/A" amendment suffix.
func (f FactRecord) IsAmended() bool {
	return strings.HasSuffix(strings.ToUpper(strings.TrimSpace(f.Form)), "/A")
}

// Label is the upper-cased fiscal period label ("Q1".."Q4", "FY").
func (f FactRecord) Label() string {
	return strings.ToUpper(strings.TrimSpace(f.FiscalPeriod))
}

// Raw renders the record with canonical field names. Normalizing the result
// yields the same FactRecord.
func (f FactRecord) Raw() RawRecord {
	r := RawRecord{"val": f.Value, "end": f.PeriodEnd}
	set := func(k, v string) {
		if v != "" {
			r[k] = v
		}
	}
	set("start", f.PeriodStart)
	set("filed", f.Filed)
	set("form", f.Form)
	set("fp", f.FiscalPeriod)
	set("frame", f.Frame)
	set("accn", f.Accession)
	set("concept", f.Concept)
	set("unit", f.Unit)
	set("taxonomy", f.Taxonomy)
	if f.FiscalYear != 0 {
		r["fy"] = f.FiscalYear
	}
	return r
}

// NumericValue coerces a raw value to a finite float64.
func NumericValue(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case interface{ Float64() (float64, error) }:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case nil:
		return "", false
	default:
		if f, ok := NumericValue(s); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return "", false
	}
}
