// Package anchor picks the quarter-end dates a series is built around.
//
// Candidate fact records are classified as quarterly or not, annual records
// are excluded, records sharing a period end are collapsed to the best-scored
// one, and the survivors are ordered newest first.
package anchor

import (
	"sort"

	"findash/internal/facts"
	"findash/internal/fiscal"
)

// Weights score competing records for the same period end. Form10Q must
// outweigh FiledDate+Frame and FYLabel must be negative for the ranking to
// make sense; store.Config validates that.
type Weights struct {
	Form10Q   int
	FiledDate int
	Frame     int
	FYLabel   int
}

// Policy holds the tunable parts of anchor selection.
type Policy struct {
	// A record with neither an informative label nor form counts as a
	// quarter when its span is within [QuarterMinDays, QuarterMaxDays].
	QuarterMinDays int
	QuarterMaxDays int

	Weights Weights

	// Facts from these taxonomies never become anchors. Cover-page (dei)
	// facts are dated at the cover date, not at a period end.
	ExcludeTaxonomies []string
}

// DefaultPolicy returns the stock selection policy.
func DefaultPolicy() Policy {
	return Policy{
		QuarterMinDays: 70,
		QuarterMaxDays: 120,
		Weights: Weights{
			Form10Q:   100,
			FiledDate: 10,
			Frame:     1,
			FYLabel:   -1000,
		},
		ExcludeTaxonomies: []string{"dei"},
	}
}

// Options bound a single selection.
type Options struct {
	// Max truncates the result; zero or negative keeps every anchor.
	Max              int
	Allow10QFallback bool
}

// Period is one selected quarter end together with the record that won it.
type Period struct {
	PeriodEnd    string           `json:"period_end"`
	Form         string           `json:"form,omitempty"`
	Filed        string           `json:"filed,omitempty"`
	FiscalPeriod string           `json:"fp,omitempty"`
	FiscalYear   int              `json:"fy,omitempty"`
	Frame        string           `json:"frame,omitempty"`
	Score        int              `json:"score"`
	Source       facts.FactRecord `json:"-"`
}

// Selector applies a Policy.
type Selector struct {
	policy   Policy
	excluded map[string]bool
}

// New returns a Selector for p.
func New(p Policy) *Selector {
	ex := make(map[string]bool, len(p.ExcludeTaxonomies))
	for _, t := range p.ExcludeTaxonomies {
		ex[t] = true
	}
	return &Selector{policy: p, excluded: ex}
}

// Select runs selection with DefaultPolicy.
func Select(records []facts.FactRecord, opts Options) []Period {
	return New(DefaultPolicy()).Select(records, opts)
}

// Policy returns the selector's policy.
func (s *Selector) Policy() Policy {
	return s.policy
}

var quarterLabels = map[string]bool{"Q1": true, "Q2": true, "Q3": true, "Q4": true}

// IsAnnual reports whether a record describes a full fiscal year.
func IsAnnual(f facts.FactRecord) bool {
	return f.Label() == "FY" || f.BaseForm() == "10-K"
}

// IsQuarterLike reports whether a record looks like a single fiscal quarter.
// It does not check for annual markers; see IsAnnual.
func (s *Selector) IsQuarterLike(f facts.FactRecord, allow10QFallback bool) bool {
	label := f.Label()
	form := f.BaseForm()

	if quarterLabels[label] {
		return true
	}
	if allow10QFallback && form == "10-Q" {
		return true
	}

	if label == "FY" || form == "10-Q" || form == "10-K" {
		return false
	}
	days, ok := f.DurationDays()
	return ok && days >= s.policy.QuarterMinDays && days <= s.policy.QuarterMaxDays
}

// Score ranks a record against others with the same period end.
func (s *Selector) Score(f facts.FactRecord) int {
	w := s.policy.Weights
	score := 0
	if normalizedForm(f) == "10-Q" {
		score += w.Form10Q
	}
	if f.Filed != "" {
		score += w.FiledDate
	}
	if f.Frame != "" {
		score += w.Frame
	}
	if f.Label() == "FY" {
		score += w.FYLabel
	}
	return score
}

func normalizedForm(f facts.FactRecord) string {
	if f.IsAmended() {
		return ""
	}
	return f.BaseForm()
}

// Select returns at most opts.Max quarter anchors, newest first, with one
// anchor per distinct period end.
func (s *Selector) Select(records []facts.FactRecord, opts Options) []Period {
	type candidate struct {
		end   string
		score int
		rec   facts.FactRecord
	}

	best := make(map[string]candidate)
	for _, f := range records {
		if s.excluded[f.Taxonomy] {
			continue
		}
		t, ok := f.EndTime()
		if !ok {
			continue
		}
		if !s.IsQuarterLike(f, opts.Allow10QFallback) || IsAnnual(f) {
			continue
		}

		end := t.Format(fiscal.DateLayout)
		c := candidate{end: end, score: s.Score(f), rec: f}
		if prev, seen := best[end]; !seen || c.score > prev.score {
			best[end] = c
		}
	}

	out := make([]Period, 0, len(best))
	for _, c := range best {
		out = append(out, Period{
			PeriodEnd:    c.end,
			Form:         c.rec.Form,
			Filed:        c.rec.Filed,
			FiscalPeriod: c.rec.FiscalPeriod,
			FiscalYear:   c.rec.FiscalYear,
			Frame:        c.rec.Frame,
			Score:        c.score,
			Source:       c.rec,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodEnd > out[j].PeriodEnd
	})

	if opts.Max > 0 && len(out) > opts.Max {
		out = out[:opts.Max]
	}
	return out
}
