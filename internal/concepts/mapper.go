package concepts

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"findash/internal/facts"
	"findash/internal/fiscal"
)

// ErrUnknownMetric is returned for a metric key that is not in the table.
var ErrUnknownMetric = errors.New("unknown metric")

// taxonomyPriority decides which taxonomy owns a bare concept name when more
// than one defines it. Unlisted taxonomies follow in sorted order.
var taxonomyPriority = []string{"us-gaap", "ifrs-full", "dei", "srt"}

// Entry is one raw concept object located in the database.
type Entry struct {
	Taxonomy string
	Concept  string
	Raw      any
}

// Index looks concepts up by bare name or by "taxonomy:name". Extracted
// records are memoized per (name, unit), so an Index must not be shared
// between goroutines.
type Index struct {
	entries map[string]Entry
	items   map[string][]facts.FactRecord
}

// IndexByName builds the by-name lookup for a company-facts payload.
func IndexByName(payload any) *Index {
	ix := &Index{
		entries: make(map[string]Entry),
		items:   make(map[string][]facts.FactRecord),
	}
	for _, tax := range orderTaxonomies(facts.Taxonomies(payload)) {
		for name, raw := range tax.Concepts {
			e := Entry{Taxonomy: tax.Name, Concept: name, Raw: raw}
			ix.entries[tax.Name+":"+name] = e
			if _, taken := ix.entries[name]; !taken {
				ix.entries[name] = e
			}
		}
	}
	return ix
}

func orderTaxonomies(all []facts.Taxonomy) []facts.Taxonomy {
	rank := func(name string) int {
		for i, p := range taxonomyPriority {
			if p == name {
				return i
			}
		}
		return len(taxonomyPriority)
	}
	out := make([]facts.Taxonomy, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Name) < rank(out[j].Name)
	})
	return out
}

// Lookup returns the raw concept registered under name.
func (ix *Index) Lookup(name string) (Entry, bool) {
	if ix == nil {
		return Entry{}, false
	}
	e, ok := ix.entries[name]
	return e, ok
}

// Items returns the numeric records of a concept under one unit, tagged with
// concept, unit and taxonomy.
func (ix *Index) Items(name, unit string) []facts.FactRecord {
	e, ok := ix.Lookup(name)
	if !ok {
		return nil
	}
	key := e.Taxonomy + ":" + e.Concept + "|" + unit
	if cached, ok := ix.items[key]; ok {
		return cached
	}
	items := ExtractFactItems(e.Raw, unit)
	for i := range items {
		items[i].Concept = e.Concept
		items[i].Taxonomy = e.Taxonomy
	}
	ix.items[key] = items
	return items
}

// ExtractFactItems returns every record of one raw concept object reported in
// unit. Records without a finite numeric value are dropped.
func ExtractFactItems(rawFact any, unit string) []facts.FactRecord {
	var out []facts.FactRecord
	for _, g := range facts.UnitRows(rawFact) {
		if g.Unit != unit {
			continue
		}
		for _, row := range g.Rows {
			rec, ok := facts.Normalize(row)
			if !ok || rec.PeriodEnd == "" {
				continue
			}
			rec.Unit = unit
			out = append(out, rec)
		}
	}
	return out
}

// ExtractFirstAvailable walks names in order and returns the records of the
// first concept that yields any. Later names are not consulted once one
// resolves. The result is empty when nothing resolves.
func ExtractFirstAvailable(ix *Index, names []string, unit string) []facts.FactRecord {
	for _, name := range names {
		if items := ix.Items(name, unit); len(items) > 0 {
			return items
		}
	}
	return []facts.FactRecord{}
}

// Source records where a resolved value came from.
type Source struct {
	Concept      string `json:"concept"`
	Taxonomy     string `json:"taxonomy,omitempty"`
	Unit         string `json:"unit"`
	Start        string `json:"start,omitempty"`
	End          string `json:"end"`
	Form         string `json:"form,omitempty"`
	Filed        string `json:"filed,omitempty"`
	DurationDays *int   `json:"duration_days,omitempty"`
	Exact        bool   `json:"exact"`
}

// Resolution is one metric value chosen for one period.
type Resolution struct {
	Value  float64
	Source Source
}

// Mapper resolves metrics against an Index.
type Mapper struct {
	Metrics []MetricSpec

	// QuarterMinDays and QuarterMaxDays bound a quarter-length duration.
	QuarterMinDays int
	QuarterMaxDays int

	// ToleranceDays is how far a duration fact's end may sit from the
	// requested period end and still be used when nothing matches exactly.
	ToleranceDays int
}

// NewMapper returns a Mapper over the full metric table.
func NewMapper() *Mapper {
	return &Mapper{
		Metrics:        Table(),
		QuarterMinDays: 70,
		QuarterMaxDays: 120,
		ToleranceDays:  10,
	}
}

func (m *Mapper) quarterLength(f facts.FactRecord) bool {
	d, ok := f.DurationDays()
	return ok && d >= m.QuarterMinDays && d <= m.QuarterMaxDays
}

// better reports whether a should be preferred over b for the same period.
func (m *Mapper) better(a, b facts.FactRecord) bool {
	if qa, qb := m.quarterLength(a), m.quarterLength(b); qa != qb {
		return qa
	}
	if qa, qb := a.BaseForm() == "10-Q", b.BaseForm() == "10-Q"; qa != qb {
		return qa
	}
	return a.Filed > b.Filed
}

// Resolve finds the value of spec at periodEnd. Concepts are tried in order
// for an exact period-end match first; only when none matches exactly is the
// closest duration fact within ToleranceDays accepted.
func (m *Mapper) Resolve(ix *Index, spec MetricSpec, periodEnd string) (Resolution, bool) {
	end, ok := fiscal.ParseDate(periodEnd)
	if !ok {
		return Resolution{}, false
	}
	for _, name := range spec.Concepts {
		if r, ok := m.exact(ix.Items(name, spec.Unit), spec, end); ok {
			return r, true
		}
	}
	if m.ToleranceDays <= 0 {
		return Resolution{}, false
	}
	for _, name := range spec.Concepts {
		if r, ok := m.closest(ix.Items(name, spec.Unit), end); ok {
			return r, true
		}
	}
	return Resolution{}, false
}

func (m *Mapper) exact(items []facts.FactRecord, spec MetricSpec, end time.Time) (Resolution, bool) {
	var best *facts.FactRecord
	for i := range items {
		f := items[i]
		t, ok := f.EndTime()
		if !ok || !t.Equal(end) {
			continue
		}
		if spec.Kind == Duration && !f.IsDuration() {
			continue
		}
		if best == nil || m.better(f, *best) {
			best = &items[i]
		}
	}
	if best == nil {
		return Resolution{}, false
	}
	return resolution(*best, true), true
}

func (m *Mapper) closest(items []facts.FactRecord, end time.Time) (Resolution, bool) {
	var (
		best     *facts.FactRecord
		bestDist int
	)
	for i := range items {
		f := items[i]
		if !f.IsDuration() {
			continue
		}
		t, ok := f.EndTime()
		if !ok {
			continue
		}
		dist := absDays(t.Sub(end))
		if dist > m.ToleranceDays {
			continue
		}
		if best == nil || dist < bestDist || (dist == bestDist && m.better(f, *best)) {
			best, bestDist = &items[i], dist
		}
	}
	if best == nil {
		return Resolution{}, false
	}
	return resolution(*best, false), true
}

func absDays(d time.Duration) int {
	if d < 0 {
		d = -d
	}
	return int(d.Hours()/24 + 0.5)
}

func resolution(f facts.FactRecord, exact bool) Resolution {
	src := Source{
		Concept:  f.Concept,
		Taxonomy: f.Taxonomy,
		Unit:     f.Unit,
		Start:    f.PeriodStart,
		End:      f.PeriodEnd,
		Form:     f.Form,
		Filed:    f.Filed,
		Exact:    exact,
	}
	if d, ok := f.DurationDays(); ok {
		src.DurationDays = &d
	}
	return Resolution{Value: f.Value, Source: src}
}

// Point is one entry of a metric's history.
type Point struct {
	Value        float64 `json:"value"`
	PeriodStart  string  `json:"period_start,omitempty"`
	PeriodEnd    string  `json:"period_end"`
	Form         string  `json:"form,omitempty"`
	Filed        string  `json:"filed,omitempty"`
	FiscalPeriod string  `json:"fp,omitempty"`
	FiscalYear   int     `json:"fy,omitempty"`
	DurationDays *int    `json:"duration_days,omitempty"`
}

// MetricSeries is the full reported history of one abstract metric.
type MetricSeries struct {
	Key     string  `json:"key"`
	Concept string  `json:"concept,omitempty"`
	Unit    string  `json:"unit"`
	Points  []Point `json:"points"`
}

func (m *Mapper) spec(key string) (MetricSpec, bool) {
	for _, s := range m.Metrics {
		if s.Key == key {
			return s, true
		}
	}
	return MetricSpec{}, false
}

// Series extracts the history of one metric from the first concept in its
// fallback list that has data. Points are unique per (period start, period
// end) and ordered by period end, newest first, then by shorter duration.
func (m *Mapper) Series(ix *Index, key string) (MetricSeries, error) {
	spec, ok := m.spec(key)
	if !ok {
		return MetricSeries{}, fmt.Errorf("%w: %q", ErrUnknownMetric, key)
	}

	items := ExtractFirstAvailable(ix, spec.Concepts, spec.Unit)
	out := MetricSeries{Key: spec.Key, Unit: spec.Unit, Points: []Point{}}
	if len(items) == 0 {
		return out, nil
	}
	out.Concept = items[0].Concept

	chosen := make(map[string]facts.FactRecord)
	var order []string
	for _, f := range items {
		if spec.Kind == Duration && !f.IsDuration() {
			continue
		}
		k := f.PeriodStart + "|" + f.PeriodEnd
		prev, seen := chosen[k]
		if !seen {
			order = append(order, k)
			chosen[k] = f
			continue
		}
		if m.better(f, prev) {
			chosen[k] = f
		}
	}

	for _, k := range order {
		f := chosen[k]
		p := Point{
			Value:        f.Value,
			PeriodStart:  f.PeriodStart,
			PeriodEnd:    f.PeriodEnd,
			Form:         f.Form,
			Filed:        f.Filed,
			FiscalPeriod: f.FiscalPeriod,
			FiscalYear:   f.FiscalYear,
		}
		if d, ok := f.DurationDays(); ok {
			p.DurationDays = &d
		}
		out.Points = append(out.Points, p)
	}
	sort.SliceStable(out.Points, func(i, j int) bool {
		a, b := out.Points[i], out.Points[j]
		if a.PeriodEnd != b.PeriodEnd {
			return a.PeriodEnd > b.PeriodEnd
		}
		return a.PeriodStart > b.PeriodStart
	})
	return out, nil
}
