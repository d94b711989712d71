package facts

// accessor reads one candidate field for a logical value.
type accessor func(RawRecord) (any, bool)

func field(name string) accessor {
	return func(r RawRecord) (any, bool) {
		v, ok := r[name]
		if !ok || v == nil {
			return nil, false
		}
		if s, isString := v.(string); isString && s == "" {
			return nil, false
		}
		return v, true
	}
}

func fields(names ...string) []accessor {
	out := make([]accessor, len(names))
	for i, n := range names {
		out[i] = field(n)
	}
	return out
}

// Field aliases in priority order. The canonical companyfacts name is first,
// so a record rendered by FactRecord.Raw normalizes to itself.
var (
	valueFields        = fields("val", "value")
	periodEndFields    = fields("end", "quarter_end_date", "period_end", "periodEnd", "fy_end", "instant")
	periodStartFields  = fields("start", "quarter_start_date", "period_start", "periodStart")
	fiscalPeriodFields = fields("fp", "fiscal_period", "fiscalPeriod", "fiscalPeriodLabel")
	fiscalYearFields   = fields("fy", "fiscal_year", "fiscalYear")
	formFields         = fields("form", "form_type", "formType")
	filedFields        = fields("filed", "filing_date", "filed_date", "filedDate")
	frameFields        = fields("frame")
	accessionFields    = fields("accn", "accession_number", "accessionNumber")
	conceptFields      = fields("concept")
	unitFields         = fields("unit", "unitKind")
	taxonomyFields     = fields("taxonomy")
)

func firstOf(r RawRecord, accessors []accessor) (any, bool) {
	for _, get := range accessors {
		if v, ok := get(r); ok {
			return v, true
		}
	}
	return nil, false
}

func firstString(r RawRecord, accessors []accessor) string {
	for _, get := range accessors {
		v, ok := get(r)
		if !ok {
			continue
		}
		if s, ok := stringValue(v); ok {
			return s
		}
	}
	return ""
}

// Normalize maps one raw record onto a FactRecord. ok is false when the
// record has no finite numeric value.
func Normalize(r RawRecord) (FactRecord, bool) {
	raw, ok := firstOf(r, valueFields)
	if !ok {
		return FactRecord{}, false
	}
	value, ok := NumericValue(raw)
	if !ok {
		return FactRecord{}, false
	}

	rec := FactRecord{
		Value:        value,
		PeriodStart:  firstString(r, periodStartFields),
		PeriodEnd:    firstString(r, periodEndFields),
		Filed:        firstString(r, filedFields),
		Form:         firstString(r, formFields),
		FiscalPeriod: firstString(r, fiscalPeriodFields),
		Frame:        firstString(r, frameFields),
		Accession:    firstString(r, accessionFields),
		Concept:      firstString(r, conceptFields),
		Unit:         firstString(r, unitFields),
		Taxonomy:     firstString(r, taxonomyFields),
	}
	if fy, ok := firstOf(r, fiscalYearFields); ok {
		if n, ok := NumericValue(fy); ok {
			rec.FiscalYear = int(n)
		}
	}
	return rec, true
}

// NormalizeFields normalizes every record, silently dropping those without a
// usable numeric value.
func NormalizeFields(records []RawRecord) []FactRecord {
	out := make([]FactRecord, 0, len(records))
	for _, r := range records {
		if rec, ok := Normalize(r); ok {
			out = append(out, rec)
		}
	}
	return out
}
