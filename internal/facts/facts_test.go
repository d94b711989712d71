package facts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyFactsJSON = `{
  "cik": 320193,
  "entityName": "Example Corp",
  "facts": {
    "us-gaap": {
      "Revenues": {
        "label": "Revenues",
        "units": {
          "USD": [
            {"start": "2025-04-01", "end": "2025-06-30", "val": 1000, "accn": "0001-25-1", "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-08-01", "frame": "CY2025Q2"},
            {"start": "2025-01-01", "end": "2025-06-30", "val": "1900", "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-08-01"},
            {"start": "2025-01-01", "end": "2025-03-31", "val": "n/a", "form": "10-Q"},
            "not-an-object",
            null
          ],
          "EUR": "not-a-list"
        }
      },
      "Assets": {"units": {"USD": [{"end": "2025-06-30", "val": 5000, "form": "10-Q", "fp": "Q2"}]}},
      "Broken": {"units": null},
      "AlsoBroken": "string"
    },
    "dei": {
      "EntityCommonStockSharesOutstanding": {"units": {"shares": [{"end": "2025-07-25", "val": 150, "form": "10-Q", "fp": "Q2"}]}}
    },
    "srt": null
  }
}`

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestCollectAllFacts(t *testing.T) {
	got := CollectAllFacts(decode(t, companyFactsJSON))

	// dei sorts before us-gaap; concepts and units are visited in key order.
	require.Len(t, got, 4)

	assert.Equal(t, "dei", got[0].Taxonomy)
	assert.Equal(t, "EntityCommonStockSharesOutstanding", got[0].Concept)
	assert.Equal(t, "shares", got[0].Unit)

	assert.Equal(t, "Assets", got[1].Concept)
	assert.False(t, got[1].IsDuration())

	assert.Equal(t, "Revenues", got[2].Concept)
	assert.Equal(t, 1000.0, got[2].Value)
	assert.Equal(t, "CY2025Q2", got[2].Frame)
	assert.Equal(t, 2025, got[2].FiscalYear)
	days, ok := got[2].DurationDays()
	assert.True(t, ok)
	assert.Equal(t, 90, days)

	assert.Equal(t, 1900.0, got[3].Value, "numeric strings are coerced")
}

func TestCollectRaw_ToleratesMalformedInput(t *testing.T) {
	for _, payload := range []any{nil, "x", 42, []any{1, 2}, map[string]any{"facts": "nope"}} {
		assert.NotPanics(t, func() { CollectRaw(payload) })
	}
	assert.Empty(t, CollectRaw(nil))
	assert.Empty(t, CollectRaw(map[string]any{"us-gaap": map[string]any{"X": map[string]any{"units": map[string]any{"USD": []any{}}}}}))
}

func TestCollectRaw_AcceptsBareTaxonomyMap(t *testing.T) {
	db := map[string]any{
		"us-gaap": map[string]any{
			"NetIncomeLoss": map[string]any{
				"units": map[string]any{
					"USD": []RawRecord{{"end": "2025-03-31", "val": 7.0}},
				},
			},
		},
	}
	got := CollectAllFacts(db)
	require.Len(t, got, 1)
	assert.Equal(t, "NetIncomeLoss", got[0].Concept)
	assert.Equal(t, "us-gaap", got[0].Taxonomy)
}

func TestNormalize_FieldAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  RawRecord
		want FactRecord
	}{
		{
			name: "canonical names",
			raw:  RawRecord{"val": 1.5, "start": "2025-01-01", "end": "2025-03-31", "fp": "Q1", "form": "10-Q", "filed": "2025-05-01", "fy": 2025.0},
			want: FactRecord{Value: 1.5, PeriodStart: "2025-01-01", PeriodEnd: "2025-03-31", FiscalPeriod: "Q1", Form: "10-Q", Filed: "2025-05-01", FiscalYear: 2025},
		},
		{
			name: "legacy snake case",
			raw:  RawRecord{"value": "2", "quarter_end_date": "2025-03-31", "period_start": "2025-01-01", "fiscal_period": "Q1", "form_type": "10-Q", "filing_date": "2025-05-02", "fiscal_year": "2025"},
			want: FactRecord{Value: 2, PeriodStart: "2025-01-01", PeriodEnd: "2025-03-31", FiscalPeriod: "Q1", Form: "10-Q", Filed: "2025-05-02", FiscalYear: 2025},
		},
		{
			name: "camel case",
			raw:  RawRecord{"val": 3, "periodEnd": "2025-03-31", "periodStart": "2025-01-01", "fiscalPeriodLabel": "Q1", "formType": "10-Q", "filedDate": "2025-05-03"},
			want: FactRecord{Value: 3, PeriodStart: "2025-01-01", PeriodEnd: "2025-03-31", FiscalPeriod: "Q1", Form: "10-Q", Filed: "2025-05-03"},
		},
		{
			name: "priority: end beats period_end, empty strings skipped",
			raw:  RawRecord{"val": 4, "end": "", "period_end": "2025-06-30", "fy_end": "2025-12-31"},
			want: FactRecord{Value: 4, PeriodEnd: "2025-06-30"},
		},
		{
			name: "instant fallback",
			raw:  RawRecord{"val": 5, "instant": "2025-06-30"},
			want: FactRecord{Value: 5, PeriodEnd: "2025-06-30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeFields_DropsNonNumeric(t *testing.T) {
	got := NormalizeFields([]RawRecord{
		{"val": "abc", "end": "2025-03-31"},
		{"end": "2025-03-31"},
		{"val": nil, "end": "2025-03-31"},
		{"val": 10, "end": "2025-03-31"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 10.0, got[0].Value)
}

func TestNormalizeFields_Idempotent(t *testing.T) {
	first := CollectAllFacts(decode(t, companyFactsJSON))

	raws := make([]RawRecord, len(first))
	for i, f := range first {
		raws[i] = f.Raw()
	}
	second := NormalizeFields(raws)

	assert.Equal(t, first, second)
}

func TestMergeRaw(t *testing.T) {
	payload := decode(t, companyFactsJSON)
	before := len(CollectAllFacts(payload))

	merged := MergeRaw(payload, []RawRecord{
		{"taxonomy": "us-gaap", "concept": "Revenues", "unit": "USD", "val": 1100, "start": "2025-07-01", "end": "2025-09-30", "form": "10-Q"},
		{"taxonomy": "us-gaap", "concept": "GrossProfit", "unit": "USD", "val": 400, "start": "2025-07-01", "end": "2025-09-30"},
		{"concept": "Untagged", "val": 1, "end": "2025-09-30"},
	})

	after := CollectAllFacts(merged)
	assert.Len(t, after, before+2)
	assert.Len(t, CollectAllFacts(payload), before, "source database is not modified")

	var found bool
	for _, f := range after {
		if f.Concept == "GrossProfit" && f.PeriodEnd == "2025-09-30" {
			found = true
		}
	}
	assert.True(t, found)
}
