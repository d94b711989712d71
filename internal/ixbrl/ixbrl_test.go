package ixbrl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/facts"
)

const filing = `<html xmlns:ix="http://www.xbrl.org/2013/inlineXBRL"><body>
<div style="display:none"><ix:header><ix:hidden>
  <ix:nonNumeric name="dei:DocumentType" contextRef="c-1">10-Q</ix:nonNumeric>
  <ix:nonNumeric name="dei:DocumentFiscalPeriodFocus" contextRef="c-1">Q2</ix:nonNumeric>
  <ix:nonNumeric name="dei:DocumentFiscalYearFocus" contextRef="c-1">2025</ix:nonNumeric>
</ix:hidden><ix:resources>
  <xbrli:context id="c-1"><xbrli:entity><xbrli:identifier scheme="http://www.sec.gov/CIK">0000001234</xbrli:identifier></xbrli:entity>
    <xbrli:period><xbrli:startDate>2025-04-01</xbrli:startDate><xbrli:endDate>2025-06-30</xbrli:endDate></xbrli:period></xbrli:context>
  <xbrli:context id="c-2"><xbrli:entity><xbrli:identifier scheme="http://www.sec.gov/CIK">0000001234</xbrli:identifier></xbrli:entity>
    <xbrli:period><xbrli:instant>2025-06-30</xbrli:instant></xbrli:period></xbrli:context>
  <xbrli:context id="c-3"><xbrli:entity><xbrli:identifier scheme="http://www.sec.gov/CIK">0000001234</xbrli:identifier>
    <xbrli:segment><xbrldi:explicitMember dimension="srt:ProductOrServiceAxis">us-gaap:ProductMember</xbrldi:explicitMember></xbrli:segment></xbrli:entity>
    <xbrli:period><xbrli:startDate>2025-04-01</xbrli:startDate><xbrli:endDate>2025-06-30</xbrli:endDate></xbrli:period></xbrli:context>
  <xbrli:unit id="usd"><xbrli:measure>iso4217:USD</xbrli:measure></xbrli:unit>
  <xbrli:unit id="usdPerShare"><xbrli:divide><xbrli:unitNumerator><xbrli:measure>iso4217:USD</xbrli:measure></xbrli:unitNumerator>
    <xbrli:unitDenominator><xbrli:measure>xbrli:shares</xbrli:measure></xbrli:unitDenominator></xbrli:divide></xbrli:unit>
</ix:resources></ix:header></div>
<table>
<tr><td>Revenue</td><td><ix:nonFraction name="us-gaap:Revenues" contextRef="c-1" unitRef="usd" decimals="-6" scale="6" format="ixt:num-dot-decimal">1,234</ix:nonFraction></td></tr>
<tr><td>Revenue again</td><td><ix:nonFraction name="us-gaap:Revenues" contextRef="c-1" unitRef="usd" decimals="-6" scale="6">1,234</ix:nonFraction></td></tr>
<tr><td>Product revenue</td><td><ix:nonFraction name="us-gaap:Revenues" contextRef="c-3" unitRef="usd" scale="6">900</ix:nonFraction></td></tr>
<tr><td>Net loss</td><td>(<ix:nonFraction name="us-gaap:NetIncomeLoss" contextRef="c-1" unitRef="usd" scale="3" sign="-">12.5</ix:nonFraction>)</td></tr>
<tr><td>EPS</td><td><ix:nonFraction name="us-gaap:EarningsPerShareBasic" contextRef="c-1" unitRef="usdPerShare" decimals="2">0.42</ix:nonFraction></td></tr>
<tr><td>Assets</td><td><ix:nonFraction name="us-gaap:Assets" contextRef="c-2" unitRef="usd" format="ixt:fixed-zero">—</ix:nonFraction></td></tr>
</table></body></html>`

func byConcept(records []facts.RawRecord) map[string]facts.RawRecord {
	out := make(map[string]facts.RawRecord)
	for _, r := range records {
		out[r["concept"].(string)] = r
	}
	return out
}

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(filing))
	require.NoError(t, err)

	assert.Equal(t, Meta{Form: "10-Q", FiscalPeriod: "Q2", FiscalYear: 2025}, doc.Meta)
	assert.Len(t, doc.Contexts, 3)
	assert.True(t, doc.Contexts["c-3"].Dimensional)
	assert.Equal(t, "USD", doc.Units["usd"])
	assert.Equal(t, "USD/shares", doc.Units["usdPerShare"])
	assert.Len(t, doc.Facts, 5, "repeated facts are kept once")

	records := doc.Records()
	require.Len(t, records, 4, "dimensional facts are dropped")
	got := byConcept(records)

	rev := got["Revenues"]
	assert.Equal(t, "us-gaap", rev["taxonomy"])
	assert.Equal(t, "USD", rev["unit"])
	assert.Equal(t, 1234e6, rev["val"])
	assert.Equal(t, "2025-04-01", rev["start"])
	assert.Equal(t, "2025-06-30", rev["end"])
	assert.Equal(t, "10-Q", rev["form"])
	assert.Equal(t, "Q2", rev["fp"])
	assert.Equal(t, 2025, rev["fy"])

	assert.Equal(t, -12500.0, got["NetIncomeLoss"]["val"])
	assert.Equal(t, 0.42, got["EarningsPerShareBasic"]["val"])
	assert.Equal(t, "USD/shares", got["EarningsPerShareBasic"]["unit"])

	assets := got["Assets"]
	assert.Equal(t, 0.0, assets["val"])
	assert.NotContains(t, assets, "start")
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		text, format, scale, sign string
		want                      float64
		ok                        bool
	}{
		{"1,234.5", "ixt:num-dot-decimal", "", "", 1234.5, true},
		{"1.234,5", "ixt:num-comma-decimal", "", "", 1234.5, true},
		{"7", "", "3", "-", -7000, true},
		{"—", "", "6", "", 0, true},
		{"n/a", "", "", "", 0, false},
		{"5", "", "x", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.format, func(t *testing.T) {
			got, ok := parseNumber(tt.text, tt.format, tt.scale, tt.sign)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestAccessionFromURL(t *testing.T) {
	assert.Equal(t, "0000320193-25-000073",
		AccessionFromURL("https://www.sec.gov/Archives/edgar/data/320193/000032019325000073/aapl-20250628.htm"))
	assert.Empty(t, AccessionFromURL("https://example.com/filing.htm"))
}

func TestHarvester_Harvest(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		if r.URL.Path == "/missing.htm" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(filing))
	}))
	defer srv.Close()

	h := NewHarvester("findash test@example.com", 5*time.Second, 0)
	ctx := context.Background()

	url := srv.URL + "/Archives/edgar/data/1234/000000123425000042/exm-20250630.htm"
	records, err := h.Harvest(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "findash test@example.com", ua)
	require.Len(t, records, 4)
	assert.Equal(t, "0000001234-25-000042", records[0]["accn"])

	merged := facts.MergeRaw(map[string]any{"facts": map[string]any{}}, records)
	all := facts.CollectAllFacts(merged)
	assert.Len(t, all, 4)

	_, err = h.Harvest(ctx, srv.URL+"/missing.htm")
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.Harvest(cancelled, url)
	assert.ErrorIs(t, err, context.Canceled)
}
