package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/series"
)

func TestParseConfig_Defaults(t *testing.T) {
	t.Setenv("SEC_USER_AGENT", "findash test@example.com")

	c, err := ParseConfig([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "LIVE", c.DataSource)
	assert.Equal(t, "findash test@example.com", c.SEC.UserAgent)
	assert.Equal(t, "https://data.sec.gov", c.SEC.BaseURL)
	assert.Equal(t, 10.0, c.SEC.RateLimitPerSecond)
	assert.Equal(t, 12, c.Extraction.DefaultLimit)
	assert.True(t, *c.Extraction.Allow10QFallback)
	assert.Equal(t, 100, c.Extraction.Scoring.Form10Q)
	assert.Equal(t, "DATABASE_URL", c.Database.URLEnv)
	assert.Equal(t, 24*60*60.0, c.CompanyFactsTTL().Seconds())

	sc := c.SeriesConfig()
	assert.Equal(t, series.DefaultConfig(), sc)
}

func TestParseConfig_Overrides(t *testing.T) {
	t.Setenv("SEC_USER_AGENT", "")

	yml := `
data_source: FILE
files:
  dir: testdata
extraction:
  allow_10q_fallback: false
  quarter_min_days: 80
  quarter_max_days: 100
  scoring:
    form_10q: 50
    filed_date: 5
    frame: 2
    fy_label: -500
`
	c, err := ParseConfig([]byte(yml))
	require.NoError(t, err)

	sc := c.SeriesConfig()
	assert.False(t, sc.Allow10QFallback)
	assert.Equal(t, 80, sc.Policy.QuarterMinDays)
	assert.Equal(t, 50, sc.Policy.Weights.Form10Q)
	assert.Equal(t, -500, sc.Policy.Weights.FYLabel)
}

func TestParseConfig_Validation(t *testing.T) {
	t.Setenv("SEC_USER_AGENT", "findash test@example.com")

	tests := []struct {
		name string
		yml  string
	}{
		{"bad data source", "data_source: MOCK"},
		{"file mode without dir", "data_source: FILE"},
		{"limits out of range", "extraction: {max_limit: 41}"},
		{"min above max", "extraction: {min_limit: 10, max_limit: 5, default_limit: 5}"},
		{"inverted window", "extraction: {quarter_min_days: 130}"},
		{"10-Q weight does not dominate", "extraction: {scoring: {form_10q: 5, filed_date: 10, frame: 1, fy_label: -1000}}"},
		{"non-negative fy weight", "extraction: {scoring: {form_10q: 100, filed_date: 10, frame: 1, fy_label: 0}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yml))
			assert.Error(t, err)
		})
	}

	t.Run("live mode needs a user agent", func(t *testing.T) {
		t.Setenv("SEC_USER_AGENT", "")
		_, err := ParseConfig([]byte("data_source: LIVE"))
		assert.Error(t, err)
	})
}

func TestClampLimit(t *testing.T) {
	t.Setenv("SEC_USER_AGENT", "findash test@example.com")
	c, err := ParseConfig([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 12, c.ClampLimit(0))
	assert.Equal(t, 1, c.ClampLimit(-5))
	assert.Equal(t, 40, c.ClampLimit(500))
	assert.Equal(t, 8, c.ClampLimit(8))
}

func TestSnapshotRoundTrip(t *testing.T) {
	result := series.SeriesResult{
		Ticker: "exm",
		Series: []series.QuarterBundle{{PeriodEnd: "2025-09-30", Warnings: []string{}}},
		Debug:  series.Debug{RequestID: "req-9", PeriodsFound: 1},
	}

	snap, err := NewSnapshot(result, "0000001234")
	require.NoError(t, err)
	assert.Equal(t, "EXM", snap.Ticker)
	assert.Equal(t, "req-9", snap.RequestID)

	back, err := snap.Result()
	require.NoError(t, err)
	assert.Equal(t, "2025-09-30", back.Series[0].PeriodEnd)
	assert.Equal(t, 1, back.Debug.PeriodsFound)
}

func TestSnapshotRepo_Disabled(t *testing.T) {
	var r *SnapshotRepo
	assert.ErrorIs(t, r.SaveSnapshot(context.Background(), Snapshot{}), ErrSnapshotStoreDisabled)
	_, err := (&SnapshotRepo{}).LatestSnapshot(context.Background(), "EXM")
	assert.ErrorIs(t, err, ErrSnapshotStoreDisabled)

	_, err = OpenSnapshotRepo(context.Background(), "FINDASH_TEST_UNSET_DB_URL")
	assert.Error(t, err)
}
