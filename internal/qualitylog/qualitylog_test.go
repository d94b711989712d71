package qualitylog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/series"
)

func fixedLog(t *testing.T, now time.Time) *Log {
	l := New(t.TempDir())
	l.now = func() time.Time { return now }
	return l
}

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRecord(t *testing.T) {
	now := time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC)
	l := fixedLog(t, now)

	id := "FY2025Q3"
	delta := 74
	result := series.SeriesResult{
		Ticker: "EXM",
		Series: []series.QuarterBundle{
			{PeriodEnd: "2025-09-30", PeriodID: &id, FilingDeltaDays: &delta, Warnings: []string{series.WarnFilingDelayed, series.WarnAmendedFiling}},
			{PeriodEnd: "2025-06-30", Warnings: []string{}},
		},
		Debug: series.Debug{RequestID: "req-1"},
	}

	require.NoError(t, l.Record(context.Background(), result))
	require.NoError(t, l.Record(context.Background(), series.SeriesResult{Ticker: "NONE"}))

	got := readEntries(t, filepath.Join(l.Dir(), "2025-11-03.jsonl"))
	require.Len(t, got, 2)
	assert.Equal(t, series.WarnFilingDelayed, got[0].Warning)
	assert.Equal(t, "FY2025Q3", got[0].PeriodID)
	assert.Equal(t, "req-1", got[0].RequestID)
	require.NotNil(t, got[0].DeltaDays)
	assert.Equal(t, 74, *got[0].DeltaDays)
	assert.Equal(t, series.WarnAmendedFiling, got[1].Warning)
	assert.Equal(t, "2025-11-03T15:00:00Z", got[1].Time)
}

func TestCompressOlder(t *testing.T) {
	now := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	l := fixedLog(t, now)

	old := filepath.Join(l.Dir(), "2025-09-01.jsonl")
	fresh := filepath.Join(l.Dir(), "2025-11-02.jsonl")
	require.NoError(t, os.WriteFile(old, []byte(`{"warning":"filing_delayed"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte(`{"warning":"amended_filing"}`+"\n"), 0o644))
	require.NoError(t, os.Chtimes(old, now.AddDate(0, 0, -60), now.AddDate(0, 0, -60)))
	require.NoError(t, os.Chtimes(fresh, now.AddDate(0, 0, -1), now.AddDate(0, 0, -1)))

	require.NoError(t, l.CompressOlder(30))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(old + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(fresh)
	assert.NoError(t, err)

	assert.NoError(t, l.CompressOlder(0))
}

func TestCompressOlder_ReportsFailures(t *testing.T) {
	now := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	l := fixedLog(t, now)

	stale := filepath.Join(l.Dir(), "2025-08-01.jsonl")
	require.NoError(t, os.WriteFile(stale, []byte(`{"warning":"filing_delayed"}`+"\n"), 0o644))
	require.NoError(t, os.Chtimes(stale, now.AddDate(0, 0, -90), now.AddDate(0, 0, -90)))

	// a directory squatting on the archive name makes the gzip write fail
	blocker := stale + ".gz"
	require.NoError(t, os.MkdirAll(blocker, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocker, "keep"), nil, 0o644))

	err := l.CompressOlder(30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2025-08-01.jsonl")

	_, statErr := os.Stat(stale)
	assert.NoError(t, statErr, "the day file stays when compression fails")
}

func TestCompressOlder_MissingDir(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "absent"))
	assert.NoError(t, l.CompressOlder(30))
}
