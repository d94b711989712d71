// Package qualitylog keeps an append-only daily JSONL record of the
// data-quality warnings raised by series extraction.
package qualitylog

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"findash/internal/series"
)

type Entry struct {
	Time      string `json:"time"`
	RequestID string `json:"request_id,omitempty"`
	Ticker    string `json:"ticker"`
	PeriodEnd string `json:"period_end"`
	PeriodID  string `json:"period_id,omitempty"`
	Warning   string `json:"warning"`
	Form      string `json:"form,omitempty"`
	Filed     string `json:"filed,omitempty"`
	DeltaDays *int   `json:"filing_delta_days,omitempty"`
}

// Log writes entries under dir, one file per UTC day.
type Log struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func New(dir string) *Log {
	if dir == "" {
		dir = filepath.Join("logs", "quality")
	}
	return &Log{dir: dir, now: time.Now}
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) dailyFilepath(t time.Time) string {
	return filepath.Join(l.dir, t.UTC().Format("2006-01-02")+".jsonl")
}

// Append writes entries to today's file.
func (l *Log) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	p := l.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, e := range entries {
		if e.Time == "" {
			e.Time = now.Format(time.RFC3339)
		}
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(f, string(b)); err != nil {
			return err
		}
	}
	return nil
}

// Record appends one entry per bundle warning in result.
func (l *Log) Record(_ context.Context, result series.SeriesResult) error {
	var entries []Entry
	for _, b := range result.Series {
		for _, w := range b.Warnings {
			e := Entry{
				RequestID: result.Debug.RequestID,
				Ticker:    result.Ticker,
				PeriodEnd: b.PeriodEnd,
				Warning:   w,
				Form:      b.Form,
				Filed:     b.Filed,
				DeltaDays: b.FilingDeltaDays,
			}
			if b.PeriodID != nil {
				e.PeriodID = *b.PeriodID
			}
			entries = append(entries, e)
		}
	}
	return l.Append(entries...)
}

// CompressOlder gzips day files last modified more than retentionDays ago.
// Files that fail to compress are left in place and their errors returned.
func (l *Log) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().AddDate(0, 0, -retentionDays)
	var errs []error
	walkErr := filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == l.dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			errs = append(errs, err)
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if fi, err := os.Stat(gz); err == nil && fi.Mode().IsRegular() {
			return os.Remove(p)
		}
		if err := compress(p, gz); err != nil {
			_ = os.Remove(gz)
			errs = append(errs, fmt.Errorf("compress %s: %w", p, err))
			return nil
		}
		if err := os.Remove(p); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errors.Join(errs...)
}

func compress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
