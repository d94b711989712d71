package ixbrl

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/gocolly/colly/v2"

	"findash/internal/facts"
	"findash/internal/logger"
)

// Harvester downloads inline-XBRL filings and extracts their numeric facts
type Harvester struct {
	userAgent string
	timeout   time.Duration
	delay     time.Duration
}

// NewHarvester creates a harvester that identifies itself with userAgent and
// waits delay between requests to the same host
func NewHarvester(userAgent string, timeout, delay time.Duration) *Harvester {
	return &Harvester{
		userAgent: userAgent,
		timeout:   timeout,
		delay:     delay,
	}
}

var accessionPath = regexp.MustCompile(`/Archives/edgar/data/\d+/(\d{10})(\d{2})(\d{6})/`)

// AccessionFromURL recovers the dashed accession number from an EDGAR
// archive URL.
func AccessionFromURL(url string) string {
	m := accessionPath.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1] + "-" + m[2] + "-" + m[3]
}

// Harvest fetches url and returns its non-dimensional numeric facts as
// companyfacts-shaped rows
func (h *Harvester) Harvest(ctx context.Context, url string) ([]facts.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
		colly.UserAgent(h.userAgent),
	)
	if h.timeout > 0 {
		c.SetRequestTimeout(h.timeout)
	}
	if h.delay > 0 {
		if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: h.delay}); err != nil {
			return nil, err
		}
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	var (
		doc      *Document
		parseErr error
	)
	c.OnResponse(func(r *colly.Response) {
		doc, parseErr = Parse(bytes.NewReader(r.Body))
	})

	if err := c.Visit(url); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.ErrorWithErr(ctx, "Failed to fetch filing", err, "url", url)
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	c.Wait()

	if parseErr != nil {
		return nil, parseErr
	}
	if doc == nil {
		return nil, fmt.Errorf("fetch %s: no response", url)
	}

	if doc.Meta.Accession == "" {
		doc.Meta.Accession = AccessionFromURL(url)
	}
	records := doc.Records()

	logger.Info(ctx, "Harvested inline XBRL facts",
		"url", url,
		"form", doc.Meta.Form,
		"facts", len(doc.Facts),
		"records", len(records))
	return records, nil
}
