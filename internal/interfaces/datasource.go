package interfaces

import (
	"context"

	"findash/internal/facts"
)

// CompanyFactsSource fetches raw filings data from the registry
type CompanyFactsSource interface {
	// ResolveCIK maps a ticker symbol to its zero-padded central index key
	ResolveCIK(ctx context.Context, ticker string) (string, error)

	// CompanyFacts returns the decoded companyfacts document for a CIK
	CompanyFacts(ctx context.Context, cik string) (map[string]any, error)
}

// FactHarvester extracts fact rows from a single inline-XBRL filing
type FactHarvester interface {
	Harvest(ctx context.Context, url string) ([]facts.RawRecord, error)
}
