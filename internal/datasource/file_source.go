package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource serves companyfacts documents saved on disk. A document is found
// as CIK<padded>.json or <TICKER>.json under dir; company_tickers.json in the
// same directory, when present, maps tickers to CIKs.
type FileSource struct {
	dir string
}

// NewFileSource creates a source reading from dir
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// ResolveCIK returns the padded CIK from company_tickers.json. Without a
// ticker map the upper-cased ticker is returned so CompanyFacts can look up
// <TICKER>.json.
func (fs *FileSource) ResolveCIK(ctx context.Context, ticker string) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(ticker))
	if key == "" {
		return "", fmt.Errorf("%w: empty ticker", ErrTickerNotFound)
	}

	body, err := os.ReadFile(filepath.Join(fs.dir, "company_tickers.json"))
	if errors.Is(err, os.ErrNotExist) {
		if _, err := os.Stat(filepath.Join(fs.dir, key+".json")); err != nil {
			return "", fmt.Errorf("%w: %s", ErrTickerNotFound, key)
		}
		return key, nil
	}
	if err != nil {
		return "", err
	}

	tickers, err := parseTickerMap(body)
	if err != nil {
		return "", err
	}
	co, ok := tickers[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTickerNotFound, key)
	}
	return co.CIK, nil
}

// CompanyFacts reads and decodes the document for cik
func (fs *FileSource) CompanyFacts(ctx context.Context, cik string) (map[string]any, error) {
	candidates := []string{
		filepath.Join(fs.dir, "CIK"+PadCIK(cik)+".json"),
		filepath.Join(fs.dir, strings.ToUpper(cik)+".json"),
	}

	for _, path := range candidates {
		body, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return doc, nil
	}

	return nil, fmt.Errorf("no company facts file for %s in %s: %w", cik, fs.dir, os.ErrNotExist)
}
