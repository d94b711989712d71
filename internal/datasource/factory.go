package datasource

import (
	"fmt"
	"time"

	"findash/internal/interfaces"
	"findash/internal/store"
)

// CreateDataSource creates the company facts source selected by cfg
func CreateDataSource(cfg *store.Config) (interfaces.CompanyFactsSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	switch cfg.DataSource {
	case "FILE":
		return NewFileSource(cfg.Files.Dir), nil

	case "LIVE", "":
		return NewSECClient(SECConfig{
			BaseURL:            cfg.SEC.BaseURL,
			FilesURL:           cfg.SEC.FilesURL,
			UserAgent:          cfg.SEC.UserAgent,
			RateLimitPerSecond: cfg.SEC.RateLimitPerSecond,
			Timeout:            time.Duration(cfg.SEC.TimeoutSeconds) * time.Second,
			MaxRetries:         cfg.SEC.MaxRetries,
			CacheDir:           cfg.Cache.Dir,
			CompanyFactsTTL:    cfg.CompanyFactsTTL(),
			TickerMapTTL:       cfg.TickerMapTTL(),
		})

	default:
		return nil, fmt.Errorf("unknown data source type: %s (valid options: LIVE, FILE)", cfg.DataSource)
	}
}
