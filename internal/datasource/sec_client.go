package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"findash/internal/api"
	"findash/internal/logger"
)

// ErrTickerNotFound is returned when a ticker is absent from the registry map
var ErrTickerNotFound = errors.New("ticker not found")

// APIError is a failed registry request
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sec api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// SECConfig configures an SECClient
type SECConfig struct {
	BaseURL            string
	FilesURL           string
	UserAgent          string
	RateLimitPerSecond float64
	Timeout            time.Duration
	MaxRetries         int
	CacheDir           string
	CompanyFactsTTL    time.Duration
	TickerMapTTL       time.Duration
	// HTTPClient replaces the default transport, mainly for tests
	HTTPClient *http.Client
}

// Company is one row of the registry's ticker map
type Company struct {
	CIK    string `json:"cik"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// SECClient fetches company facts from SEC EDGAR
type SECClient struct {
	data    *api.Client
	files   *api.Client
	limiter *RateLimiter
	retry   *api.RetryConfig

	factsCache  *Cache
	tickerCache *Cache

	mu       sync.Mutex
	tickers  map[string]Company
	loadedAt time.Time
	ttl      time.Duration
	now      func() time.Time

	log *zap.Logger
}

// NewSECClient creates a client for the data and files hosts in cfg
func NewSECClient(cfg SECConfig) (*SECClient, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, errors.New("sec client requires a user agent")
	}

	factsCache, err := NewCache(cfg.CacheDir+"/companyfacts", cfg.CompanyFactsTTL)
	if err != nil {
		return nil, err
	}
	tickerCache, err := NewCache(cfg.CacheDir+"/tickers", cfg.TickerMapTTL)
	if err != nil {
		return nil, err
	}

	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 10
	}

	limiter := NewRateLimiter(cfg.RateLimitPerSecond, 1)
	retry := api.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	retry.Throttle = limiter.Wait

	log := logger.Zap().With(zap.String("source", "sec"))

	var opts []api.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, api.WithHTTPClient(cfg.HTTPClient))
	}
	opts = append(opts,
		api.WithTimeout(cfg.Timeout),
		api.WithHeader("User-Agent", cfg.UserAgent),
		api.WithHeader("Accept", "application/json"),
		api.WithLogger(log),
	)
	opts = opts[:len(opts):len(opts)]

	return &SECClient{
		data:        api.NewClient(append(opts, api.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))...),
		files:       api.NewClient(append(opts, api.WithBaseURL(strings.TrimRight(cfg.FilesURL, "/")))...),
		limiter:     limiter,
		retry:       retry,
		factsCache:  factsCache,
		tickerCache: tickerCache,
		ttl:         cfg.TickerMapTTL,
		now:         time.Now,
		log:         log,
	}, nil
}

// PadCIK renders a central index key as the ten-digit form used in URLs
func PadCIK(cik string) string {
	cik = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(cik)), "CIK")
	return fmt.Sprintf("%010s", strings.TrimLeft(cik, "0"))
}

// ResolveCIK maps a ticker to its padded CIK
func (c *SECClient) ResolveCIK(ctx context.Context, ticker string) (string, error) {
	co, err := c.LookupCompany(ctx, ticker)
	if err != nil {
		return "", err
	}
	return co.CIK, nil
}

// LookupCompany returns the registry row for ticker
func (c *SECClient) LookupCompany(ctx context.Context, ticker string) (Company, error) {
	key := strings.ToUpper(strings.TrimSpace(ticker))
	if key == "" {
		return Company{}, fmt.Errorf("%w: empty ticker", ErrTickerNotFound)
	}

	tickers, err := c.tickerMap(ctx)
	if err != nil {
		return Company{}, err
	}

	co, ok := tickers[key]
	if !ok {
		return Company{}, fmt.Errorf("%w: %s", ErrTickerNotFound, key)
	}
	return co, nil
}

// Invalidate drops the in-memory ticker map so the next lookup reloads it
func (c *SECClient) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickers = nil
}

// PruneCache removes expired entries from the on-disk caches
func (c *SECClient) PruneCache() (int, error) {
	n, err := c.factsCache.CleanupExpired()
	if err != nil {
		return n, err
	}
	m, err := c.tickerCache.CleanupExpired()
	return n + m, err
}

func (c *SECClient) tickerMap(ctx context.Context) (map[string]Company, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tickers != nil && c.now().Sub(c.loadedAt) <= c.ttl {
		return c.tickers, nil
	}

	body, cached, err := c.tickerCache.GetOrFetch(MakeKey("company_tickers"), func() ([]byte, error) {
		return c.get(ctx, c.files, "/files/company_tickers.json")
	})
	if err != nil {
		return nil, err
	}
	logger.Fetch(ctx, "sec", "company_tickers", cached)

	tickers, err := parseTickerMap(body)
	if err != nil {
		return nil, err
	}

	c.log.Info("loaded ticker map", zap.Int("tickers", len(tickers)), zap.Bool("cached", cached))
	c.tickers = tickers
	c.loadedAt = c.now()
	return tickers, nil
}

func parseTickerMap(body []byte) (map[string]Company, error) {
	var rows map[string]struct {
		CIK    json.Number `json:"cik_str"`
		Ticker string      `json:"ticker"`
		Title  string      `json:"title"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode ticker map: %w", err)
	}

	out := make(map[string]Company, len(rows))
	for _, r := range rows {
		t := strings.ToUpper(strings.TrimSpace(r.Ticker))
		if t == "" {
			continue
		}
		if _, err := strconv.ParseInt(r.CIK.String(), 10, 64); err != nil {
			continue
		}
		out[t] = Company{CIK: PadCIK(r.CIK.String()), Ticker: t, Title: r.Title}
	}
	return out, nil
}

// CompanyFacts returns the decoded companyfacts document for cik
func (c *SECClient) CompanyFacts(ctx context.Context, cik string) (map[string]any, error) {
	padded := PadCIK(cik)
	log := c.log.With(zap.String("cik", padded))

	op := logger.StartOperation(ctx, "sec.CompanyFacts", "cik", padded)
	ctx = op.GetContext()

	body, cached, err := c.factsCache.GetOrFetch(MakeKey("companyfacts", padded), func() ([]byte, error) {
		return c.get(ctx, c.data, "/api/xbrl/companyfacts/CIK"+padded+".json")
	})
	if err != nil {
		log.Warn("company facts fetch failed", zap.Error(err))
		op.EndWithError(err)
		return nil, err
	}
	logger.Fetch(ctx, "sec", "companyfacts:"+padded, cached, "bytes", len(body))

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		log.Debug("malformed company facts", zap.Error(err))
		err = fmt.Errorf("decode company facts for CIK%s: %w", padded, err)
		op.EndWithError(err)
		return nil, err
	}
	op.End("bytes", len(body), "cached", strconv.FormatBool(cached))
	return doc, nil
}

func (c *SECClient) get(ctx context.Context, client *api.Client, path string) ([]byte, error) {
	resp, err := client.GETWithRetry(ctx, path, c.retry)
	if err != nil {
		var httpErr *api.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &APIError{StatusCode: httpErr.StatusCode, Endpoint: path, Message: httpErr.Body}
		}
		return nil, err
	}
	return resp.Body, nil
}
