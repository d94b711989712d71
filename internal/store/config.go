package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"findash/internal/anchor"
	"findash/internal/series"
)

type Config struct {
	// DataSource selects where company facts come from: LIVE fetches from
	// SEC EDGAR, FILE reads companyfacts JSON documents from Files.Dir.
	DataSource string `yaml:"data_source"`

	SEC struct {
		BaseURL            string  `yaml:"base_url"`
		FilesURL           string  `yaml:"files_url"`
		UserAgent          string  `yaml:"user_agent"`
		RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
		TimeoutSeconds     int     `yaml:"timeout_seconds"`
		MaxRetries         int     `yaml:"max_retries"`
	} `yaml:"sec"`
	Files struct {
		Dir string `yaml:"dir"`
	} `yaml:"files"`
	Cache struct {
		Dir                  string `yaml:"dir"`
		CompanyFactsTTLHours int    `yaml:"company_facts_ttl_hours"`
		TickerMapTTLHours    int    `yaml:"ticker_map_ttl_hours"`
	} `yaml:"cache"`
	Extraction struct {
		DefaultLimit              int            `yaml:"default_limit"`
		MinLimit                  int            `yaml:"min_limit"`
		MaxLimit                  int            `yaml:"max_limit"`
		Allow10QFallback          *bool          `yaml:"allow_10q_fallback"`
		QuarterMinDays            int            `yaml:"quarter_min_days"`
		QuarterMaxDays            int            `yaml:"quarter_max_days"`
		FilingDelayWarnDays       int            `yaml:"filing_delay_warn_days"`
		ClosestMatchToleranceDays int            `yaml:"closest_match_tolerance_days"`
		Scoring                   *ScoringConfig `yaml:"scoring"`
	} `yaml:"extraction"`
	Server struct {
		Addr                string `yaml:"addr"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	} `yaml:"server"`
	Database struct {
		Enabled bool   `yaml:"enabled"`
		URLEnv  string `yaml:"url_env"`
	} `yaml:"database"`
	QualityLog struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"quality_log"`
}

// ScoringConfig weighs competing records for the same quarter end.
type ScoringConfig struct {
	Form10Q   int `yaml:"form_10q"`
	FiledDate int `yaml:"filed_date"`
	Frame     int `yaml:"frame"`
	FYLabel   int `yaml:"fy_label"`
}

func (c *Config) Validate() error {
	if c.DataSource != "LIVE" && c.DataSource != "FILE" {
		return fmt.Errorf("invalid data_source '%s': must be 'LIVE' or 'FILE'", c.DataSource)
	}
	if c.DataSource == "FILE" && c.Files.Dir == "" {
		return errors.New("files.dir is required when data_source is FILE")
	}
	if c.DataSource == "LIVE" && c.SEC.UserAgent == "" {
		return errors.New("sec.user_agent cannot be empty (set SEC_USER_AGENT)")
	}
	if c.SEC.RateLimitPerSecond <= 0 {
		return fmt.Errorf("sec.rate_limit_per_second must be positive, got %.2f", c.SEC.RateLimitPerSecond)
	}

	e := c.Extraction
	if e.MinLimit < 1 || e.MaxLimit > 40 || e.MinLimit > e.MaxLimit {
		return fmt.Errorf("extraction limits must satisfy 1 <= min <= max <= 40, got %d..%d", e.MinLimit, e.MaxLimit)
	}
	if e.DefaultLimit < e.MinLimit || e.DefaultLimit > e.MaxLimit {
		return fmt.Errorf("extraction.default_limit %d outside %d..%d", e.DefaultLimit, e.MinLimit, e.MaxLimit)
	}
	if e.QuarterMinDays <= 0 || e.QuarterMinDays >= e.QuarterMaxDays {
		return fmt.Errorf("extraction quarter window must satisfy 0 < min < max, got %d..%d", e.QuarterMinDays, e.QuarterMaxDays)
	}
	w := e.Scoring
	if w.Form10Q <= w.FiledDate+w.Frame {
		return fmt.Errorf("extraction.scoring.form_10q (%d) must exceed filed_date + frame (%d)", w.Form10Q, w.FiledDate+w.Frame)
	}
	if w.FYLabel >= 0 {
		return fmt.Errorf("extraction.scoring.fy_label must be negative, got %d", w.FYLabel)
	}
	if c.Database.Enabled && c.Database.URLEnv == "" {
		return errors.New("database.url_env is required when database is enabled")
	}
	return nil
}

// ClampLimit bounds a requested series depth to the configured range. Zero
// selects the default.
func (c *Config) ClampLimit(limit int) int {
	e := c.Extraction
	switch {
	case limit == 0:
		return e.DefaultLimit
	case limit < e.MinLimit:
		return e.MinLimit
	case limit > e.MaxLimit:
		return e.MaxLimit
	}
	return limit
}

// SeriesConfig converts the extraction section into extractor settings.
func (c *Config) SeriesConfig() series.Config {
	e := c.Extraction
	p := anchor.DefaultPolicy()
	p.QuarterMinDays = e.QuarterMinDays
	p.QuarterMaxDays = e.QuarterMaxDays
	p.Weights = anchor.Weights{
		Form10Q:   e.Scoring.Form10Q,
		FiledDate: e.Scoring.FiledDate,
		Frame:     e.Scoring.Frame,
		FYLabel:   e.Scoring.FYLabel,
	}
	return series.Config{
		Policy:              p,
		Allow10QFallback:    *e.Allow10QFallback,
		FilingDelayWarnDays: e.FilingDelayWarnDays,
		ToleranceDays:       e.ClosestMatchToleranceDays,
	}
}

func (c *Config) CompanyFactsTTL() time.Duration {
	return time.Duration(c.Cache.CompanyFactsTTLHours) * time.Hour
}

func (c *Config) TickerMapTTL() time.Duration {
	return time.Duration(c.Cache.TickerMapTTLHours) * time.Hour
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML, applies defaults and environment overrides, and
// validates the result.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if ua := os.Getenv("SEC_USER_AGENT"); ua != "" {
		c.SEC.UserAgent = ua
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.DataSource == "" {
		c.DataSource = "LIVE"
	}

	if c.SEC.BaseURL == "" {
		c.SEC.BaseURL = "https://data.sec.gov"
	}
	if c.SEC.FilesURL == "" {
		c.SEC.FilesURL = "https://www.sec.gov"
	}
	if c.SEC.RateLimitPerSecond == 0 {
		c.SEC.RateLimitPerSecond = 10
	}
	if c.SEC.TimeoutSeconds == 0 {
		c.SEC.TimeoutSeconds = 30
	}
	if c.SEC.MaxRetries == 0 {
		c.SEC.MaxRetries = 3
	}

	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache/sec"
	}
	if c.Cache.CompanyFactsTTLHours == 0 {
		c.Cache.CompanyFactsTTLHours = 24
	}
	if c.Cache.TickerMapTTLHours == 0 {
		c.Cache.TickerMapTTLHours = 168
	}

	e := &c.Extraction
	if e.MinLimit == 0 {
		e.MinLimit = 1
	}
	if e.MaxLimit == 0 {
		e.MaxLimit = 40
	}
	if e.DefaultLimit == 0 {
		e.DefaultLimit = 12
	}
	if e.Allow10QFallback == nil {
		allow := true
		e.Allow10QFallback = &allow
	}
	if e.QuarterMinDays == 0 {
		e.QuarterMinDays = 70
	}
	if e.QuarterMaxDays == 0 {
		e.QuarterMaxDays = 120
	}
	if e.FilingDelayWarnDays == 0 {
		e.FilingDelayWarnDays = 60
	}
	if e.ClosestMatchToleranceDays == 0 {
		e.ClosestMatchToleranceDays = 10
	}
	if e.Scoring == nil {
		w := anchor.DefaultPolicy().Weights
		e.Scoring = &ScoringConfig{
			Form10Q:   w.Form10Q,
			FiledDate: w.FiledDate,
			Frame:     w.Frame,
			FYLabel:   w.FYLabel,
		}
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 30
	}

	if c.Database.URLEnv == "" {
		c.Database.URLEnv = "DATABASE_URL"
	}

	if c.QualityLog.Dir == "" {
		c.QualityLog.Dir = "logs/quality"
	}
	if c.QualityLog.RetentionDays == 0 {
		c.QualityLog.RetentionDays = 30
	}
}
