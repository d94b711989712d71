package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"findash/internal/datasource"
	"findash/internal/facts"
	"findash/internal/ixbrl"
	"findash/internal/logger"
	"findash/internal/qualitylog"
	"findash/internal/report"
	"findash/internal/series"
	"findash/internal/series/seriesobs"
	"findash/internal/store"
	"findash/internal/trace"
)

var errUsage = errors.New("-ticker is required")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the command and returns once every deferred shutdown has run.
func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("quarters", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "path to config file")
	ticker := fs.String("ticker", "", "ticker symbol (required)")
	file := fs.String("file", "", "read a companyfacts JSON document instead of the configured data source")
	filing := fs.String("filing", "", "inline-XBRL filing URL whose facts are merged before extraction")
	limit := fs.Int("limit", 0, "number of quarters (0 uses the configured default)")
	metric := fs.String("metric", "", "print the full history of one metric instead of the quarter series")
	format := fs.String("format", "text", "output format: text, json, or csv")
	outputFile := fs.String("output", "", "save report to file (optional)")
	reportDir := fs.String("report-dir", "", "also save a timestamped copy of the report under this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *ticker == "" {
		fs.Usage()
		return errUsage
	}

	_ = godotenv.Load()

	cfg, err := store.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(ctx)
		_ = logger.Shutdown(ctx)
	}()

	reportFormat, err := report.ParseFormat(*format)
	if err != nil {
		return err
	}

	ctx := context.Background()

	var payload map[string]any
	if *file != "" {
		raw, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", *file, err)
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("decoding %s: %w", *file, err)
		}
	} else {
		source, err := datasource.CreateDataSource(cfg)
		if err != nil {
			return fmt.Errorf("creating data source: %w", err)
		}
		cik, err := source.ResolveCIK(ctx, *ticker)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", *ticker, err)
		}
		payload, err = source.CompanyFacts(ctx, cik)
		if err != nil {
			return fmt.Errorf("fetching company facts for %s: %w", *ticker, err)
		}
	}

	if *filing != "" {
		h := ixbrl.NewHarvester(cfg.SEC.UserAgent, time.Duration(cfg.SEC.TimeoutSeconds)*time.Second, 0)
		extra, err := h.Harvest(ctx, *filing)
		if err != nil {
			return fmt.Errorf("harvesting %s: %w", *filing, err)
		}
		payload = facts.MergeRaw(payload, extra)
	}

	qlog := qualitylog.New(cfg.QualityLog.Dir)
	if err := qlog.CompressOlder(cfg.QualityLog.RetentionDays); err != nil {
		logger.ErrorWithErr(ctx, "Failed to compress quality logs", err)
	}
	extractor := seriesobs.Wrap(series.New(cfg.SeriesConfig()), seriesobs.WithQualitySink(qlog))

	if *metric != "" {
		m, err := extractor.Metric(ctx, *ticker, payload, *metric)
		if err != nil {
			return err
		}
		content, err := report.RenderMetric(m, reportFormat)
		if err != nil {
			return fmt.Errorf("rendering metric: %w", err)
		}
		return emit(stdout, stderr, content, *outputFile)
	}

	result, err := extractor.Extract(ctx, *ticker, payload, cfg.ClampLimit(*limit))
	if err != nil {
		return fmt.Errorf("extracting series: %w", err)
	}

	content, err := report.Render(result, reportFormat)
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	if err := emit(stdout, stderr, content, *outputFile); err != nil {
		return err
	}

	if *reportDir != "" {
		path, err := report.NewReporter(*reportDir).SaveReport(result, reportFormat, time.Now())
		if err != nil {
			logger.ErrorWithErr(ctx, "Could not save report", err, "dir", *reportDir)
		} else {
			fmt.Fprintf(stderr, "Report saved to: %s\n", path)
		}
	}
	if result.Empty() {
		fmt.Fprintf(stderr, "No quarterly periods found for %s\n", result.Ticker)
	}
	return nil
}

func emit(stdout, stderr io.Writer, content, outputFile string) error {
	fmt.Fprintln(stdout, content)
	if outputFile == "" {
		return nil
	}
	if err := os.WriteFile(outputFile, []byte(content), 0o644); err != nil {
		return fmt.Errorf("saving report to file: %w", err)
	}
	fmt.Fprintf(stderr, "Report saved to: %s\n", outputFile)
	return nil
}
