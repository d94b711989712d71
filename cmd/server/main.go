package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"findash/internal/datasource"
	"findash/internal/ixbrl"
	"findash/internal/logger"
	"findash/internal/qualitylog"
	"findash/internal/series"
	"findash/internal/series/seriesobs"
	"findash/internal/server"
	"findash/internal/store"
	"findash/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := store.LoadConfig(*configPath)
	must(err)

	must(logger.Init())
	must(trace.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, err := datasource.CreateDataSource(cfg)
	must(err)
	if p, ok := source.(interface{ PruneCache() (int, error) }); ok {
		n, err := p.PruneCache()
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to prune SEC cache", err)
		} else if n > 0 {
			logger.Info(ctx, "Pruned expired SEC cache entries", "removed", n)
		}
	}

	qlog := qualitylog.New(cfg.QualityLog.Dir)
	if err := qlog.CompressOlder(cfg.QualityLog.RetentionDays); err != nil {
		logger.ErrorWithErr(ctx, "Failed to compress quality logs", err)
	}
	extractor := seriesobs.Wrap(series.New(cfg.SeriesConfig()), seriesobs.WithQualitySink(qlog))

	delay := time.Duration(float64(time.Second) / cfg.SEC.RateLimitPerSecond)
	opts := []server.Option{
		server.WithHarvester(ixbrl.NewHarvester(cfg.SEC.UserAgent, time.Duration(cfg.SEC.TimeoutSeconds)*time.Second, delay)),
	}

	if cfg.Database.Enabled {
		repo, err := store.OpenSnapshotRepo(ctx, cfg.Database.URLEnv)
		must(err)
		defer repo.Close()
		opts = append(opts, server.WithSnapshots(repo))
	}

	srv := server.New(cfg, source, extractor, opts...)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case sig := <-sigc:
		logger.Info(ctx, "Shutting down", "signal", sig.String())
	case err := <-errc:
		if err != nil {
			logger.ErrorWithErr(ctx, "Server stopped", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = trace.Shutdown(shutdownCtx)
	_ = logger.Shutdown(shutdownCtx)
}
