package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/aluiziolira/go-harvest/logging"
	"github.com/aluiziolira/go-harvest/pipeline"
	"github.com/aluiziolira/go-harvest/scraper"
	"github.com/aluiziolira/go-harvest/store"
)

const exitInterrupted = 130

func runCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Fetch every pending target and persist the extracted records",
		Action: runAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "override REQUEST_COUNT",
			},
			&cli.BoolFlag{
				Name:  "retry",
				Usage: "override RETRY_FAILED (retry failed targets until they succeed)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "override METRICS_ADDR (e.g. :9090)",
			},
		},
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.IsSet("concurrency") {
		cfg.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("retry") {
		cfg.RetryFailed = c.Bool("retry")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutdown signal received, finishing the current chunk")
	}()

	gw, err := store.Open(ctx, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open %s backend: %v", cfg.Storage.Backend, err), 1)
	}
	defer func() {
		if err := gw.Close(); err != nil {
			logger.Error().Err(err).Msg("close gateway")
		}
	}()

	seed, err := gw.Load(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("load work set: %v", err), 1)
	}
	pending, err := pipeline.Resolve(seed.Input, seed.Output)
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve work set: %v", err), 1)
	}
	logger.Info().
		Int("input", len(seed.Input)).
		Int("output", len(seed.Output)).
		Int("pending", len(pending)).
		Msg("work set resolved")
	if len(pending) == 0 {
		logger.Info().Msg("nothing left to fetch")
		return nil
	}

	fetcher, err := scraper.NewProxyFetcher(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if cfg.IPCheckURL != "" {
		ip, err := fetcher.PublicIP(ctx, cfg.IPCheckURL)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		logger.Info().Str("ip", ip).Msg("egress address")
	}

	extractor, err := buildExtractor(cfg.Extractor)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	s, err := scraper.NewScraper(cfg, fetcher, extractor, gw,
		scraper.WithLogger(logging.NewLogger("scraper")))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	metricsServer := startMetrics(cfg.MetricsAddr, s.Metrics, logger)
	defer stopMetrics(metricsServer, logger)

	report, runErr := s.Run(ctx, pending)
	printSummary(c.App.Writer, report, report.Duration())

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, scraper.ErrInterrupted):
		return cli.Exit("interrupted", exitInterrupted)
	default:
		return cli.Exit(runErr.Error(), 1)
	}
}

func startMetrics(addr string, m *scraper.Metrics, logger zerolog.Logger) *http.Server {
	if addr == "" || m == nil {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("metrics server enabled")
	return srv
}

func stopMetrics(srv *http.Server, logger zerolog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown failed")
	}
}
