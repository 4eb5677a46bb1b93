// Package scraper drives a harvesting session: chunked concurrent fetches
// through the proxy, adaptive pacing, failure classification and retries.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/aluiziolira/go-harvest/config"
	"github.com/aluiziolira/go-harvest/models"
	"github.com/aluiziolira/go-harvest/monitor"
	"github.com/aluiziolira/go-harvest/parser"
	"github.com/aluiziolira/go-harvest/pipeline"
)

// Gateway is the part of the persistence layer the orchestrator writes to.
type Gateway interface {
	AppendOutput(ctx context.Context, records []models.Record) error
	AppendError(ctx context.Context, entry models.ErrorEntry) error
	AppendFatalError(ctx context.Context, entry models.ErrorEntry) error
}

// Scraper is the session orchestrator. A Scraper runs one session at a time.
type Scraper struct {
	cfg       *config.Config
	fetcher   Fetcher
	extractor parser.Extractor
	gateway   Gateway

	Metrics *Metrics
	monitor *monitor.Monitor
	pacer   *pacer
	alerter Alerter
	logger  zerolog.Logger
	now     func() time.Time

	// completed holds targets whose records were flushed this session. A
	// resolved pending set never repeats a target, so this only matters for
	// callers of Run that pass duplicates.
	completed *lru.Cache[string, struct{}]
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithMetrics replaces the default metrics bundle.
func WithMetrics(m *Metrics) Option {
	return func(s *Scraper) { s.Metrics = m }
}

// WithMonitor replaces the default progress monitor.
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *Scraper) { s.monitor = m }
}

// WithAlerter replaces the terminal bell used on fatal aborts.
func WithAlerter(a Alerter) Option {
	return func(s *Scraper) { s.alerter = a }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// WithClock sets the time source used for latency and log timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScraper builds an orchestrator configured from cfg.
func NewScraper(cfg *config.Config, fetcher Fetcher, extractor parser.Extractor, gateway Gateway, opts ...Option) (*Scraper, error) {
	if cfg == nil {
		return nil, errors.New("scraper: nil config")
	}
	if fetcher == nil || extractor == nil || gateway == nil {
		return nil, errors.New("scraper: fetcher, extractor and gateway are required")
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("scraper: concurrency must be positive, got %d", cfg.Concurrency)
	}
	size := cfg.DedupeMaxSize
	if size <= 0 {
		size = config.DefaultConfig().DedupeMaxSize
	}
	completed, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("scraper: completed cache: %w", err)
	}

	s := &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		gateway:   gateway,
		Metrics:   NewMetrics(),
		monitor:   monitor.New(cfg.MaxDelay),
		pacer:     newPacer(cfg.InitialDelay),
		alerter:   NewBellAlerter(cfg.AlertBeeps, cfg.AlertInterval),
		logger:    zerolog.Nop(),
		now:       time.Now,
		completed: completed,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.alerter == nil {
		s.alerter = nopAlerter{}
	}
	return s, nil
}

// Delay returns the adaptive delay the next chunk will use.
func (s *Scraper) Delay() time.Duration {
	return s.pacer.Delay()
}

// Monitor exposes the session's progress monitor.
func (s *Scraper) Monitor() *monitor.Monitor {
	return s.monitor
}

// chunkResult is what one barrier-synchronised chunk produced.
type chunkResult struct {
	successes []Outcome
	failed    []string
}

// Run processes pending in chunks of cfg.Concurrency until every chunk is
// flushed, a fatal outcome aborts the session, or ctx is cancelled between
// chunks. The report is returned in every case.
func (s *Scraper) Run(ctx context.Context, pending []string) (*models.SessionReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	chunks := pipeline.Chunks(pending, s.cfg.Concurrency)
	report := &models.SessionReport{
		SessionID: uuid.NewString(),
		StartTime: s.now(),
		Targets:   len(pending),
		Chunks:    len(chunks),
	}
	finish := func(err error) (*models.SessionReport, error) {
		report.EndTime = s.now()
		return report, err
	}

	s.monitor.MarkSessionStart()
	s.logger.Info().
		Str("session", report.SessionID).
		Int("targets", len(pending)).
		Int("chunks", len(chunks)).
		Int("concurrency", s.cfg.Concurrency).
		Bool("retry_failed", s.cfg.RetryFailed).
		Msg("session started")

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			report.Interrupted = true
			return finish(ErrInterrupted)
		}

		if err := s.monitor.RecordRequestLatency(s.pacer.Delay()); err != nil {
			return finish(err)
		}
		s.monitor.MarkRequestStart()
		s.logProgress(i, len(chunks))

		res, err := s.runChunk(ctx, chunk, report)
		if err != nil {
			report.Aborted = true
			return finish(err)
		}

		successes := res.successes
		interrupted := false
		if s.cfg.RetryFailed && len(res.failed) > 0 {
			recovered, err := s.retryFailed(ctx, res.failed, report)
			successes = append(successes, recovered...)
			switch {
			case errors.Is(err, ErrInterrupted):
				interrupted = true
			case err != nil:
				report.Aborted = true
				return finish(err)
			}
		}

		if err := s.flush(ctx, successes, report); err != nil {
			return finish(err)
		}
		if interrupted {
			report.Interrupted = true
			return finish(ErrInterrupted)
		}

		s.monitor.RecordProcessed(len(chunk))
		report.Processed += len(chunk)
		report.ChunksCompleted++
		s.Metrics.IncChunks()
	}

	s.logger.Info().
		Str("session", report.SessionID).
		Int("records", report.RecordsWritten).
		Int("retry_passes", report.RetryPasses).
		Str("end", monitor.FormatClock(s.now())).
		Msg("session finished")
	return finish(nil)
}

// runChunk fetches every target of chunk concurrently, each delayed by the
// adaptive delay current at chunk start, and waits for all of them. On the
// first fatal outcome it logs the fatal entry once and returns without waiting
// for the remaining fetches.
func (s *Scraper) runChunk(ctx context.Context, chunk []string, report *models.SessionReport) (chunkResult, error) {
	delay := s.pacer.Delay()
	s.Metrics.SetDelay(delay)

	// In-flight fetches are never cancelled; a signal only stops scheduling.
	fetchCtx := context.WithoutCancel(ctx)
	results := make(chan Outcome, len(chunk))
	for _, target := range chunk {
		s.logger.Debug().Str("target", target).Dur("delay", delay).Msg("scheduled")
		go func(target string) {
			results <- s.fetchOne(fetchCtx, target, delay)
		}(target)
	}

	var res chunkResult
	for range chunk {
		out := <-results
		s.pacer.Observe(out.Latency)
		s.Metrics.ObserveOutcome(out)

		switch out.Kind {
		case OutcomeSuccess:
			s.logger.Debug().
				Str("target", out.Target).
				Int("records", len(out.Records)).
				Dur("latency", out.Latency).
				Msg("done")
			res.successes = append(res.successes, out)
		case OutcomeRecoverable:
			res.failed = append(res.failed, out.Target)
			if err := s.recordRecoverable(fetchCtx, out, report); err != nil {
				return res, err
			}
		default:
			return res, s.abort(fetchCtx, out)
		}
	}
	return res, nil
}

func (s *Scraper) fetchOne(ctx context.Context, target string, delay time.Duration) Outcome {
	if delay > 0 {
		timer := time.NewTimer(delay)
		<-timer.C
	}

	start := s.now()
	resp, err := s.fetcher.Fetch(ctx, target)
	latency := s.now().Sub(start)
	if err != nil {
		return newOutcome(target, nil, err, latency)
	}
	if resp == nil {
		return newOutcome(target, nil, errors.New("fetcher returned no response"), latency)
	}

	records, err := s.extractor.Extract(resp)
	if err != nil {
		return newOutcome(target, nil, fmt.Errorf("extract: %w", err), latency)
	}
	return newOutcome(target, records, nil, latency)
}

// recordRecoverable logs HTTP failures to the error store. Connection drops
// are only counted.
func (s *Scraper) recordRecoverable(ctx context.Context, out Outcome, report *models.SessionReport) error {
	var status ErrHTTPStatus
	if !errors.As(out.Err, &status) {
		report.ConnectionFailures++
		s.logger.Warn().Str("target", out.Target).Err(out.Err).Msg("connection dropped")
		return nil
	}

	report.HTTPFailures++
	now := s.now()
	message := fmt.Sprintf("[%s] HTTP ERROR %d: %s\n(body: %s)\nmessage:%v\n",
		monitor.FormatClock(now), status.StatusCode, out.Target, status.Body, out.Err)
	s.logger.Warn().Str("target", out.Target).Int("status", status.StatusCode).Msg("http error")
	if err := s.gateway.AppendError(ctx, models.ErrorEntry{Message: message, Target: out.Target, Timestamp: now}); err != nil {
		return fmt.Errorf("append error entry: %w", err)
	}
	return nil
}

// abort writes exactly one fatal entry, alerts the operator and returns ErrFatal.
func (s *Scraper) abort(ctx context.Context, out Outcome) error {
	now := s.now()
	fatal := ErrFatal{Target: out.Target, Err: out.Err}
	message := fmt.Sprintf("[%s] GENERAL ERROR: %s\n%v", monitor.FormatClock(now), out.Target, out.Err)
	s.logger.Error().Str("target", out.Target).Err(out.Err).Msg("fatal error, stopping the session")

	appendErr := s.gateway.AppendFatalError(ctx, models.ErrorEntry{Message: message, Target: out.Target, Timestamp: now})
	s.alerter.Alert(ctx)
	if appendErr != nil {
		return errors.Join(fatal, fmt.Errorf("append fatal entry: %w", appendErr))
	}
	return fatal
}

// retryFailed re-runs the chunked fetch on failed targets, after a backoff,
// until none fail. Only a fatal outcome or a cancelled backoff ends it early.
func (s *Scraper) retryFailed(ctx context.Context, failed []string, report *models.SessionReport) ([]Outcome, error) {
	var recovered []Outcome
	for len(failed) > 0 {
		if err := sleepContext(ctx, s.cfg.RetryBackoff); err != nil {
			return recovered, ErrInterrupted
		}
		report.RetryPasses++
		s.Metrics.IncRetryPass()
		s.logger.Warn().Int("failed", len(failed)).Int("pass", report.RetryPasses).Msg("retrying failed targets")

		var next []string
		for _, chunk := range pipeline.Chunks(failed, s.cfg.Concurrency) {
			res, err := s.runChunk(ctx, chunk, report)
			if err != nil {
				return recovered, err
			}
			recovered = append(recovered, res.successes...)
			next = append(next, res.failed...)
		}
		failed = next
	}
	return recovered, nil
}

// flush appends the chunk's records once, skipping targets already written
// this session.
func (s *Scraper) flush(ctx context.Context, successes []Outcome, report *models.SessionReport) error {
	var records []models.Record
	var written []string
	for _, out := range successes {
		if s.completed.Contains(out.Target) {
			s.logger.Debug().Str("target", out.Target).Msg("already written, skipping")
			continue
		}
		records = append(records, out.Records...)
		written = append(written, out.Target)
	}

	s.monitor.MarkWriteStart()
	if err := s.gateway.AppendOutput(ctx, records); err != nil {
		return fmt.Errorf("append output: %w", err)
	}
	d, err := s.monitor.MarkWriteEnd()
	if err != nil {
		return err
	}
	s.Metrics.ObserveWrite(d)

	for _, target := range written {
		s.completed.Add(target, struct{}{})
	}
	report.RecordsWritten += len(records)
	s.Metrics.AddRecords(len(records))
	return nil
}

func (s *Scraper) logProgress(i, total int) {
	snap, err := s.monitor.Snapshot(total, i)
	if err != nil {
		return
	}
	s.logger.Info().
		Str("chunk", fmt.Sprintf("%d/%d", i+1, total)).
		Str("percent", fmt.Sprintf("%.2f%%", float64(i+1)/float64(total)*100)).
		Int("processed", snap.Processed).
		Str("passed", monitor.FormatDuration(snap.Elapsed)).
		Str("now", monitor.FormatClock(snap.Now)).
		Str("eta", monitor.FormatDuration(snap.ETA)).
		Str("left", monitor.FormatDuration(snap.Left)).
		Int64("avg_loop_ms", snap.AvgLoop.Milliseconds()).
		Int64("last_write_ms", snap.LastWrite.Milliseconds()).
		Msg("progress")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
