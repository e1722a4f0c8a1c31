// Package scraper drives a headless browser through store product pages and
// catalog listings and collects what it finds.
package scraper

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PentesterFlow/storescrape/internal/browser"
	"github.com/PentesterFlow/storescrape/internal/errors"
	"github.com/PentesterFlow/storescrape/internal/extract"
	"github.com/PentesterFlow/storescrape/internal/logger"
	"github.com/PentesterFlow/storescrape/internal/metrics"
	"github.com/PentesterFlow/storescrape/internal/output"
	"github.com/PentesterFlow/storescrape/internal/progress"
	"github.com/PentesterFlow/storescrape/internal/ratelimit"
	"github.com/PentesterFlow/storescrape/internal/targets"
)

// Run modes reported in the summary.
const (
	ModeDetails = "details"
	ModeListing = "listing"
)

// Scraper owns the browser session and runs batches over it.
type Scraper struct {
	config  *Config
	log     *logger.Logger
	metrics *metrics.Collector
	pacer   *ratelimit.Pacer
	runID   string
	now     func() time.Time

	factory browser.Factory
	closer  io.Closer

	navigator *browser.Navigator
	engine    *extract.Engine
	lister    *extract.Lister

	writer   output.Writer
	stream   *output.JSONWriter
	progress *progress.Display

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
}

// New creates a Scraper. The browser is not launched until the first run.
func New(opts ...Option) (*Scraper, error) {
	s := &Scraper{
		config:  DefaultConfig(),
		metrics: metrics.New(),
		runID:   uuid.NewString(),
		now:     time.Now,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if s.log == nil {
		cfg := logger.DefaultConfig()
		cfg.Level = logger.LevelFor(s.config.Verbose, s.config.Debug)
		cfg.Pretty = !s.config.LogJSON
		s.log = logger.New(cfg)
	}
	s.log = s.log.WithRun(s.runID)

	if s.writer == nil {
		s.writer = output.NewFileWriter(s.config.Output)
	}
	if s.stream == nil && s.config.Output.Stream {
		s.stream = output.NewJSONWriter(os.Stdout, false)
	}
	if s.progress == nil && s.config.Progress && !s.config.Verbose && !s.config.Debug {
		s.progress = progress.New()
	}

	rl := s.config.RateLimit
	s.pacer = ratelimit.NewPacer(rl.InterDelay, rl.NavigationsPerSecond, rl.Burst)

	return s, nil
}

// Start launches the browser session unless a factory was supplied, and
// wires the navigation and extraction pipeline. Later calls are no-ops.
func (s *Scraper) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		if s.factory == nil {
			session, err := browser.NewSession(s.config.Browser, s.log)
			if err != nil {
				s.startErr = err
				return
			}
			s.factory = session
			s.closer = session
		}

		guard := browser.NewGuard(s.config.Guard, s.log, s.metrics)
		s.navigator = browser.NewNavigator(s.factory, guard, s.config.Navigator,
			browser.WithLimiter(s.pacer),
			browser.WithNavigatorLogger(s.log),
			browser.WithNavigatorMetrics(s.metrics))
		s.engine = extract.NewEngine(s.config.Extract, guard, s.log, s.metrics)
		s.lister = extract.NewLister(guard, s.log, s.metrics)
	})
	return s.startErr
}

// RunBatch scrapes targets in order, pausing interDelay between them. It
// always returns one record per target: failures, panics and targets left
// over after cancellation become error records.
func (s *Scraper) RunBatch(ctx context.Context, list []string, interDelay time.Duration) []output.DetailRecord {
	records := make([]output.DetailRecord, 0, len(list))
	if len(list) == 0 {
		return records
	}

	if err := s.Start(ctx); err != nil {
		for _, target := range list {
			records = append(records, s.fail(target, err))
		}
		return records
	}

	s.pacer.SetInterDelay(interDelay)
	if s.progress != nil {
		s.progress.Start(len(list))
		defer s.progress.Stop()
	}

	for i, target := range list {
		if ctx.Err() != nil {
			s.log.WithField("remaining", len(list)-i).Warn("Run cancelled, skipping remaining targets")
			for _, rest := range list[i:] {
				records = append(records, s.fail(rest, errors.NewCancelledError(rest, "batch")))
			}
			break
		}

		records = append(records, s.scrapeOne(ctx, i+1, len(list), target))

		if i < len(list)-1 {
			// A cancelled pause is picked up at the top of the next iteration.
			_ = s.pacer.Between(ctx)
		}
	}

	return records
}

func (s *Scraper) scrapeOne(ctx context.Context, index, total int, target string) (rec output.DetailRecord) {
	s.metrics.RecordTarget()
	log := s.log.WithTarget(target)
	s.log.TargetEvent(logger.InfoLevel, index, total, target).Msgf("[%d/%d] Scraping", index, total)
	if s.progress != nil {
		s.progress.Begin(target)
	}

	defer func() {
		if r := recover(); r != nil {
			err := errors.NewScrapeError(errors.Internal, target, "scrape", fmt.Sprintf("panic: %v", r), nil)
			rec = s.fail(target, err)
		}
		if s.progress != nil {
			s.progress.Finish(!rec.Failed())
		}
		if s.stream != nil {
			if err := s.stream.WriteRecord(rec); err != nil {
				log.WithError(err).Warn("Stream write failed")
			}
		}
	}()

	details, err := s.extractAt(ctx, target)
	if err != nil {
		return s.fail(target, err)
	}

	s.metrics.RecordSuccess()
	log.WithField("title", details.Title).WithField("price", details.Price).Info("Scraped")
	return output.NewDetailRecord(target, details, s.now())
}

func (s *Scraper) extractAt(ctx context.Context, target string) (*extract.Details, error) {
	ec, err := s.navigator.SettleAt(ctx, target)
	if err != nil {
		return nil, err
	}
	return s.engine.Extract(ctx, ec)
}

func (s *Scraper) fail(target string, err error) output.DetailRecord {
	s.metrics.RecordFailure(errors.GetErrorType(err).String())
	if !errors.IsCancelled(err) {
		s.log.ErrorEvent(err, target, "scrape")
	}
	return output.NewErrorRecord(target, err, s.now())
}

// ScrapeDetails runs a batch over list, writes the results when there are
// any, and returns the run summary. A browser that cannot be started fails
// the whole run.
func (s *Scraper) ScrapeDetails(ctx context.Context, list []string) (*output.Summary, error) {
	start := s.now()
	if len(list) > 0 {
		if err := s.Start(ctx); err != nil {
			return nil, err
		}
	}
	records := s.RunBatch(ctx, list, s.config.RateLimit.InterDelay)

	summary := s.summarize(ModeDetails, start)
	summary.Succeeded, summary.Failed = output.Tally(records)
	summary.Total = len(records)

	if len(records) > 0 {
		path, err := s.writer.WriteDetails(records)
		if err != nil {
			return summary, err
		}
		summary.OutputPath = path
	}

	s.logSummary(summary)
	return summary, nil
}

// ScrapeFile reads targets from path and runs ScrapeDetails over them.
func (s *Scraper) ScrapeFile(ctx context.Context, path string) (*output.Summary, error) {
	list, err := targets.ReadFile(path, s.config.Input.Scope)
	if err != nil {
		return nil, err
	}
	s.log.WithField("file", path).WithField("targets", len(list)).Info("Targets loaded")
	return s.ScrapeDetails(ctx, list)
}

// ScrapeCatalog runs listing mode, writes the entries when there are any,
// and returns the run summary.
func (s *Scraper) ScrapeCatalog(ctx context.Context, q ListingQuery) (*output.Summary, error) {
	start := s.now()
	listings, err := s.RunListing(ctx, q)

	summary := s.summarize(ModeListing, start)
	summary.Total = len(listings)
	summary.Succeeded = len(listings)
	if err != nil {
		return summary, err
	}

	if len(listings) > 0 {
		path, err := s.writer.WriteListing(listings)
		if err != nil {
			return summary, err
		}
		summary.OutputPath = path
	} else {
		s.log.Warn("No listings found; the catalog markup may have changed")
	}

	for i, l := range listings {
		s.log.Event(logger.InfoLevel).Int("index", i+1).Str("title", l.Title).Str("price", l.Price).Msg("Listing")
	}

	s.logSummary(summary)
	return summary, nil
}

// Run scrapes the configured input file when it holds at least one target
// and falls back to listing mode otherwise.
func (s *Scraper) Run(ctx context.Context, q ListingQuery) (*output.Summary, error) {
	list, err := targets.ReadFile(s.config.Input.File, s.config.Input.Scope)
	if err != nil {
		s.log.WithError(err).Info("No usable input file, switching to listing mode")
		return s.ScrapeCatalog(ctx, q)
	}
	if len(list) == 0 {
		s.log.WithField("file", s.config.Input.File).Info("Input file has no targets, switching to listing mode")
		return s.ScrapeCatalog(ctx, q)
	}
	return s.ScrapeDetails(ctx, list)
}

func (s *Scraper) summarize(mode string, start time.Time) *output.Summary {
	end := s.now()
	return &output.Summary{
		RunID:       s.runID,
		Mode:        mode,
		StartedAt:   start.UTC(),
		CompletedAt: end.UTC(),
		Duration:    end.Sub(start),
	}
}

func (s *Scraper) logSummary(summary *output.Summary) {
	stats := s.metrics.Snapshot().Summary()
	stats["mode"] = summary.Mode
	stats["records"] = summary.Total
	s.log.StatsEvent(stats)

	if s.stream != nil {
		if err := s.stream.WriteSummary(summary); err != nil {
			s.log.WithError(err).Warn("Stream write failed")
		}
	}
}

// RunID identifies this run in logs and summaries.
func (s *Scraper) RunID() string {
	return s.runID
}

// Config returns the active configuration.
func (s *Scraper) Config() *Config {
	return s.config
}

// Metrics returns the run's metrics collector.
func (s *Scraper) Metrics() *metrics.Collector {
	return s.metrics
}

// Logger returns the run's logger.
func (s *Scraper) Logger() *logger.Logger {
	return s.log
}

// Close releases the execution context and, when this Scraper launched it,
// the browser session. Safe to call more than once.
func (s *Scraper) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.navigator != nil {
			err = s.navigator.Close()
		}
		if s.closer != nil {
			if cerr := s.closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
