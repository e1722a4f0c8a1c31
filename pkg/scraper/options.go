package scraper

import (
	"fmt"
	"io"
	"time"

	"github.com/PentesterFlow/storescrape/internal/browser"
	"github.com/PentesterFlow/storescrape/internal/logger"
	"github.com/PentesterFlow/storescrape/internal/metrics"
	"github.com/PentesterFlow/storescrape/internal/output"
	"github.com/PentesterFlow/storescrape/internal/progress"
)

// Option is a functional option for configuring the Scraper.
type Option func(*Scraper) error

// WithConfig replaces the whole configuration. Apply it before other options.
func WithConfig(config *Config) Option {
	return func(s *Scraper) error {
		if config == nil {
			return fmt.Errorf("config cannot be nil")
		}
		s.config = config.Clone()
		return nil
	}
}

// WithInterDelay sets the pause between consecutive targets.
func WithInterDelay(d time.Duration) Option {
	return func(s *Scraper) error {
		if d < 0 {
			d = 0
		}
		s.config.RateLimit.InterDelay = d
		return nil
	}
}

// WithNavigationRate caps navigation attempts per second; 0 disables the cap.
func WithNavigationRate(perSecond float64, burst int) Option {
	return func(s *Scraper) error {
		s.config.RateLimit.NavigationsPerSecond = perSecond
		s.config.RateLimit.Burst = burst
		return nil
	}
}

// WithHeadless toggles headless mode.
func WithHeadless(headless bool) Option {
	return func(s *Scraper) error {
		s.config.Browser.Headless = headless
		return nil
	}
}

// WithBrowserBin sets the browser executable.
func WithBrowserBin(path string) Option {
	return func(s *Scraper) error {
		s.config.Browser.Bin = path
		return nil
	}
}

// WithControlURL attaches to an already running browser.
func WithControlURL(u string) Option {
	return func(s *Scraper) error {
		s.config.Browser.ControlURL = u
		return nil
	}
}

// WithInputFile sets the target list file.
func WithInputFile(path string) Option {
	return func(s *Scraper) error {
		s.config.Input.File = path
		return nil
	}
}

// WithAllowedDomains restricts targets to the given domains.
func WithAllowedDomains(domains ...string) Option {
	return func(s *Scraper) error {
		s.config.Input.Scope.AllowedDomains = append(s.config.Input.Scope.AllowedDomains, domains...)
		return nil
	}
}

// WithExcludePatterns drops targets matching any pattern.
func WithExcludePatterns(patterns ...string) Option {
	return func(s *Scraper) error {
		s.config.Input.Scope.ExcludePatterns = append(s.config.Input.Scope.ExcludePatterns, patterns...)
		return nil
	}
}

// WithOutputFile sets the details output file.
func WithOutputFile(path string) Option {
	return func(s *Scraper) error {
		s.config.Output.DetailsFile = path
		return nil
	}
}

// WithOutputDir sets the directory relative output files are written to.
func WithOutputDir(dir string) Option {
	return func(s *Scraper) error {
		s.config.Output.Dir = dir
		return nil
	}
}

// WithListingFile sets the listing output file.
func WithListingFile(path string) Option {
	return func(s *Scraper) error {
		s.config.Output.ListingFile = path
		return nil
	}
}

// WithListingLimit caps listing mode results.
func WithListingLimit(n int) Option {
	return func(s *Scraper) error {
		if n < 1 {
			n = 1
		}
		s.config.Listing.Limit = n
		return nil
	}
}

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(s *Scraper) error {
		s.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug output.
func WithDebug(debug bool) Option {
	return func(s *Scraper) error {
		s.config.Debug = debug
		if debug {
			s.config.Verbose = true
		}
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scraper) error {
		s.log = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Scraper) error {
		if m == nil {
			return fmt.Errorf("metrics collector cannot be nil")
		}
		s.metrics = m
		return nil
	}
}

// WithSessionFactory supplies execution contexts instead of launching a
// browser. The caller keeps ownership of whatever backs the factory.
func WithSessionFactory(f browser.Factory) Option {
	return func(s *Scraper) error {
		s.factory = f
		return nil
	}
}

// WithWriter sets where results are persisted.
func WithWriter(w output.Writer) Option {
	return func(s *Scraper) error {
		s.writer = w
		return nil
	}
}

// WithStream prints each record to w as soon as it is done.
func WithStream(w io.Writer) Option {
	return func(s *Scraper) error {
		s.stream = output.NewJSONWriter(w, false)
		return nil
	}
}

// WithProgress draws the progress bar on w.
func WithProgress(w io.Writer) Option {
	return func(s *Scraper) error {
		s.progress = progress.NewWithWriter(w)
		return nil
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) error {
		s.now = now
		return nil
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(s *Scraper) error {
		if id == "" {
			return fmt.Errorf("run id cannot be empty")
		}
		s.runID = id
		return nil
	}
}
