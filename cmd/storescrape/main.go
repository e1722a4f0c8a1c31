package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/storescrape/internal/logger"
	"github.com/PentesterFlow/storescrape/internal/output"
	"github.com/PentesterFlow/storescrape/internal/progress"
	"github.com/PentesterFlow/storescrape/internal/shutdown"
	"github.com/PentesterFlow/storescrape/pkg/scraper"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool
	noProgress bool
	stream     bool
	logLevel   string
	logJSON    bool

	// Browser flags
	headless   bool
	browserBin string
	controlURL string

	// Input and output flags
	inputFile  string
	outputDir  string
	outputFile string
	delayMs    int
	navRate    float64
	excludes   []string

	// Listing flags
	search     string
	category   string
	locale     string
	limit      int
	noFallback bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storescrape",
		Short: "storescrape - PlayStation Store scraper",
		Long: `storescrape - Reads product details and catalog listings from the PlayStation Store.

With no subcommand it scrapes every product URL in the input file, or reads a
catalog listing when the input file is missing or empty.`,
		Version: version,
		RunE:    runAuto,
	}

	detailsCmd := &cobra.Command{
		Use:   "details [url...]",
		Short: "Scrape product pages",
		Long:  "Scrape the given product URLs, or every URL in the input file when none are given.",
		RunE:  runDetails,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Read a catalog listing",
		Long:  "Read title, price, link and image for the first entries of a category or search page.",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	pf.BoolVar(&debug, "debug", false, "Debug mode")
	pf.BoolVar(&noProgress, "no-progress", false, "Disable progress bar")
	pf.BoolVar(&stream, "stream", false, "Print each result as a JSON line on stdout")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides --verbose/--debug")
	pf.BoolVar(&logJSON, "log-json", false, "Write logs as JSON lines")

	pf.BoolVar(&headless, "headless", true, "Run the browser headless")
	pf.StringVar(&browserBin, "browser-bin", "", "Browser executable (default: auto-detect)")
	pf.StringVar(&controlURL, "control-url", "", "Attach to a running browser instead of launching one")

	pf.StringVarP(&inputFile, "input", "i", "", "File with one product URL per line")
	pf.StringVar(&outputDir, "output-dir", "", "Directory for result files")
	pf.StringVarP(&outputFile, "output", "o", "", "Result file name")
	pf.IntVarP(&delayMs, "delay", "d", 3000, "Pause between targets in milliseconds")
	pf.Float64Var(&navRate, "nav-rate", 0, "Maximum navigations per second (0 = unlimited)")
	pf.StringArrayVar(&excludes, "exclude", nil, "Skip input URLs matching pattern (regex)")

	pf.StringVarP(&search, "search", "s", "", "Search term for listing mode")
	pf.StringVar(&category, "category", "", "Catalog category for listing mode")
	pf.StringVar(&locale, "locale", "", "Store locale, e.g. en-rs")
	pf.IntVarP(&limit, "limit", "n", 20, "Maximum listing entries")
	pf.BoolVar(&noFallback, "no-fallback", false, "Do not try the alternate category when the listing is empty")

	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(listCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig loads the config file, if any, then applies flags the user set.
func buildConfig(cmd *cobra.Command) (*scraper.Config, error) {
	config := scraper.DefaultConfig()
	if configFile != "" {
		fileConfig, err := scraper.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	flags := cmd.Flags()
	if flags.Changed("headless") {
		config.Browser.Headless = headless
	}
	if flags.Changed("browser-bin") {
		config.Browser.Bin = browserBin
	}
	if flags.Changed("control-url") {
		config.Browser.ControlURL = controlURL
	}
	if flags.Changed("input") {
		config.Input.File = inputFile
	}
	if flags.Changed("output-dir") {
		config.Output.Dir = outputDir
	}
	if flags.Changed("delay") {
		config.RateLimit.InterDelay = time.Duration(delayMs) * time.Millisecond
	}
	if flags.Changed("nav-rate") {
		config.RateLimit.NavigationsPerSecond = navRate
	}
	if flags.Changed("exclude") {
		config.Input.Scope.ExcludePatterns = append(config.Input.Scope.ExcludePatterns, excludes...)
	}
	if flags.Changed("locale") {
		config.Listing.Locale = locale
	}
	if flags.Changed("limit") {
		config.Listing.Limit = limit
	}
	if flags.Changed("stream") {
		config.Output.Stream = stream
	}
	if flags.Changed("no-progress") {
		config.Progress = !noProgress
	}
	if flags.Changed("verbose") {
		config.Verbose = verbose
	}
	if flags.Changed("log-json") {
		config.LogJSON = logJSON
	}
	if flags.Changed("debug") {
		config.Debug = debug
		if debug {
			config.Verbose = true
		}
	}

	return config, nil
}

func query() scraper.ListingQuery {
	return scraper.ListingQuery{
		Search:     search,
		Category:   category,
		NoFallback: noFallback,
	}
}

// execute builds a Scraper, runs fn under signal handling and prints the
// summary.
func execute(cmd *cobra.Command, mode string, fn func(ctx context.Context, s *scraper.Scraper) (*output.Summary, error)) error {
	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if flags := cmd.Flags(); flags.Changed("output") {
		if mode == scraper.ModeListing {
			config.Output.ListingFile = outputFile
		} else {
			config.Output.DetailsFile = outputFile
		}
	}

	opts := []scraper.Option{scraper.WithConfig(config)}
	if logLevel != "" {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		logCfg := logger.DefaultConfig()
		logCfg.Level = level
		logCfg.Pretty = !config.LogJSON
		opts = append(opts, scraper.WithLogger(logger.New(logCfg)))
	}

	s, err := scraper.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create scraper: %w", err)
	}

	handler := shutdown.New(context.Background(), shutdown.Config{Logger: s.Logger()})
	handler.RegisterFunc("browser", s.Close)
	defer handler.Shutdown()

	printBanner(config, mode)

	summary, err := fn(handler.Context(), s)
	if err != nil && !handler.Interrupted() {
		return err
	}
	if handler.Interrupted() {
		fmt.Fprintln(os.Stderr, "\nInterrupted, partial results kept.")
	}
	if summary != nil && !config.Output.Stream {
		progress.PrintSummary(os.Stderr, summary)
	}
	return nil
}

func runAuto(cmd *cobra.Command, args []string) error {
	return execute(cmd, "auto", func(ctx context.Context, s *scraper.Scraper) (*output.Summary, error) {
		return s.Run(ctx, query())
	})
}

func runDetails(cmd *cobra.Command, args []string) error {
	return execute(cmd, scraper.ModeDetails, func(ctx context.Context, s *scraper.Scraper) (*output.Summary, error) {
		if len(args) > 0 {
			return s.ScrapeDetails(ctx, args)
		}
		return s.ScrapeFile(ctx, s.Config().Input.File)
	})
}

func runList(cmd *cobra.Command, args []string) error {
	return execute(cmd, scraper.ModeListing, func(ctx context.Context, s *scraper.Scraper) (*output.Summary, error) {
		return s.ScrapeCatalog(ctx, query())
	})
}

func printBanner(config *scraper.Config, mode string) {
	if config.Output.Stream {
		return
	}
	w := os.Stderr
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║                     storescrape v%-28s║\n", version)
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Mode:       %s\n", mode)
	fmt.Fprintf(w, "Store:      %s/%s\n", config.Listing.BaseURL, config.Listing.Locale)
	if mode != scraper.ModeListing {
		fmt.Fprintf(w, "Input:      %s\n", config.Input.File)
	}
	fmt.Fprintf(w, "Delay:      %v\n", config.RateLimit.InterDelay)
	fmt.Fprintf(w, "Headless:   %v\n", config.Browser.Headless)
	fmt.Fprintln(w)
}
