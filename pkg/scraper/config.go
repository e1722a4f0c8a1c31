package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/storescrape/internal/browser"
	"github.com/PentesterFlow/storescrape/internal/extract"
	"github.com/PentesterFlow/storescrape/internal/output"
	"github.com/PentesterFlow/storescrape/internal/targets"
)

// Config holds all scraper configuration.
type Config struct {
	// Browser launch and identity
	Browser browser.Config `json:"browser" yaml:"browser"`

	// Retry policy for remote evaluations
	Guard browser.GuardConfig `json:"guard" yaml:"guard"`

	// Navigation retries and settle timing
	Navigator browser.NavigatorConfig `json:"navigator" yaml:"navigator"`

	// Field extraction
	Extract extract.Config `json:"extract" yaml:"extract"`

	// Target list
	Input InputConfig `json:"input" yaml:"input"`

	// Result files
	Output output.Config `json:"output" yaml:"output"`

	// Catalog listing mode
	Listing ListingConfig `json:"listing" yaml:"listing"`

	// Pacing between targets
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Show a progress bar when logs are quiet
	Progress bool `json:"progress" yaml:"progress"`

	Verbose bool `json:"verbose" yaml:"verbose"`
	Debug   bool `json:"debug" yaml:"debug"`

	// JSON log lines instead of the console format
	LogJSON bool `json:"log_json" yaml:"log_json"`
}

// InputConfig says where targets come from.
type InputConfig struct {
	File  string        `json:"file" yaml:"file"`
	Scope targets.Rules `json:"scope" yaml:"scope"`
}

// RateLimitConfig holds pacing configuration.
type RateLimitConfig struct {
	// Pause between consecutive targets
	InterDelay time.Duration `json:"inter_delay" yaml:"inter_delay"`

	// Cap on navigation attempts, retries included; 0 disables it
	NavigationsPerSecond float64 `json:"navigations_per_second" yaml:"navigations_per_second"`
	Burst                int     `json:"burst" yaml:"burst"`
}

// ListingConfig describes the catalog pages read in listing mode.
type ListingConfig struct {
	BaseURL           string `json:"base_url" yaml:"base_url"`
	Locale            string `json:"locale" yaml:"locale"`
	Category          string `json:"category" yaml:"category"`
	AlternateCategory string `json:"alternate_category" yaml:"alternate_category"`
	Limit             int    `json:"limit" yaml:"limit"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser:   browser.DefaultConfig(),
		Guard:     browser.DefaultGuardConfig(),
		Navigator: browser.DefaultNavigatorConfig(),
		Extract:   extract.DefaultConfig(),
		Input: InputConfig{
			File: targets.DefaultInputFile,
		},
		Output: output.DefaultConfig(),
		Listing: ListingConfig{
			BaseURL:           "https://store.playstation.com",
			Locale:            "en-rs",
			Category:          "games",
			AlternateCategory: "44d8bb20-653e-431e-8ad0-c0a365f68d2f",
			Limit:             extract.DefaultListingLimit,
		},
		RateLimit: RateLimitConfig{
			InterDelay: 3000 * time.Millisecond,
			Burst:      1,
		},
		Progress: true,
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		config = DefaultConfig()
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return err
	}
	if err := c.Guard.Validate(); err != nil {
		return err
	}
	if err := c.Navigator.Validate(); err != nil {
		return err
	}
	if err := c.Extract.Validate(); err != nil {
		return err
	}
	if c.RateLimit.InterDelay < 0 {
		return fmt.Errorf("inter_delay cannot be negative")
	}
	if c.RateLimit.NavigationsPerSecond < 0 {
		return fmt.Errorf("navigations_per_second cannot be negative")
	}
	if c.Listing.BaseURL == "" {
		return fmt.Errorf("listing base_url is required")
	}
	if c.Listing.Limit < 1 {
		return fmt.Errorf("listing limit must be at least 1")
	}
	if _, err := targets.NewChecker(c.Input.Scope); err != nil {
		return fmt.Errorf("invalid input scope: %w", err)
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
