// Package browser drives the remote Chromium session the scraper works in.
package browser

import (
	"fmt"
	"time"
)

// DesktopUserAgent is presented by every execution context.
const DesktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config defines how the remote session is launched and how each
// execution context identifies itself.
type Config struct {
	Headless       bool   `yaml:"headless" json:"headless"`
	Bin            string `yaml:"bin" json:"bin"`                 // Browser binary; empty means auto-detect
	ControlURL     string `yaml:"control_url" json:"control_url"` // Attach to a running browser instead of launching
	NoSandbox      bool   `yaml:"no_sandbox" json:"no_sandbox"`
	Stealth        bool   `yaml:"stealth" json:"stealth"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
	ViewportWidth  int    `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height" json:"viewport_height"`
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		Stealth:        true,
		UserAgent:      DesktopUserAgent,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.ViewportWidth, c.ViewportHeight)
	}
	return nil
}

// GuardConfig tunes the Execution Guard.
type GuardConfig struct {
	MaxAttempts      int           `yaml:"max_attempts" json:"max_attempts"`
	LivenessBackoff  time.Duration `yaml:"liveness_backoff" json:"liveness_backoff"`
	TransientBackoff time.Duration `yaml:"transient_backoff" json:"transient_backoff"`
	ReloadSettle     time.Duration `yaml:"reload_settle" json:"reload_settle"`
	ReloadTimeout    time.Duration `yaml:"reload_timeout" json:"reload_timeout"`
}

// DefaultGuardConfig returns the default guard policy.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxAttempts:      3,
		LivenessBackoff:  1000 * time.Millisecond,
		TransientBackoff: 1500 * time.Millisecond,
		ReloadSettle:     2000 * time.Millisecond,
		ReloadTimeout:    30 * time.Second,
	}
}

// Validate checks the configuration.
func (c GuardConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("guard max_attempts must be at least 1")
	}
	return nil
}

// NavigatorConfig tunes the Navigation Controller and its settle sequence.
type NavigatorConfig struct {
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RecreateWait      time.Duration `yaml:"recreate_wait" json:"recreate_wait"`
	RestartWait       time.Duration `yaml:"restart_wait" json:"restart_wait"`

	InitialSettle   time.Duration `yaml:"initial_settle" json:"initial_settle"`
	LoadTimeout     time.Duration `yaml:"load_timeout" json:"load_timeout"`
	MidScrollSettle time.Duration `yaml:"mid_scroll_settle" json:"mid_scroll_settle"`
	TopScrollSettle time.Duration `yaml:"top_scroll_settle" json:"top_scroll_settle"`
	ReadySelector   string        `yaml:"ready_selector" json:"ready_selector"`
	ReadyTimeout    time.Duration `yaml:"ready_timeout" json:"ready_timeout"`
}

// DefaultNavigatorConfig returns the default navigation policy.
func DefaultNavigatorConfig() NavigatorConfig {
	return NavigatorConfig{
		NavigationTimeout: 60 * time.Second,
		MaxRetries:        2,
		RecreateWait:      1000 * time.Millisecond,
		RestartWait:       2000 * time.Millisecond,
		InitialSettle:     3000 * time.Millisecond,
		LoadTimeout:       30 * time.Second,
		MidScrollSettle:   3000 * time.Millisecond,
		TopScrollSettle:   2000 * time.Millisecond,
		ReadySelector:     "h1",
		ReadyTimeout:      10 * time.Second,
	}
}

// Validate checks the configuration.
func (c NavigatorConfig) Validate() error {
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	return nil
}
