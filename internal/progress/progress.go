// Package progress draws a one-line progress bar for batch runs.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PentesterFlow/storescrape/internal/output"
)

// Display manages the progress line during a batch.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	stopped bool

	total     atomic.Int64
	done      atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	startTime time.Time
	current   string
	lastLine  string
}

// New creates a display writing to stderr.
func New() *Display {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a display writing to w.
func NewWithWriter(w io.Writer) *Display {
	return &Display{out: w}
}

// Start begins the display for total targets.
func (d *Display) Start(total int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.startTime = time.Now()
	d.total.Store(int64(total))
}

// Begin marks target as in flight.
func (d *Display) Begin(target string) {
	d.mu.Lock()
	d.current = target
	d.mu.Unlock()
	d.render()
}

// Finish records the outcome of the in-flight target.
func (d *Display) Finish(ok bool) {
	d.done.Add(1)
	if ok {
		d.succeeded.Add(1)
	} else {
		d.failed.Add(1)
	}
	d.render()
}

func (d *Display) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}

	total := d.total.Load()
	done := d.done.Load()
	percent := 0
	if total > 0 {
		percent = int(float64(done) / float64(total) * 100)
	}

	barWidth := 30
	filled := int(float64(percent) / 100 * float64(barWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("\r[%s] %3d%% | %d/%d | ok: %d | failed: %d | %s | %s",
		bar, percent, done, total, d.succeeded.Load(), d.failed.Load(),
		formatDuration(time.Since(d.startTime)), truncateURL(d.current, 60))

	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// Stop ends the display.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}

	d.stopped = true
	fmt.Fprintln(d.out)
}

// Counts returns done, succeeded and failed so far.
func (d *Display) Counts() (done, succeeded, failed int64) {
	return d.done.Load(), d.succeeded.Load(), d.failed.Load()
}

// PrintSummary prints the end-of-run box to w.
func PrintSummary(w io.Writer, s *output.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                        Scrape Complete                       ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Run:        %s\n", s.RunID)
	fmt.Fprintf(w, "  Mode:       %s\n", s.Mode)
	fmt.Fprintf(w, "  Duration:   %s\n", formatDuration(s.Duration))
	fmt.Fprintf(w, "  Records:    %d\n", s.Total)
	fmt.Fprintf(w, "  Succeeded:  %d\n", s.Succeeded)
	fmt.Fprintf(w, "  Failed:     %d\n", s.Failed)
	if s.OutputPath != "" {
		fmt.Fprintf(w, "  Output:     %s\n", s.OutputPath)
	}
	fmt.Fprintln(w)
}

// truncateURL truncates a URL to maxLen characters.
func truncateURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
