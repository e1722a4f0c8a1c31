// Package metrics provides run counters for the store scraper.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates metrics for one run.
type Collector struct {
	// Outcomes
	targetsTotal     atomic.Int64
	targetsSucceeded atomic.Int64
	targetsFailed    atomic.Int64
	listingsFound    atomic.Int64

	// Recovery
	evalRetries    atomic.Int64
	reloads        atomic.Int64
	navRetries     atomic.Int64
	recreations    atomic.Int64
	priceRescans   atomic.Int64
	navigationsRun atomic.Int64

	// Settle time tracking
	settleSum atomic.Int64
	settleNum atomic.Int64

	// Buckets in seconds: <5, <10, <20, <40, <60, >=60
	settleBuckets [6]atomic.Int64

	// Failure breakdown by error type
	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	// Which tier produced the reported price
	priceSources map[string]*atomic.Int64
	sourceMu     sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts:  make(map[string]*atomic.Int64),
		priceSources: make(map[string]*atomic.Int64),
		startTime:    time.Now(),
	}
}

// RecordTarget records that a target was attempted.
func (c *Collector) RecordTarget() {
	c.targetsTotal.Add(1)
}

// RecordSuccess records a target that produced a full record.
func (c *Collector) RecordSuccess() {
	c.targetsSucceeded.Add(1)
}

// RecordFailure records a target that produced an error record.
func (c *Collector) RecordFailure(errorType string) {
	c.targetsFailed.Add(1)
	bump(&c.errorMu, c.errorCounts, errorType)
}

// RecordPriceSource records the tier that produced a reported price.
func (c *Collector) RecordPriceSource(source string) {
	if source == "" {
		return
	}
	bump(&c.sourceMu, c.priceSources, source)
}

func bump(mu *sync.RWMutex, m map[string]*atomic.Int64, key string) {
	mu.Lock()
	if m[key] == nil {
		m[key] = &atomic.Int64{}
	}
	m[key].Add(1)
	mu.Unlock()
}

// RecordListings adds listing candidates found.
func (c *Collector) RecordListings(n int) {
	c.listingsFound.Add(int64(n))
}

// RecordEvalRetry records a guarded evaluation retry.
func (c *Collector) RecordEvalRetry() {
	c.evalRetries.Add(1)
}

// RecordReload records a recovery reload.
func (c *Collector) RecordReload() {
	c.reloads.Add(1)
}

// RecordNavigation records one navigation attempt.
func (c *Collector) RecordNavigation() {
	c.navigationsRun.Add(1)
}

// RecordNavigationRetry records a navigation restart.
func (c *Collector) RecordNavigationRetry() {
	c.navRetries.Add(1)
}

// RecordRecreation records an execution context replacement.
func (c *Collector) RecordRecreation() {
	c.recreations.Add(1)
}

// RecordRescan records a retry-on-miss price pass.
func (c *Collector) RecordRescan() {
	c.priceRescans.Add(1)
}

// RecordSettleTime records the time it took a target to reach Ready.
func (c *Collector) RecordSettleTime(d time.Duration) {
	c.settleSum.Add(d.Milliseconds())
	c.settleNum.Add(1)
	c.settleBuckets[settleBucket(d)].Add(1)
}

func settleBucket(d time.Duration) int {
	switch {
	case d < 5*time.Second:
		return 0
	case d < 10*time.Second:
		return 1
	case d < 20*time.Second:
		return 2
	case d < 40*time.Second:
		return 3
	case d < 60*time.Second:
		return 4
	default:
		return 5
	}
}

// AverageSettleTime returns the mean settle time.
func (c *Collector) AverageSettleTime() time.Duration {
	num := c.settleNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(c.settleSum.Load()/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:         time.Now(),
		Uptime:            time.Since(c.startTime),
		TargetsTotal:      c.targetsTotal.Load(),
		TargetsSucceeded:  c.targetsSucceeded.Load(),
		TargetsFailed:     c.targetsFailed.Load(),
		ListingsFound:     c.listingsFound.Load(),
		EvalRetries:       c.evalRetries.Load(),
		Reloads:           c.reloads.Load(),
		Navigations:       c.navigationsRun.Load(),
		NavRetries:        c.navRetries.Load(),
		Recreations:       c.recreations.Load(),
		PriceRescans:      c.priceRescans.Load(),
		AverageSettleTime: c.AverageSettleTime(),
		ErrorCounts:       make(map[string]int64),
		PriceSources:      make(map[string]int64),
		SettleHist:        make([]int64, len(c.settleBuckets)),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	c.sourceMu.RLock()
	for k, v := range c.priceSources {
		s.PriceSources[k] = v.Load()
	}
	c.sourceMu.RUnlock()

	for i := range c.settleBuckets {
		s.SettleHist[i] = c.settleBuckets[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp         time.Time        `json:"timestamp"`
	Uptime            time.Duration    `json:"uptime"`
	TargetsTotal      int64            `json:"targets_total"`
	TargetsSucceeded  int64            `json:"targets_succeeded"`
	TargetsFailed     int64            `json:"targets_failed"`
	ListingsFound     int64            `json:"listings_found"`
	EvalRetries       int64            `json:"eval_retries"`
	Reloads           int64            `json:"reloads"`
	Navigations       int64            `json:"navigations"`
	NavRetries        int64            `json:"navigation_retries"`
	Recreations       int64            `json:"recreations"`
	PriceRescans      int64            `json:"price_rescans"`
	AverageSettleTime time.Duration    `json:"average_settle_time"`
	ErrorCounts       map[string]int64 `json:"error_counts"`
	PriceSources      map[string]int64 `json:"price_sources"`
	SettleHist        []int64          `json:"settle_histogram"`
}

// SuccessRate returns succeeded/total, or 0 for an empty run.
func (s *Snapshot) SuccessRate() float64 {
	if s.TargetsTotal == 0 {
		return 0
	}
	return float64(s.TargetsSucceeded) / float64(s.TargetsTotal)
}

// Summary returns a flat view suitable for a stats log event.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":             s.Uptime.String(),
		"targets_total":      s.TargetsTotal,
		"targets_succeeded":  s.TargetsSucceeded,
		"targets_failed":     s.TargetsFailed,
		"success_rate":       s.SuccessRate(),
		"eval_retries":       s.EvalRetries,
		"reloads":            s.Reloads,
		"navigation_retries": s.NavRetries,
		"recreations":        s.Recreations,
		"price_rescans":      s.PriceRescans,
		"avg_settle_ms":      s.AverageSettleTime.Milliseconds(),
	}
}
