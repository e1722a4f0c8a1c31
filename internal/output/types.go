package output

import (
	"time"

	"github.com/PentesterFlow/storescrape/internal/extract"
)

// DetailRecord is the outcome for one target. A failed target carries only
// URL, Error and ScrapedAt; its Details are nil.
type DetailRecord struct {
	URL string `json:"url"`
	*extract.Details
	ScrapedAt time.Time `json:"scrapedAt"`
	Error     string    `json:"error,omitempty"`
}

// ListingRecord is one catalog summary entry.
type ListingRecord = extract.Listing

// NewDetailRecord builds a success record.
func NewDetailRecord(url string, details *extract.Details, at time.Time) DetailRecord {
	return DetailRecord{URL: url, Details: details, ScrapedAt: at.UTC()}
}

// NewErrorRecord builds a failure record for url.
func NewErrorRecord(url string, err error, at time.Time) DetailRecord {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return DetailRecord{URL: url, Error: msg, ScrapedAt: at.UTC()}
}

// Failed reports whether r is an error record.
func (r DetailRecord) Failed() bool {
	return r.Error != ""
}

// Summary describes a finished run.
type Summary struct {
	RunID       string        `json:"run_id"`
	Mode        string        `json:"mode"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	OutputPath  string        `json:"output_path,omitempty"`
}

// Tally counts successes and failures in records.
func Tally(records []DetailRecord) (succeeded, failed int) {
	for _, r := range records {
		if r.Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}
