// Package output writes scrape results to JSON files and streams.
package output

import (
	"os"
	"path/filepath"

	"github.com/PentesterFlow/storescrape/internal/errors"
)

// Default output file names.
const (
	DefaultDetailsFile = "scraped-games.json"
	DefaultListingFile = "playstation-games.json"
)

// Writer persists a run's results.
type Writer interface {
	WriteDetails(records []DetailRecord) (string, error)
	WriteListing(listings []ListingRecord) (string, error)
}

// Config holds output configuration.
type Config struct {
	Dir         string `yaml:"dir" json:"dir"`
	DetailsFile string `yaml:"details_file" json:"details_file"`
	ListingFile string `yaml:"listing_file" json:"listing_file"`
	Compact     bool   `yaml:"compact" json:"compact"`
	// Stream prints each record to stdout as soon as it is done.
	Stream bool `yaml:"stream" json:"stream"`
}

// DefaultConfig returns the default output configuration.
func DefaultConfig() Config {
	return Config{
		DetailsFile: DefaultDetailsFile,
		ListingFile: DefaultListingFile,
	}
}

// FileWriter writes each result set to its own file.
type FileWriter struct {
	config Config
}

// NewFileWriter creates a FileWriter, filling in default file names.
func NewFileWriter(config Config) *FileWriter {
	if config.DetailsFile == "" {
		config.DetailsFile = DefaultDetailsFile
	}
	if config.ListingFile == "" {
		config.ListingFile = DefaultListingFile
	}
	return &FileWriter{config: config}
}

// DetailsPath returns where WriteDetails writes.
func (f *FileWriter) DetailsPath() string {
	return f.path(f.config.DetailsFile)
}

// ListingPath returns where WriteListing writes.
func (f *FileWriter) ListingPath() string {
	return f.path(f.config.ListingFile)
}

func (f *FileWriter) path(name string) string {
	if f.config.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.config.Dir, name)
}

// WriteDetails writes records and returns the file path.
func (f *FileWriter) WriteDetails(records []DetailRecord) (string, error) {
	path := f.DetailsPath()
	return path, f.write(path, func(jw *JSONWriter) error { return jw.WriteDetails(records) })
}

// WriteListing writes listings and returns the file path.
func (f *FileWriter) WriteListing(listings []ListingRecord) (string, error) {
	path := f.ListingPath()
	return path, f.write(path, func(jw *JSONWriter) error { return jw.WriteListing(listings) })
}

func (f *FileWriter) write(path string, fn func(*JSONWriter) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewIOFailure(path, "mkdir", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.NewIOFailure(path, "create", err)
	}

	jw := NewJSONWriter(file, !f.config.Compact)
	if err := fn(jw); err != nil {
		jw.Close()
		return errors.NewIOFailure(path, "write", err)
	}
	if err := jw.Close(); err != nil {
		return errors.NewIOFailure(path, "close", err)
	}
	return nil
}
