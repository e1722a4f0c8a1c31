package output

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONWriter writes records as JSON.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty bool) *JSONWriter {
	return &JSONWriter{writer: w, pretty: pretty}
}

// WriteDetails writes records as one JSON array.
func (j *JSONWriter) WriteDetails(records []DetailRecord) error {
	if records == nil {
		records = []DetailRecord{}
	}
	return j.writeValue(records)
}

// WriteListing writes listings as one JSON array.
func (j *JSONWriter) WriteListing(listings []ListingRecord) error {
	if listings == nil {
		listings = []ListingRecord{}
	}
	return j.writeValue(listings)
}

// WriteRecord writes a single record as a stream event.
func (j *JSONWriter) WriteRecord(record DetailRecord) error {
	eventType := "record"
	if record.Failed() {
		eventType = "error"
	}
	return j.writeValue(StreamEvent{Type: eventType, Data: record})
}

// WriteSummary writes the run summary as a stream event.
func (j *JSONWriter) WriteSummary(summary *Summary) error {
	return j.writeValue(StreamEvent{Type: "summary", Data: summary})
}

func (j *JSONWriter) writeValue(v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return err
	}

	_, err = j.writer.Write(data)
	if err != nil {
		return err
	}

	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// StreamEvent represents a streaming output event.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
