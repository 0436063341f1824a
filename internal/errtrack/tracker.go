// Package errtrack records per-URL fetch failures for a crawl run.
package errtrack

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Source identifies which fetch strategy produced a failure.
type Source string

// Fetch strategies that report failures.
const (
	SourceDirect Source = "direct-fetch"
	SourceRender Source = "render-fetch"
)

// Record describes one failed fetch.
type Record struct {
	Source     Source    `json:"source"`
	Kind       string    `json:"kind"`
	URL        string    `json:"url"`
	Message    string    `json:"message"`
	StatusCode *int      `json:"status_code,omitempty"`
	At         time.Time `json:"at"`
}

func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\nType: %s\nURL: %s\nMessage: %s", r.Source, r.Kind, r.URL, r.Message)
	if r.StatusCode != nil {
		fmt.Fprintf(&b, "\nStatus Code: %d", *r.StatusCode)
	}
	return b.String()
}

// Tracker is an append-only, concurrency-safe list of Records.
type Tracker struct {
	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{now: time.Now}
}

// Add appends a record, stamping it when At is zero.
func (t *Tracker) Add(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec.At.IsZero() {
		rec.At = t.now().UTC()
	}
	t.records = append(t.records, rec)
}

// Records returns a copy of every record in insertion order.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Len reports the number of records.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Summary counts records by kind.
func (t *Tracker) Summary() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int)
	for _, r := range t.records {
		out[r.Kind]++
	}
	return out
}

// WriteReport writes the detailed record list followed by the per-kind summary.
func (t *Tracker) WriteReport(w io.Writer) error {
	records := t.Records()
	summary := t.Summary()

	var b strings.Builder
	b.WriteString("Detailed Error Overview:\n")
	for _, r := range records {
		b.WriteString(r.String())
		b.WriteString("\n\n")
	}
	b.WriteString("\nError Summary:\n")
	kinds := make([]string, 0, len(summary))
	for k := range summary {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "%s: %d\n", k, summary[k])
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write error report: %w", err)
	}
	return nil
}
