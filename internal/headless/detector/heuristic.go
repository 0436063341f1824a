// Package detector decides when a directly fetched page should be rendered in a browser instead.
package detector

import (
	"strings"

	"github.com/JakeFAU/nace-crawler/internal/document"
)

// DefaultThreshold is the markup length below which a script-heavy page counts as a shell.
const DefaultThreshold = 2048

// Heuristic flags client-rendered shells: pages without paragraph text that either carry a
// single-page-app mount point or consist mostly of script.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector. A non-positive threshold uses DefaultThreshold.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = []string{
	`id="__next"`,
	`id="__nuxt"`,
	`id="root"`,
	`id="app"`,
	"data-reactroot",
	"ng-version",
}

// ShouldRender reports whether doc looks like an empty shell worth rendering.
func (h *Heuristic) ShouldRender(doc *document.Document) bool {
	if doc == nil || len(doc.Paragraphs()) > 0 {
		return false
	}
	markup := strings.ToLower(doc.HTML())
	if strings.TrimSpace(markup) == "" {
		return true
	}
	for _, marker := range spaMarkers {
		if strings.Contains(markup, marker) {
			return true
		}
	}
	return len(markup) < h.BodyLengthThreshold && scriptDensityHigh(markup)
}

// scriptDensityHigh reports whether script elements cover at least a quarter of lower.
func scriptDensityHigh(lower string) bool {
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Unterminated tag runs to the end.
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		next := total
		if end := strings.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		coverage += next - start
		pos = next
	}
	return coverage*100/total >= 25
}
