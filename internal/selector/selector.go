// Package selector picks the likely "About Us" sub-pages linked from a base page.
package selector

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/keywords"
)

var nonHTMLExtension = regexp.MustCompile(`(?i)\.(pdf|jpg|jpeg|png|gif|svg|doc|docx|ppt|pptx|xls|xlsx|zip|rar|mp3|mp4|avi|mov|webp)$`)

var excludedFragments = []string{
	"javascript:void(0)", "mailto:", ".pdf", ".mp4", "linkedin", "datenschutz",
	"search-results", "instagram", "facebook", "/cart", "/haendlersuche", "google",
}

// Config tunes selection.
type Config struct {
	// MaxLinks stops the search once this many links were selected. Defaults to 3.
	MaxLinks int
	// IncludeSiteName adds the site's own name to tier 3 for each document.
	IncludeSiteName bool
}

// Selector implements crawler.LinkSelector over a keyword table.
type Selector struct {
	table *keywords.Table
	cfg   Config
}

// New builds a Selector. A nil table uses keywords.Default().
func New(table *keywords.Table, cfg Config) *Selector {
	if table == nil {
		table = keywords.Default()
	}
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = 3
	}
	return &Selector{table: table, cfg: cfg}
}

type anchor struct {
	abs  string
	href string
	path string
	text string
}

// Select walks the tiers in order. Within each tier it first looks for links whose path ends
// with a keyword, then for links whose path or text contains one. The search stops after a
// tier-1 or tier-2 hit or once MaxLinks links were collected.
func (s *Selector) Select(doc *document.Document) []crawler.CandidateLink {
	table := s.table
	if s.cfg.IncludeSiteName {
		if extended, err := table.WithSiteName(doc.BaseURI()); err == nil {
			table = extended
		}
	}

	anchors := eligibleAnchors(doc)
	seen := make(map[string]struct{})
	var out []crawler.CandidateLink

	for tier := 1; tier <= table.NumTiers(); tier++ {
		words := table.Keywords(tier)
		for _, match := range []func(anchor, []string) bool{pathEndsWith, pathOrTextContains} {
			for _, a := range anchors {
				if !match(a, words) {
					continue
				}
				if _, dup := seen[a.abs]; dup {
					continue
				}
				seen[a.abs] = struct{}{}
				out = append(out, crawler.CandidateLink{URL: a.abs, Tier: tier})
				if tier <= 2 || len(out) >= s.cfg.MaxLinks {
					return out
				}
			}
		}
	}
	return out
}

func eligibleAnchors(doc *document.Document) []anchor {
	base := doc.BaseURI()
	var out []anchor
	for _, a := range doc.Anchors() {
		href := strings.ToLower(a.Href)
		if a.AbsURL == "" || containsAny(href, excludedFragments) {
			continue
		}
		if nonHTMLExtension.MatchString(a.AbsURL) || !strings.HasPrefix(a.AbsURL, base) {
			continue
		}
		out = append(out, anchor{
			abs:  a.AbsURL,
			href: href,
			path: pathOf(href),
			text: strings.ToLower(a.Text),
		})
	}
	return out
}

func pathEndsWith(a anchor, words []string) bool {
	p := strings.TrimSuffix(a.path, "/")
	for _, w := range words {
		if strings.HasSuffix(p, w) {
			return true
		}
	}
	return false
}

func pathOrTextContains(a anchor, words []string) bool {
	return containsAny(a.path, words) || containsAny(a.text, words)
}

func pathOf(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Path)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
