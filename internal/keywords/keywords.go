// Package keywords holds the tiered keyword table used to find "About Us" pages.
package keywords

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Entry pairs a keyword with the tier it belongs to. Tier 1 is the strongest signal.
type Entry struct {
	Keyword string
	Tier    int
}

// Table is an immutable keyword-to-tier mapping.
type Table struct {
	tiers  [][]string
	lookup map[string]int
}

var defaultTiers = [][]string{
	{
		"über-uns", "ueber-uns.html", "about-us", "aboutus", "que-es", "über_uns", "ueber_uns",
		"sobrenos", "uber_uns", "ueber-uns", "que_es", "uber-uns", "o-nas", "ueberuns",
		"about.html", "wirueberuns", "über uns", "ueber uns", "Über uns", "Ueber uns",
	},
	{"/unternehmen", "a_company", "firma", "die-marke", "die_marke", "company"},
	{
		"who-we-are", "our-story", "company-info", "profile", "who_we_are", "historie", "profil",
		"overview", "unternehmen", "wer_wir_sind", "our-business",
	},
	{
		"wer-ist", "story", "wir", "our", "somos", "über", "uber", "ueber", "about",
		"facts-and-figures", "welcome-to", "produkte", "what_we_do", "what-we-do", "whatwedo",
		"sortiment",
	},
}

// Default returns the built-in four-tier table.
func Default() *Table {
	t, err := New(defaultTiers)
	if err != nil {
		panic(fmt.Sprintf("default keyword table: %v", err))
	}
	return t
}

// New builds a table from ordered tiers; tiers[0] becomes tier 1.
// Duplicates inside a tier collapse; a keyword listed in two tiers is an error.
func New(tiers [][]string) (*Table, error) {
	t := &Table{
		tiers:  make([][]string, len(tiers)),
		lookup: make(map[string]int),
	}
	for i, words := range tiers {
		tier := i + 1
		for _, w := range words {
			if w == "" {
				continue
			}
			if existing, ok := t.lookup[w]; ok {
				if existing == tier {
					continue
				}
				return nil, fmt.Errorf("keyword %q listed in tiers %d and %d", w, existing, tier)
			}
			t.lookup[w] = tier
			t.tiers[i] = append(t.tiers[i], w)
		}
	}
	return t, nil
}

// Lookup returns the tier of keyword.
func (t *Table) Lookup(keyword string) (int, bool) {
	tier, ok := t.lookup[keyword]
	return tier, ok
}

// NumTiers reports how many tiers the table holds.
func (t *Table) NumTiers() int {
	return len(t.tiers)
}

// Keywords returns a copy of the keywords in tier, in configured order.
func (t *Table) Keywords(tier int) []string {
	if tier < 1 || tier > len(t.tiers) {
		return nil
	}
	out := make([]string, len(t.tiers[tier-1]))
	copy(out, t.tiers[tier-1])
	return out
}

// Entries lists every keyword with its tier, ordered by tier.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.lookup))
	for i, words := range t.tiers {
		for _, w := range words {
			out = append(out, Entry{Keyword: w, Tier: i + 1})
		}
	}
	return out
}

// Priority sums the tiers of every keyword contained in rawURL.
func (t *Table) Priority(rawURL string) int {
	sum := 0
	for i, words := range t.tiers {
		for _, w := range words {
			if strings.Contains(rawURL, w) {
				sum += i + 1
			}
		}
	}
	return sum
}

// WithSiteName returns a copy of the table with the site's registrable name
// ("acme" for https://www.acme.co.uk) added to tier 3. The receiver is unchanged.
func (t *Table) WithSiteName(rawURL string) (*Table, error) {
	name, err := SiteName(rawURL)
	if err != nil {
		return nil, err
	}
	tiers := make([][]string, len(t.tiers))
	for i := range t.tiers {
		tiers[i] = append([]string(nil), t.tiers[i]...)
	}
	if _, exists := t.lookup[name]; exists || len(tiers) < 3 {
		return New(tiers)
	}
	tiers[2] = append(tiers[2], name)
	return New(tiers)
}

// SiteName extracts the label left of the public suffix of rawURL's host.
func SiteName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("effective tld: %w", err)
	}
	name, _, _ := strings.Cut(etld1, ".")
	return name, nil
}
