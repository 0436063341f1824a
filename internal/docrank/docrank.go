// Package docrank orders and filters the documents of a crawl before text extraction.
package docrank

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/keywords"
)

// Stage names accepted in Config.Stages.
const (
	StageSortPriority          = "sortPriority"
	StageFilterDepth           = "filterDepth"
	StageLimitDocuments        = "limitDocuments"
	StageFilterMinimumPriority = "filterMinimumPriority"
	StageFilterIgnoredTags     = "filterIgnoredTags"
	StageRankSubPages          = "rankSubPages"
)

// ErrUnknownStage is returned by New for a stage name it does not know.
var ErrUnknownStage = errors.New("unknown ranking stage")

// Config selects and parameterizes the stages.
type Config struct {
	Stages       []string `mapstructure:"stages"`
	MaxDocuments int      `mapstructure:"max_documents"`
	MinPriority  int      `mapstructure:"min_priority"`
	// IgnoreTags keeps only documents that contain every listed CSS selector.
	IgnoreTags []string `mapstructure:"ignore_tags"`
	// RankBy maps a rank to URL fragments; rankSubPages sorts by the highest matching rank.
	RankBy map[int][]string `mapstructure:"rank_by"`
}

// Ranker applies the configured stages in order.
type Ranker struct {
	cfg   Config
	table *keywords.Table
}

// New validates the stage list. A nil table uses keywords.Default().
func New(cfg Config, table *keywords.Table) (*Ranker, error) {
	for _, s := range cfg.Stages {
		switch s {
		case StageSortPriority, StageFilterDepth, StageLimitDocuments,
			StageFilterMinimumPriority, StageFilterIgnoredTags, StageRankSubPages:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, s)
		}
	}
	if table == nil {
		table = keywords.Default()
	}
	return &Ranker{cfg: cfg, table: table}, nil
}

// Rank returns a new slice; docs is not modified.
func (r *Ranker) Rank(docs []*document.Document) []*document.Document {
	out := slices.Clone(docs)
	for _, s := range r.cfg.Stages {
		switch s {
		case StageSortPriority:
			out = r.sortPriority(out)
		case StageFilterDepth:
			out = sortByDepth(out)
		case StageLimitDocuments:
			out = limit(out, r.cfg.MaxDocuments)
		case StageFilterMinimumPriority:
			out = r.filterMinimumPriority(out)
		case StageFilterIgnoredTags:
			out = filterTags(out, r.cfg.IgnoreTags)
		case StageRankSubPages:
			out = rankSubPages(out, r.cfg.RankBy)
		}
	}
	return out
}

func (r *Ranker) sortPriority(docs []*document.Document) []*document.Document {
	slices.SortStableFunc(docs, func(a, b *document.Document) int {
		return r.table.Priority(b.BaseURI()) - r.table.Priority(a.BaseURI())
	})
	return docs
}

func sortByDepth(docs []*document.Document) []*document.Document {
	slices.SortStableFunc(docs, func(a, b *document.Document) int {
		return strings.Count(b.BaseURI(), "/") - strings.Count(a.BaseURI(), "/")
	})
	return docs
}

func limit(docs []*document.Document, n int) []*document.Document {
	if n < 0 {
		n = 0
	}
	if len(docs) > n {
		return docs[:n]
	}
	return docs
}

func (r *Ranker) filterMinimumPriority(docs []*document.Document) []*document.Document {
	return slices.DeleteFunc(docs, func(d *document.Document) bool {
		return r.table.Priority(d.BaseURI()) < r.cfg.MinPriority
	})
}

func filterTags(docs []*document.Document, tags []string) []*document.Document {
	if len(tags) == 0 {
		return docs
	}
	return slices.DeleteFunc(docs, func(d *document.Document) bool {
		for _, tag := range tags {
			if !d.Has(tag) {
				return true
			}
		}
		return false
	})
}

func rankSubPages(docs []*document.Document, rankBy map[int][]string) []*document.Document {
	if len(rankBy) == 0 {
		return docs
	}
	slices.SortStableFunc(docs, func(a, b *document.Document) int {
		ra, rb := subPageRank(a.BaseURI(), rankBy), subPageRank(b.BaseURI(), rankBy)
		switch {
		case ra < rb:
			return -1
		case ra > rb:
			return 1
		}
		return 0
	})
	return docs
}

// subPageRank is the highest rank with a fragment contained in rawURL, or MaxInt without one.
func subPageRank(rawURL string, rankBy map[int][]string) int {
	best, found := 0, false
	for rank, fragments := range rankBy {
		for _, f := range fragments {
			if strings.Contains(rawURL, f) {
				if !found || rank > best {
					best, found = rank, true
				}
				break
			}
		}
	}
	if !found {
		return math.MaxInt
	}
	return best
}
