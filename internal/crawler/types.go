package crawler

import (
	"time"

	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/errtrack"
	"github.com/JakeFAU/nace-crawler/internal/partner"
)

// CandidateLink is a sub-page chosen for fetching, tagged with the keyword tier that matched.
type CandidateLink struct {
	URL       string `json:"url"`
	Tier      int    `json:"tier"`
	SourceURL string `json:"source_url"`
}

// FetchResult is the outcome of fetching one URL. Document is nil when every strategy failed;
// Err then holds the last recorded failure.
type FetchResult struct {
	URL      string
	Document *document.Document
	Err      *errtrack.Record
}

// CrawlResult holds the documents of one crawl, base page first. Results keeps every fetch
// outcome in the same order, failed sub-pages included; Documents holds only the successes.
type CrawlResult struct {
	BaseURL   string
	Links     []CandidateLink
	Results   []FetchResult
	Documents []*document.Document
}

// Empty reports whether the crawl produced no documents.
func (r CrawlResult) Empty() bool {
	return len(r.Documents) == 0
}

// QueueItem wraps one partner ready for analysis. Index is the partner's position in its batch.
type QueueItem struct {
	RunID   string
	Index   int
	Partner *partner.BusinessPartner
}

// AnalysisRecord summarizes one analyzed partner for persistence and notification.
type AnalysisRecord struct {
	RunID           string    `json:"run_id"`
	PartnerKey      string    `json:"partner_key"`
	Website         string    `json:"website"`
	PredictedCodes  []string  `json:"nace_codes"`
	ValidationCodes []string  `json:"validation_codes"`
	Documents       int       `json:"documents"`
	Paragraphs      int       `json:"paragraphs"`
	Score           int       `json:"score"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}
