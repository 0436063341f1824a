package analysis

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/nace-crawler/internal/cache"
	"github.com/JakeFAU/nace-crawler/internal/clock/system"
	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/errtrack"
	"github.com/JakeFAU/nace-crawler/internal/hash/sha256"
	"github.com/JakeFAU/nace-crawler/internal/nace"
	"github.com/JakeFAU/nace-crawler/internal/partner"
	"github.com/JakeFAU/nace-crawler/internal/storage/memory"
	"github.com/JakeFAU/nace-crawler/internal/textproc"
)

var analyzedAt = time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

func TestAnalyzeCrawlsClassifiesAndScores(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	crawl := &fakeCrawler{pages: map[string]string{
		"https://acme.de":          "<p>Wir bauen Pumpen</p>",
		"https://acme.de/ueber-uns": "<p>Seit 1950 bauen wir Ventile</p>",
	}}
	a := newAnalyzer(t, crawl, cache.New(blobs, sha256.New(), "crawls"), Config{})

	p := &partner.BusinessPartner{
		Key:                    "BP-1",
		Website:                "https://acme.de",
		DunsAndBradstreetCodes: []string{"28.13", "28.15"},
		NaceCodes:              []string{"stale"},
	}
	rec, err := a.Analyze(context.Background(), "run-1", p, errtrack.New())
	require.NoError(t, err)

	require.Equal(t, [][]string{{"Wir bauen Pumpen"}, {"Seit 1950 bauen wir Ventile"}}, p.ProcessedData)
	require.Len(t, p.Predictions, 2)
	require.Equal(t, []string{"28.13", "28.14"}, p.NaceCodes)

	require.Equal(t, crawler.AnalysisRecord{
		RunID:           "run-1",
		PartnerKey:      "BP-1",
		Website:         "https://acme.de",
		PredictedCodes:  []string{"28.13", "28.14"},
		ValidationCodes: []string{"28.13", "28.15"},
		Documents:       2,
		Paragraphs:      2,
		Score:           10 + 3,
		AnalyzedAt:      analyzedAt,
	}, rec)
	require.Equal(t, []string{"crawls/BP-1.ndjson"}, blobs.Paths())
	require.Equal(t, 1, a.Evaluator().Summary().Comparisons)
}

func TestAnalyzeSkipCrawlUsesCache(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	store := cache.New(blobs, sha256.New(), "crawls")
	doc, err := document.ParseString("https://acme.de", "<p>Wir bauen Pumpen</p>")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "BP-1", crawler.CrawlResult{BaseURL: "https://acme.de", Documents: []*document.Document{doc}})
	require.NoError(t, err)

	crawl := &fakeCrawler{}
	a := newAnalyzer(t, crawl, store, Config{SkipCrawl: true})
	p := &partner.BusinessPartner{Key: "BP-1", Website: "https://acme.de"}
	rec, err := a.Analyze(context.Background(), "run-1", p, errtrack.New())
	require.NoError(t, err)
	require.Zero(t, crawl.calls.Load())
	require.Equal(t, 1, rec.Documents)
	require.Equal(t, []string{"28.13"}, p.NaceCodes)
}

func TestAnalyzeCrawlModeRecrawlsCachedPartner(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	store := cache.New(blobs, sha256.New(), "crawls")
	stale, err := document.ParseString("https://acme.de", "<p>Wir bauen Pumpen</p>")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "BP-1", crawler.CrawlResult{BaseURL: "https://acme.de", Documents: []*document.Document{stale}})
	require.NoError(t, err)

	crawl := &fakeCrawler{pages: map[string]string{"https://acme.de": "<p>Heute bauen wir Ventile</p>"}}
	a := newAnalyzer(t, crawl, store, Config{})
	p := &partner.BusinessPartner{Key: "BP-1", Website: "https://acme.de"}
	rec, err := a.Analyze(context.Background(), "run-1", p, errtrack.New())
	require.NoError(t, err)
	require.Equal(t, int32(1), crawl.calls.Load())
	require.Equal(t, 1, rec.Documents)
	require.Equal(t, [][]string{{"Heute bauen wir Ventile"}}, p.ProcessedData)
	require.Equal(t, []string{"28.14"}, p.NaceCodes)

	docs, found, err := store.Load(context.Background(), "BP-1", "https://acme.de")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, docs, 1)
	require.Equal(t, []string{"Heute bauen wir Ventile"}, docs[0].Paragraphs())
}

func TestAnalyzeSkipCrawlWithoutCache(t *testing.T) {
	t.Parallel()

	crawl := &fakeCrawler{}
	a := newAnalyzer(t, crawl, nil, Config{SkipCrawl: true})
	_, err := a.Analyze(context.Background(), "run-1", &partner.BusinessPartner{Key: "BP-5", Website: "https://x.de"}, errtrack.New())
	require.ErrorIs(t, err, ErrNotCached)
	require.Zero(t, crawl.calls.Load())
}

func TestAnalyzeCacheOnlyWithoutEntry(t *testing.T) {
	t.Parallel()

	store := cache.New(memory.NewBlobStore(), sha256.New(), "crawls")
	a := newAnalyzer(t, &fakeCrawler{}, store, Config{SkipCrawl: true})
	_, err := a.Analyze(context.Background(), "run-1", &partner.BusinessPartner{Key: "BP-2", Website: "https://x.de"}, errtrack.New())
	require.ErrorIs(t, err, ErrNotCached)
}

func TestAnalyzeRejectsPartnerWithoutWebsite(t *testing.T) {
	t.Parallel()

	a := newAnalyzer(t, &fakeCrawler{}, nil, Config{})
	_, err := a.Analyze(context.Background(), "run-1", &partner.BusinessPartner{Key: "BP-3"}, errtrack.New())
	require.ErrorIs(t, err, partner.ErrNoWebsite)
}

func TestAnalyzeUnreachableSiteScoresMisses(t *testing.T) {
	t.Parallel()

	a := newAnalyzer(t, &fakeCrawler{}, nil, Config{})
	p := &partner.BusinessPartner{Key: "BP-4", Website: "https://down.de", DunsAndBradstreetCodes: []string{"10.11", "46.90"}}
	rec, err := a.Analyze(context.Background(), "run-1", p, errtrack.New())
	require.NoError(t, err)
	require.Empty(t, p.NaceCodes)
	require.Zero(t, rec.Documents)
	require.Equal(t, -20, rec.Score)
}

func newAnalyzer(t *testing.T, c Crawler, store *cache.Store, cfg Config) *Analyzer {
	t.Helper()
	text, err := textproc.New(textproc.Config{})
	require.NoError(t, err)
	return New(Deps{
		Crawler:   c,
		Cache:     store,
		Text:      text,
		Predictor: keywordPredictor{},
		Clock:     system.NewFixed(analyzedAt),
	}, cfg, nil)
}

type fakeCrawler struct {
	pages map[string]string
	calls atomic.Int32
}

func (f *fakeCrawler) Crawl(_ context.Context, baseURL string, _ crawler.ErrorSink) crawler.CrawlResult {
	f.calls.Add(1)
	res := crawler.CrawlResult{BaseURL: baseURL}
	if _, ok := f.pages[baseURL]; !ok {
		return res
	}
	urls := []string{baseURL}
	for u := range f.pages {
		if u != baseURL {
			urls = append(urls, u)
		}
	}
	for _, u := range urls {
		doc, err := document.ParseString(u, f.pages[u])
		if err != nil {
			panic(err)
		}
		res.Documents = append(res.Documents, doc)
	}
	return res
}

// keywordPredictor labels pumps 28.13 and valves 28.14.
type keywordPredictor struct{}

func (keywordPredictor) PredictAll(_ context.Context, paragraphs []string) nace.PredictionSet {
	var set nace.PredictionSet
	for _, text := range paragraphs {
		list := nace.PredictionList{InputData: text}
		switch {
		case strings.Contains(text, "Pumpen"):
			list.Predictions = []nace.Prediction{{Label: "28.13", Score: 0.9}}
		case strings.Contains(text, "Ventile"):
			list.Predictions = []nace.Prediction{{Label: "28.14", Score: 0.8}}
		}
		set.Add(list)
	}
	return set
}
