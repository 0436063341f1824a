package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/metrics"
)

// OrchestratorConfig bounds a single crawl.
type OrchestratorConfig struct {
	// Workers caps concurrent sub-page fetches.
	Workers int
	// CrawlTimeout bounds the whole crawl; zero means no deadline beyond the caller's context.
	CrawlTimeout time.Duration
	// Scope, when set, derives the context shared by every fetch of one crawl. The direct
	// fetcher hangs its cookie store here so cookies never outlive the crawl.
	Scope func(context.Context) context.Context
}

// Orchestrator fetches a base page, selects candidate sub-pages, and fetches them in parallel.
type Orchestrator struct {
	fetcher  PageFetcher
	selector LinkSelector
	cfg      OrchestratorConfig
	logger   *zap.Logger
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(fetcher PageFetcher, selector LinkSelector, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:  fetcher,
		selector: selector,
		cfg:      cfg,
		logger:   logger,
	}
}

// Crawl never fails: an unreachable base page yields an empty result, and sub-page failures
// only land in sink.
func (o *Orchestrator) Crawl(ctx context.Context, baseURL string, sink ErrorSink) CrawlResult {
	start := time.Now()
	if o.cfg.CrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CrawlTimeout)
		defer cancel()
	}
	if o.cfg.Scope != nil {
		ctx = o.cfg.Scope(ctx)
	}

	result := CrawlResult{BaseURL: baseURL}
	base := o.fetcher.FetchPage(ctx, baseURL, sink)
	result.Results = []FetchResult{base}
	if base.Document == nil {
		o.logger.Warn("base page unavailable", zap.String("url", baseURL))
		metrics.ObserveCrawl("empty", time.Since(start))
		return result
	}
	result.Documents = []*document.Document{base.Document}

	links := o.selector.Select(base.Document)
	for i := range links {
		links[i].SourceURL = baseURL
		metrics.ObserveCandidate(links[i].Tier)
	}
	result.Links = links
	o.logger.Debug("selected candidate links", zap.String("url", baseURL), zap.Int("count", len(links)))

	fetched, err := o.fetchCandidates(ctx, links, sink)
	if err != nil {
		o.logger.Error("candidate fetch failed, keeping base page only", zap.String("url", baseURL), zap.Error(err))
		metrics.ObserveCrawl("degraded", time.Since(start))
		return result
	}
	result.Results = append(result.Results, fetched...)
	for _, res := range fetched {
		if res.Document != nil {
			result.Documents = append(result.Documents, res.Document)
		}
	}
	metrics.ObserveCrawl("ok", time.Since(start))
	o.logger.Info("crawl finished",
		zap.String("url", baseURL),
		zap.Int("documents", len(result.Documents)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result
}

// fetchCandidates returns every sub-page outcome in completion order.
func (o *Orchestrator) fetchCandidates(ctx context.Context, links []CandidateLink, sink ErrorSink) ([]FetchResult, error) {
	var (
		mu      sync.Mutex
		fetched []FetchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, link := range links {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("fetch %s panicked: %v", link.URL, r)
				}
			}()
			res := o.fetcher.FetchPage(gctx, link.URL, sink)
			mu.Lock()
			fetched = append(fetched, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("join candidate fetches: %w", err)
	}
	return fetched, nil
}
