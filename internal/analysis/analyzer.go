// Package analysis runs the per-partner pipeline: crawl (or cache), rank, text, classify,
// aggregate, and evaluate.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/cache"
	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/nace"
	"github.com/JakeFAU/nace-crawler/internal/partner"
)

// ErrNotCached is returned in cache-only mode when a partner has no cached crawl.
var ErrNotCached = errors.New("no cached crawl")

// Crawler fetches a base page and its About-Us candidates.
type Crawler interface {
	Crawl(ctx context.Context, baseURL string, sink crawler.ErrorSink) crawler.CrawlResult
}

// Ranker orders and filters crawled documents.
type Ranker interface {
	Rank(docs []*document.Document) []*document.Document
}

// TextProcessor turns a document into classifier input.
type TextProcessor interface {
	Process(doc *document.Document) ([]string, error)
}

// Predictor classifies paragraphs.
type Predictor interface {
	PredictAll(ctx context.Context, paragraphs []string) nace.PredictionSet
}

// Config tunes aggregation and cache usage.
type Config struct {
	MaxCodes       int     `mapstructure:"max_codes"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	// SkipCrawl analyzes cached crawls only.
	SkipCrawl bool `mapstructure:"-"`
}

// Deps groups the collaborators of an Analyzer. Cache and Ranker are optional.
type Deps struct {
	Crawler   Crawler
	Cache     *cache.Store
	Ranker    Ranker
	Text      TextProcessor
	Predictor Predictor
	Evaluator *nace.Evaluator
	Clock     crawler.Clock
}

// Analyzer derives NACE codes for business partners.
type Analyzer struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New builds an Analyzer.
func New(deps Deps, cfg Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxCodes <= 0 {
		cfg.MaxCodes = 3
	}
	if deps.Evaluator == nil {
		deps.Evaluator = nace.NewEvaluator(nace.DefaultWeights())
	}
	return &Analyzer{deps: deps, cfg: cfg, logger: logger}
}

// Evaluator exposes the running evaluation totals.
func (a *Analyzer) Evaluator() *nace.Evaluator {
	return a.deps.Evaluator
}

// Analyze replaces the partner's derived fields with a fresh analysis and scores the predicted
// codes against its D&B codes. Fetch failures go to sink.
func (a *Analyzer) Analyze(ctx context.Context, runID string, p *partner.BusinessPartner, sink crawler.ErrorSink) (crawler.AnalysisRecord, error) {
	if err := p.Validate(); err != nil {
		return crawler.AnalysisRecord{}, err
	}
	logger := a.logger.With(zap.String("partner", p.Key), zap.String("website", p.Website))

	docs, err := a.documents(ctx, p, sink)
	if err != nil {
		return crawler.AnalysisRecord{}, err
	}
	if a.deps.Ranker != nil {
		docs = a.deps.Ranker.Rank(docs)
	}

	p.Reset()
	paragraphs := 0
	for _, doc := range docs {
		text, err := a.deps.Text.Process(doc)
		if err != nil {
			return crawler.AnalysisRecord{}, fmt.Errorf("process %s: %w", doc.BaseURI(), err)
		}
		p.AddProcessedData(text)
		paragraphs += len(text)
	}
	for _, text := range p.ProcessedData {
		if err := ctx.Err(); err != nil {
			return crawler.AnalysisRecord{}, fmt.Errorf("classify %s: %w", p.Key, err)
		}
		p.AddPredictionSet(a.deps.Predictor.PredictAll(ctx, text))
	}

	p.NaceCodes = nace.BestCodes(p.Predictions, a.cfg.MaxCodes, a.cfg.ScoreThreshold)
	score := a.deps.Evaluator.Compare(p.DunsAndBradstreetCodes, p.NaceCodes)
	logger.Info("partner analyzed",
		zap.Int("documents", len(docs)),
		zap.Int("paragraphs", paragraphs),
		zap.Strings("nace_codes", p.NaceCodes),
		zap.Int("score", score),
	)

	rec := crawler.AnalysisRecord{
		RunID:           runID,
		PartnerKey:      p.Key,
		Website:         p.Website,
		PredictedCodes:  append([]string(nil), p.NaceCodes...),
		ValidationCodes: append([]string(nil), p.DunsAndBradstreetCodes...),
		Documents:       len(docs),
		Paragraphs:      paragraphs,
		Score:           score,
	}
	if a.deps.Clock != nil {
		rec.AnalyzedAt = a.deps.Clock.Now()
	}
	return rec, nil
}

func (a *Analyzer) documents(ctx context.Context, p *partner.BusinessPartner, sink crawler.ErrorSink) ([]*document.Document, error) {
	if a.cfg.SkipCrawl {
		return a.cachedDocuments(ctx, p)
	}

	res := a.deps.Crawler.Crawl(ctx, p.Website, sink)
	if res.Empty() {
		a.logger.Warn("no data crawled", zap.String("partner", p.Key), zap.String("website", p.Website))
		return nil, nil
	}
	if a.deps.Cache != nil {
		uri, err := a.deps.Cache.Save(ctx, p.Key, res)
		if err != nil {
			a.logger.Error("save crawl cache failed", zap.String("partner", p.Key), zap.Error(err))
		} else {
			a.logger.Debug("crawl cached", zap.String("partner", p.Key), zap.String("uri", uri))
		}
	}
	return res.Documents, nil
}

// cachedDocuments serves cache-only runs; a partner that was never crawled is an error.
func (a *Analyzer) cachedDocuments(ctx context.Context, p *partner.BusinessPartner) ([]*document.Document, error) {
	if a.deps.Cache == nil {
		return nil, fmt.Errorf("%s: %w", p.Key, ErrNotCached)
	}
	docs, found, err := a.deps.Cache.Load(ctx, p.Key, p.Website)
	if err != nil {
		return nil, fmt.Errorf("load cached crawl: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", p.Key, ErrNotCached)
	}
	a.logger.Debug("using cached crawl", zap.String("partner", p.Key), zap.Int("documents", len(docs)))
	return docs, nil
}
