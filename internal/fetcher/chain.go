package fetcher

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/errtrack"
	"github.com/JakeFAU/nace-crawler/internal/metrics"
)

// Promoter decides whether a successfully fetched document still needs a browser render.
type Promoter interface {
	ShouldRender(doc *document.Document) bool
}

// Chain tries a direct fetch and falls back to a browser render when it fails.
// Render may be nil, in which case a direct failure is final.
type Chain struct {
	direct   crawler.Fetcher
	render   crawler.Fetcher
	promoter Promoter
	logger   *zap.Logger
}

// NewChain wires a Chain.
func NewChain(direct, render crawler.Fetcher, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{direct: direct, render: render, logger: logger}
}

// WithPromoter also renders direct results that p flags, such as client-rendered shells.
func (c *Chain) WithPromoter(p Promoter) *Chain {
	c.promoter = p
	return c
}

// FetchPage implements crawler.PageFetcher. Every failed attempt is reported to sink, and the
// result carries no document when all attempts failed.
func (c *Chain) FetchPage(ctx context.Context, rawURL string, sink crawler.ErrorSink) crawler.FetchResult {
	result := crawler.FetchResult{URL: rawURL}

	doc, err := c.direct.Fetch(ctx, rawURL)
	if err == nil {
		metrics.ObserveFetch(string(errtrack.SourceDirect), "success")
		result.Document = c.promote(ctx, rawURL, doc, sink)
		return result
	}
	rec := c.report(sink, errtrack.SourceDirect, rawURL, err)
	result.Err = &rec
	if c.render == nil || ctx.Err() != nil {
		return result
	}

	metrics.ObserveFallback()
	c.logger.Debug("direct fetch failed, rendering", zap.String("url", rawURL), zap.String("kind", rec.Kind))
	doc, err = c.render.Fetch(ctx, rawURL)
	if err == nil {
		metrics.ObserveFetch(string(errtrack.SourceRender), "success")
		result.Document = doc
		result.Err = nil
		return result
	}
	rec = c.report(sink, errtrack.SourceRender, rawURL, err)
	result.Err = &rec
	return result
}

// promote swaps doc for its rendered version when the promoter asks for it. A failed render
// keeps the direct document.
func (c *Chain) promote(ctx context.Context, rawURL string, doc *document.Document, sink crawler.ErrorSink) *document.Document {
	if c.promoter == nil || c.render == nil || !c.promoter.ShouldRender(doc) {
		return doc
	}
	metrics.ObserveFallback()
	c.logger.Debug("direct page looks client-rendered, rendering", zap.String("url", rawURL))
	rendered, err := c.render.Fetch(ctx, rawURL)
	if err != nil {
		c.report(sink, errtrack.SourceRender, rawURL, err)
		return doc
	}
	metrics.ObserveFetch(string(errtrack.SourceRender), "success")
	return rendered
}

func (c *Chain) report(sink crawler.ErrorSink, source errtrack.Source, rawURL string, err error) errtrack.Record {
	fe := Classify(rawURL, err)
	rec := errtrack.Record{
		Source:  source,
		Kind:    fe.Kind,
		URL:     rawURL,
		Message: err.Error(),
	}
	if fe.StatusCode != 0 {
		status := fe.StatusCode
		rec.StatusCode = &status
	}
	if sink != nil {
		sink.Add(rec)
	}
	metrics.ObserveFetch(string(source), "failure")
	metrics.ObserveFetchError(string(source), fe.Kind)
	c.logger.Warn("fetch failed",
		zap.String("source", string(source)),
		zap.String("kind", fe.Kind),
		zap.String("url", rawURL),
		zap.Error(err),
	)
	return rec
}

// IsKind reports whether err is a fetch failure of the given kind.
func IsKind(err error, kind string) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
