// Package worker implements the partner analysis execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/metrics"
	"github.com/JakeFAU/nace-crawler/internal/partner"
)

// Partner outcome labels.
const (
	StatusAnalyzed = "analyzed"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Analyzer runs the crawl-to-codes pipeline for one partner.
type Analyzer interface {
	Analyze(ctx context.Context, runID string, p *partner.BusinessPartner, sink crawler.ErrorSink) (crawler.AnalysisRecord, error)
}

// Config controls Worker behavior.
type Config struct {
	// Topic receives one notification per analyzed partner; empty disables publishing.
	Topic string
	// MaxAttempts bounds result persistence and publishing attempts. Defaults to 3.
	MaxAttempts int
	// RetryBackoff is the first retry delay; it doubles per attempt. Defaults to 200ms.
	RetryBackoff time.Duration
	// PartnerTimeout bounds a single partner analysis; zero means no extra deadline.
	PartnerTimeout time.Duration
}

// Worker consumes queue items and analyzes one partner at a time.
type Worker struct {
	queue     crawler.Queue
	analyzer  Analyzer
	results   crawler.ResultStore
	publisher crawler.Publisher
	sink      crawler.ErrorSink
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. results and publisher may be nil.
func New(
	queue crawler.Queue,
	analyzer Analyzer,
	results crawler.ResultStore,
	publisher crawler.Publisher,
	sink crawler.ErrorSink,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	return &Worker{
		queue:     queue,
		analyzer:  analyzer,
		results:   results,
		publisher: publisher,
		sink:      sink,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued partner", zap.String("run_id", item.RunID), zap.Int("index", item.Index))
		w.processItem(ctx, item)
	}
}

func (w *Worker) processItem(ctx context.Context, item crawler.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	status := w.process(ctx, item)
	metrics.ObservePartner(status)
}

func (w *Worker) process(ctx context.Context, item crawler.QueueItem) string {
	if item.Partner == nil || w.analyzer == nil {
		w.logger.Error("queue item not processable", zap.String("run_id", item.RunID), zap.Int("index", item.Index))
		return StatusFailed
	}
	logger := w.logger.With(zap.String("run_id", item.RunID), zap.String("partner", item.Partner.Key))

	if w.cfg.PartnerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.PartnerTimeout)
		defer cancel()
	}

	rec, err := w.analyzer.Analyze(ctx, item.RunID, item.Partner, w.sink)
	if errors.Is(err, partner.ErrNoWebsite) {
		logger.Warn("partner skipped", zap.Error(err))
		return StatusSkipped
	}
	if err != nil {
		logger.Error("partner analysis failed", zap.Error(err))
		return StatusFailed
	}

	if err := w.persistAndPublish(ctx, rec); err != nil {
		logger.Error("persist result failed", zap.Error(err))
		return StatusFailed
	}
	return StatusAnalyzed
}

func (w *Worker) persistAndPublish(ctx context.Context, rec crawler.AnalysisRecord) error {
	if w.results != nil {
		if err := w.retry(ctx, "save result", func() error {
			return w.results.SaveResult(ctx, rec)
		}); err != nil {
			return err
		}
	}
	return w.publishResult(ctx, rec)
}

func (w *Worker) publishResult(ctx context.Context, rec crawler.AnalysisRecord) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	var id string
	err := w.retry(ctx, "publish result", func() error {
		var err error
		id, err = w.publisher.Publish(ctx, w.cfg.Topic, rec)
		return err
	})
	if err != nil {
		return err
	}
	w.logger.Info("result published",
		zap.String("run_id", rec.RunID),
		zap.String("partner", rec.PartnerKey),
		zap.String("message_id", id),
		zap.Strings("nace_codes", rec.PredictedCodes),
	)
	return nil
}

// retry runs op up to MaxAttempts times with doubling backoff.
func (w *Worker) retry(ctx context.Context, what string, op func() error) error {
	backoff := w.cfg.RetryBackoff
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == w.cfg.MaxAttempts {
			break
		}
		w.logger.Warn("retrying", zap.String("op", what), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%s after %d attempts: %w", what, w.cfg.MaxAttempts, err)
}
