// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/analysis"
	"github.com/JakeFAU/nace-crawler/internal/cache"
	"github.com/JakeFAU/nace-crawler/internal/classifier"
	"github.com/JakeFAU/nace-crawler/internal/clock/system"
	"github.com/JakeFAU/nace-crawler/internal/config"
	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/dispatcher"
	"github.com/JakeFAU/nace-crawler/internal/docrank"
	"github.com/JakeFAU/nace-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/nace-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/nace-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/nace-crawler/internal/hash/sha256"
	"github.com/JakeFAU/nace-crawler/internal/headless/detector"
	"github.com/JakeFAU/nace-crawler/internal/id/uuid"
	"github.com/JakeFAU/nace-crawler/internal/keywords"
	"github.com/JakeFAU/nace-crawler/internal/nace"
	"github.com/JakeFAU/nace-crawler/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/nace-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/nace-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/nace-crawler/internal/selector"
	"github.com/JakeFAU/nace-crawler/internal/storage/gcs"
	"github.com/JakeFAU/nace-crawler/internal/storage/local"
	"github.com/JakeFAU/nace-crawler/internal/storage/memory"
	"github.com/JakeFAU/nace-crawler/internal/storage/postgres"
	"github.com/JakeFAU/nace-crawler/internal/textproc"
	"github.com/JakeFAU/nace-crawler/internal/worker"
)

// App holds the shared, long-lived services for one process: the crawl pipeline, the
// classifier client, and the optional result database and notification topic.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	blobs      crawler.BlobStore
	cache      *cache.Store
	crawler    *crawler.Orchestrator
	ranker     *docrank.Ranker
	text       *textproc.Pipeline
	classifier *classifier.Client
	evaluator  *nace.Evaluator
	results    *postgres.ResultStore
	publisher  crawler.Publisher
	clock      crawler.Clock
	idGen      crawler.IDGenerator
	closers    []func()
}

// New builds every service from cfg. Partially built services are released on error.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:       cfg,
		logger:    logger,
		clock:     system.New(),
		idGen:     uuid.New(),
		evaluator: nace.NewEvaluator(cfg.Nace.Weights),
	}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.Bool("results_db", a.results != nil),
		zap.Bool("notifications", a.publisher != nil),
	)
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	blobs, err := a.newBlobStore(ctx)
	if err != nil {
		return err
	}
	a.blobs = blobs
	a.cache = cache.New(blobs, sha256.New(), a.cfg.Storage.Prefix)

	table, err := a.keywordTable()
	if err != nil {
		return err
	}
	chain := fetcher.NewChain(a.directFetcher(), a.renderFetcher(), a.logger.Named("fetch"))
	if a.cfg.Headless.Enabled && a.cfg.Headless.PromoteShells {
		chain.WithPromoter(detector.NewHeuristic(a.cfg.Headless.PromotionThreshold))
	}
	a.crawler = crawler.NewOrchestrator(
		chain,
		selector.New(table, selector.Config{
			MaxLinks:        a.cfg.Selector.MaxLinks,
			IncludeSiteName: a.cfg.Selector.IncludeSiteName,
		}),
		crawler.OrchestratorConfig{
			Workers:      a.cfg.Crawler.Workers,
			CrawlTimeout: a.cfg.CrawlTimeout(),
			Scope:        collyfetcher.NewCrawlScope,
		},
		a.logger.Named("crawler"),
	)

	if a.ranker, err = docrank.New(a.cfg.Rank, table); err != nil {
		return fmt.Errorf("init ranker: %w", err)
	}
	if a.text, err = textproc.New(a.cfg.Text); err != nil {
		return fmt.Errorf("init text pipeline: %w", err)
	}
	a.classifier = classifier.New(classifier.Config{
		URL:     a.cfg.Classifier.URL,
		Timeout: a.cfg.ClassifierTimeout(),
	}, nil, a.logger.Named("classifier"))

	if err := a.initResults(ctx); err != nil {
		return err
	}
	return a.initPublisher(ctx)
}

func (a *App) newBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	case config.BackendGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose(func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("close gcs client", zap.Error(err))
			}
		})
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

func (a *App) keywordTable() (*keywords.Table, error) {
	if a.cfg.Selector.KeywordsFile == "" {
		return keywords.Default(), nil
	}
	table, err := keywords.LoadFile(a.cfg.Selector.KeywordsFile)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	return table, nil
}

func (a *App) userAgent() string {
	if a.cfg.Crawler.UserAgent != "" {
		return a.cfg.Crawler.UserAgent
	}
	return collyfetcher.DefaultUserAgent
}

func (a *App) directFetcher() crawler.Fetcher {
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: a.userAgent(),
		Timeout:   a.cfg.FetchTimeout(),
	})
}

func (a *App) renderFetcher() crawler.Fetcher {
	if !a.cfg.Headless.Enabled {
		return headless.NewNoop()
	}
	pacer := ratelimit.New(ratelimit.Config{
		DomainQPS: a.cfg.Headless.DomainQPS,
		Burst:     a.cfg.Headless.DomainBurst,
	})
	render, err := headless.NewChromedp(headless.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.userAgent(),
		NavigationTimeout: a.cfg.NavTimeout(),
	}, pacer)
	if err != nil {
		a.logger.Warn("headless fetcher init failed, render fallback disabled", zap.Error(err))
		return headless.NewNoop()
	}
	a.onClose(render.Close)
	return render
}

func (a *App) initResults(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		return nil
	}
	store, err := postgres.NewResultStore(ctx, postgres.ResultStoreConfig{
		DSN:   a.cfg.DB.DSN,
		Table: a.cfg.DB.Table,
	})
	if err != nil {
		return fmt.Errorf("init result store: %w", err)
	}
	a.onClose(store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	a.results = store
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	topic := a.cfg.PubSub.TopicName
	if topic == "" {
		return nil
	}
	if a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("pubsub.project_id not set, notifications kept in memory", zap.String("topic", topic))
		a.publisher = memorypublisher.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client, topic)
	a.onClose(func() {
		pub.Stop()
		if err := client.Close(); err != nil {
			a.logger.Warn("close pubsub client", zap.Error(err))
		}
	})
	a.publisher = pub
	return nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Crawler returns the About-Us crawl orchestrator.
func (a *App) Crawler() analysis.Crawler {
	return a.crawler
}

// Ranker returns the document ranking stages.
func (a *App) Ranker() analysis.Ranker {
	return a.ranker
}

// Text returns the text pipeline.
func (a *App) Text() analysis.TextProcessor {
	return a.text
}

// Evaluator returns the process-wide evaluation totals.
func (a *App) Evaluator() *nace.Evaluator {
	return a.evaluator
}

// IDGen returns the run ID generator.
func (a *App) IDGen() crawler.IDGenerator {
	return a.idGen
}

// Clock returns the wall clock.
func (a *App) Clock() crawler.Clock {
	return a.clock
}

// NewAnalyzer builds a partner analyzer. skipCrawl restricts it to cached crawls.
func (a *App) NewAnalyzer(skipCrawl bool) *analysis.Analyzer {
	return analysis.New(analysis.Deps{
		Crawler:   a.crawler,
		Cache:     a.cache,
		Ranker:    a.ranker,
		Text:      a.text,
		Predictor: a.classifier,
		Evaluator: a.evaluator,
		Clock:     a.clock,
	}, analysis.Config{
		MaxCodes:       a.cfg.Nace.MaxCodes,
		ScoreThreshold: a.cfg.Nace.ScoreThreshold,
		SkipCrawl:      skipCrawl,
	}, a.logger.Named("analysis"))
}

// NewDispatcher builds batch.concurrency workers over queue.
func (a *App) NewDispatcher(queue crawler.Queue, analyzer worker.Analyzer, sink crawler.ErrorSink) *dispatcher.Dispatcher {
	cfg := worker.Config{
		Topic:          a.cfg.PubSub.TopicName,
		MaxAttempts:    a.cfg.Batch.MaxAttempts,
		PartnerTimeout: a.cfg.PartnerTimeout(),
	}
	var results crawler.ResultStore
	if a.results != nil {
		results = a.results
	}
	workers := make([]*worker.Worker, 0, a.cfg.Batch.Concurrency)
	for i := 0; i < a.cfg.Batch.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			analyzer,
			results,
			a.publisher,
			sink,
			cfg,
			a.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	return dispatcher.New(queue, workers)
}

// Ready reports whether downstream dependencies are reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.results == nil {
		return nil
	}
	return a.results.Ping(ctx)
}

// Close releases services in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
