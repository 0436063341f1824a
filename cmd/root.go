package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/analysis"
	"github.com/JakeFAU/nace-crawler/internal/app"
	"github.com/JakeFAU/nace-crawler/internal/config"
	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/dispatcher"
	"github.com/JakeFAU/nace-crawler/internal/logging"
	"github.com/JakeFAU/nace-crawler/internal/nace"
	"github.com/JakeFAU/nace-crawler/internal/worker"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the services commands use. Tests inject their own.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Crawler() analysis.Crawler
	Ranker() analysis.Ranker
	Text() analysis.TextProcessor
	Evaluator() *nace.Evaluator
	IDGen() crawler.IDGenerator
	Clock() crawler.Clock
	NewAnalyzer(skipCrawl bool) *analysis.Analyzer
	NewDispatcher(queue crawler.Queue, analyzer worker.Analyzer, sink crawler.ErrorSink) *dispatcher.Dispatcher
	Ready(ctx context.Context) error
}

// newApp is the application factory, replaced in tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "nacecrawler",
		Short: "Crawls company About-Us pages and predicts NACE industry codes.",
		Long: `nacecrawler fetches a company's home page and its most likely About-Us pages,
cleans the paragraph text, sends it to the NACE classifier, and scores the
predicted codes against the Dun & Bradstreet codes on record.`,
		SilenceUsage: true,

		// Builds the application once flags are parsed and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			appInstance, ok := cmd.Context().Value(appKey).(App)
			if !ok || appInstance == nil {
				return
			}
			logger := appInstance.Logger()
			appInstance.Close()
			_ = logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); NACE_* environment variables override it")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
