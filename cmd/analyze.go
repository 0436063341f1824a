package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/errtrack"
	"github.com/JakeFAU/nace-crawler/internal/partner"
	queueMemory "github.com/JakeFAU/nace-crawler/internal/queue/memory"
)

type analyzeOptions struct {
	partnersFile string
	dunsFile     string
	outDir       string
	limit        int
	skipCrawl    bool
}

// newAnalyzeCmd creates the 'analyze' subcommand, the batch pipeline over a partner file.
func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Predicts and scores NACE codes for a file of business partners",
		Long: `Loads business partners from a JSON file, crawls each partner's website (or reuses
the cached crawl with --skip-crawl), predicts NACE codes, and scores them against the
Dun & Bradstreet codes on record. The analyzed partners are written to
<out>/partners-<timestamp>.json, crawl failures to <out>/error.log, and the evaluation
totals to stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyzeCommand(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.partnersFile, "partners", "", "JSON file of business partners")
	cmd.Flags().StringVar(&opts.dunsFile, "duns", "", "optional Dun & Bradstreet export with validation codes")
	cmd.Flags().StringVar(&opts.outDir, "out", "data/output", "directory for analyzed partners and the error log")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "analyze at most this many partners (0 = all)")
	cmd.Flags().BoolVar(&opts.skipCrawl, "skip-crawl", false, "only use cached crawls")
	_ = cmd.MarkFlagRequired("partners")
	return cmd
}

func runAnalyzeCommand(cmd *cobra.Command, opts analyzeOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	partners, err := partner.LoadFile(opts.partnersFile, opts.limit)
	if err != nil {
		return err
	}
	if opts.dunsFile != "" {
		if err := applyDuns(opts.dunsFile, partners, logger); err != nil {
			return err
		}
	}

	cfg := appInstance.Config()
	tracker := errtrack.New()
	queue := queueMemory.NewQueue(cfg.Batch.QueueDepth)
	dispatch := appInstance.NewDispatcher(queue, appInstance.NewAnalyzer(opts.skipCrawl), tracker)

	runID, err := appInstance.IDGen().NewID()
	if err != nil {
		return err
	}
	logger.Info("analysis started",
		zap.String("run_id", runID),
		zap.Int("partners", len(partners)),
		zap.Bool("skip_crawl", opts.skipCrawl),
	)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// An interrupted batch still writes what it analyzed so far.
	if err := dispatch.RunBatch(ctx, runID, partners); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run batch: %w", err)
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeErrorLog(filepath.Join(opts.outDir, "error.log"), tracker); err != nil {
		return err
	}
	path, err := partner.SaveFile(opts.outDir, partners, appInstance.Clock().Now())
	if err != nil {
		return err
	}
	logger.Info("analysis finished",
		zap.String("run_id", runID),
		zap.String("output", path),
		zap.Int("errors", tracker.Len()),
	)
	return appInstance.Evaluator().Print(cmd.OutOrStdout())
}

func applyDuns(path string, partners []*partner.BusinessPartner, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open duns file: %w", err)
	}
	defer func() { _ = f.Close() }()
	codes, err := partner.LoadDunsCodes(f)
	if err != nil {
		return err
	}
	n := partner.ApplyDunsCodes(partners, codes)
	logger.Info("applied duns codes", zap.Int("partners", n), zap.Int("rows", len(codes)))
	return nil
}

func writeErrorLog(path string, tracker *errtrack.Tracker) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create error log: %w", err)
	}
	if err := tracker.WriteReport(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close error log: %w", err)
	}
	return nil
}
