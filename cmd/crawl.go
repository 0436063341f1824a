package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/errtrack"
)

type crawledDocument struct {
	URL        string   `json:"url"`
	Paragraphs []string `json:"paragraphs"`
}

type crawlOutput struct {
	URL          string                  `json:"url"`
	Links        []crawler.CandidateLink `json:"links"`
	Documents    []crawledDocument       `json:"documents"`
	ErrorSummary map[string]int          `json:"error_summary"`
}

// newCrawlCmd creates the 'crawl' subcommand, which crawls one site and prints the cleaned
// paragraphs of every document as JSON.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawls one site's About-Us pages and prints their text",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	tracker := errtrack.New()
	res := appInstance.Crawler().Crawl(cmd.Context(), args[0], tracker)
	if res.Empty() {
		logger.Warn("crawl returned no documents", zap.String("url", args[0]), zap.Int("errors", tracker.Len()))
	}
	docs := appInstance.Ranker().Rank(res.Documents)

	out := crawlOutput{
		URL:          args[0],
		Links:        res.Links,
		Documents:    make([]crawledDocument, 0, len(docs)),
		ErrorSummary: tracker.Summary(),
	}
	for _, doc := range docs {
		paragraphs, err := appInstance.Text().Process(doc)
		if err != nil {
			return fmt.Errorf("process %s: %w", doc.BaseURI(), err)
		}
		out.Documents = append(out.Documents, crawledDocument{URL: doc.BaseURI(), Paragraphs: paragraphs})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write crawl output: %w", err)
	}
	return nil
}
