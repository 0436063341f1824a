// Package cmd defines and implements the CLI commands for the nacecrawler executable.
//
// Architecture overview:
//   - Crawl: crawler.Orchestrator fetches the base page through fetcher.Chain (Colly first, then a
//     rate-limited Chromedp render when the direct fetch fails), lets selector.Selector pick up to three
//     About-Us candidates by keyword tier, and fetches them in parallel under a crawl deadline. Failures
//     never abort a crawl; they land in an errtrack.Tracker.
//   - Text: docrank orders documents, textproc turns each into cleaned paragraphs (split, short-removal,
//     keyword filter, dedupe) according to the configured stage order.
//   - Prediction: classifier.Client posts every paragraph to the NACE classifier service; nace.BestCodes
//     aggregates the predictions and nace.Evaluator scores them against the Dun & Bradstreet codes.
//   - Batch: 'analyze' loads partners, fans them out over a bounded in-memory queue to batch.concurrency
//     workers, caches crawls as NDJSON in the configured BlobStore (memory/local/GCS), optionally upserts
//     results to Postgres and publishes a Pub/Sub notification per partner.
//   - Serve: the chi-based API exposes health, metrics, crawl, codes, evaluate, and partner submission.
//
// Quick checklist:
//   - Configure via YAML (--config) or NACE_* env vars, e.g. NACE_CLASSIFIER_URL, NACE_STORAGE_BACKEND,
//     NACE_DB_DSN, NACE_PUBSUB_PROJECT_ID, NACE_HEADLESS_ENABLED.
//   - Run a batch: nacecrawler analyze --partners partners.json --out data/output
//   - Serve: nacecrawler serve (listens on PORT when set), shuts down cleanly on SIGTERM.
package cmd
