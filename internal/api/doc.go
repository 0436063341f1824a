// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawl to crawl one site and return its processed paragraphs.
//   - POST /v1/codes and /v1/evaluate to aggregate and score predictions.
//   - POST /v1/partners to queue a business partner for background analysis.
package api
