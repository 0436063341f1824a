// Package crawler defines the About-Us crawl domain types, the collaborator
// interfaces, and the orchestrator that fetches a base page plus its
// keyword-selected sub-pages in parallel.
package crawler
