package crawler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/JakeFAU/nace-crawler/internal/document"
	"github.com/JakeFAU/nace-crawler/internal/errtrack"
)

// Fetcher retrieves and parses a single page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*document.Document, error)
}

// PageFetcher resolves a URL to a document, reporting failures to sink instead of returning them.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string, sink ErrorSink) FetchResult
}

// LinkSelector picks the candidate sub-pages of a base document.
type LinkSelector interface {
	Select(doc *document.Document) []CandidateLink
}

// ErrorSink receives per-URL fetch failures.
type ErrorSink interface {
	Add(rec errtrack.Record)
}

// ErrObjectNotFound is returned by BlobStore.GetObject for a path that was never written.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore writes and reads raw artifacts by path.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ResultStore persists one row per analyzed partner.
type ResultStore interface {
	SaveResult(ctx context.Context, rec AnalysisRecord) error
}

// ErrQueueClosed is returned by Queue.Dequeue once a closed queue is drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue provides enqueue/dequeue semantics for partner analysis work.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests used for blob naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
