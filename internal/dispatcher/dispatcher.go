// Package dispatcher manages worker fan-out over the partner queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/partner"
	"github.com/JakeFAU/nace-crawler/internal/worker"
)

// Closer is implemented by queues that can stop accepting work.
type Closer interface {
	Close()
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue crawler.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until every worker returned, which happens when the
// context finishes or the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// RunBatch feeds partners to the workers, closes the queue when every partner was enqueued,
// and returns once the workers drained it. The queue must implement Closer.
func (d *Dispatcher) RunBatch(ctx context.Context, runID string, partners []*partner.BusinessPartner) error {
	closer, ok := d.queue.(Closer)
	if !ok {
		return fmt.Errorf("queue %T cannot be closed", d.queue)
	}
	errCh := make(chan error, 1)
	go func() {
		defer closer.Close()
		for i, p := range partners {
			if err := d.Enqueue(ctx, crawler.QueueItem{RunID: runID, Index: i, Partner: p}); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- nil
	}()
	d.Run(ctx)
	return <-errCh
}
