// Package enrich runs the background content-enrichment jobs: one task per
// node, dispatched once at creation, moving the node through
// pending -> processing -> completed | failed.
package enrich

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Task binds one enrichment attempt to one typed node. Kind is the node
// type tag; it selects the registered handler.
type Task struct {
	Kind   string
	NodeID string
}

// Handler performs the enrichment for one node. Errors are handled inside
// the handler by patching the node to failed; a handler never returns one.
type Handler func(ctx context.Context, nodeID string)

// Queue is a buffered channel drained by a fixed worker pool. Each task is
// delivered to at most one worker, exactly once; there is no retry and no
// per-task timeout.
type Queue struct {
	tasks    chan Task
	handlers map[string]Handler
	wg       sync.WaitGroup
	workers  int

	mu      sync.Mutex
	stopped bool
}

func NewQueue(workers, buffer int) *Queue {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Queue{
		tasks:    make(chan Task, buffer),
		handlers: make(map[string]Handler),
		workers:  workers,
	}
}

// Register binds a handler to a task kind. Must be called before Start.
func (q *Queue) Register(kind string, handler Handler) {
	q.handlers[kind] = handler
}

// Start launches the worker pool. ctx cancellation stops workers after the
// task they are currently running.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker(ctx)
	}
}

func (q *Queue) runWorker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.dispatch(ctx, task)
		}
	}
}

func (q *Queue) dispatch(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("enrich: panic in %s job for node %s: %v", task.Kind, task.NodeID, r)
		}
	}()

	handler, ok := q.handlers[task.Kind]
	if !ok {
		log.Printf("enrich: no handler registered for kind %q (node %s)", task.Kind, task.NodeID)
		return
	}
	handler(ctx, task.NodeID)
}

// Enqueue submits a task. Returns an error when the queue is stopping or
// the buffer is full; callers treat a full buffer as backpressure, not as a
// reason to retry.
func (q *Queue) Enqueue(task Task) error {
	// The send happens under the same lock Stop closes the channel under,
	// so a racing Enqueue can never hit a closed channel.
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return fmt.Errorf("enqueue %s: queue stopped", task.Kind)
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("enqueue %s: queue full", task.Kind)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish. Safe to call
// more than once.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.tasks)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
