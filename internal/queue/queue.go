// Package queue carries accepted run requests from the API to the runner.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ignacioe7/reviewcrawler/internal/crawler"
)

// ErrClosed is returned by Dequeue after Close drains the queue.
var ErrClosed = errors.New("queue closed")

// ErrFull is returned by TryEnqueue when the queue is at capacity.
var ErrFull = errors.New("queue full")

// Queue is a bounded in-memory run queue with context-aware operations.
type Queue struct {
	ch      chan crawler.RunRequest
	closeMu sync.Mutex
	closed  bool
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan crawler.RunRequest, capacity)}
}

// Enqueue pushes a request, blocking until there is room or ctx ends.
func (q *Queue) Enqueue(ctx context.Context, req crawler.RunRequest) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- req:
		return nil
	}
}

// TryEnqueue pushes a request without blocking. The API uses this so a full
// queue turns into an immediate 503 instead of a hung request.
func (q *Queue) TryEnqueue(req crawler.RunRequest) error {
	select {
	case q.ch <- req:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue pops the next request, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (crawler.RunRequest, error) {
	select {
	case <-ctx.Done():
		return crawler.RunRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case req, ok := <-q.ch:
		if !ok {
			return crawler.RunRequest{}, ErrClosed
		}
		return req, nil
	}
}

// Close closes the underlying channel for shutdown. Pending requests remain
// dequeueable until drained.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
