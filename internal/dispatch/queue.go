// Package dispatch runs campaign sends outside the request path.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by a queue that no longer accepts or yields jobs
var ErrQueueClosed = errors.New("dispatch queue closed")

// Job asks a worker to run one send cycle of one campaign
type Job struct {
	ID         string    `json:"job_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	Cycle      int       `json:"cycle"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJob creates a job for cycle of campaignID with a fresh id
func NewJob(campaignID uuid.UUID, cycle int) Job {
	return Job{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		Cycle:      cycle,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue carries jobs from the API to workers. Delivery is at-least-once.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available, ctx is done or the queue is closed
	Dequeue(ctx context.Context) (Job, error)
	Close() error
}

// MemoryQueue is an in-process queue for single-binary deployments and tests
type MemoryQueue struct {
	jobs   chan Job
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewMemoryQueue creates a queue buffering up to size jobs
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{jobs: make(chan Job, size), done: make(chan struct{})}
}

// Enqueue adds job, blocking while the buffer is full
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

// Dequeue returns the next job
func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-q.done:
		return Job{}, ErrQueueClosed
	}
}

// Len returns the number of buffered jobs
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// Close stops the queue. Buffered jobs are dropped; campaigns left in sending
// are picked up again by Recover on the next start.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
