package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"email-marketing-backend/internal/database/models"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/repository"
)

const (
	dequeueRetryDelay    = time.Second
	defaultSweepInterval = time.Minute
)

// WorkerPool consumes a queue with a fixed number of goroutines. Each job is
// run by exactly one goroutine, so recipients of a campaign are sent in order
// while different campaigns proceed in parallel.
type WorkerPool struct {
	queue   Queue
	runner  Runner
	workers int
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queue Queue, runner Runner, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{queue: queue, runner: runner, workers: workers}
}

// Start launches the workers. They stop when ctx is done or the queue is closed.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
}

// Wait blocks until every worker has stopped
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) work(ctx context.Context, id int) {
	defer p.wg.Done()
	log := logger.WithContext(ctx).WithField("worker", id)
	log.Debug("Dispatch worker started")

	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				log.Debug("Dispatch worker stopped")
				return
			}
			log.WithError(err).Error("Failed to dequeue dispatch job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueRetryDelay):
			}
			continue
		}
		p.runJob(ctx, log, job)
	}
}

func (p *WorkerPool) runJob(ctx context.Context, log *logger.Logger, job Job) {
	jobLog := log.WithFields(map[string]interface{}{
		"job_id":      job.ID,
		"campaign_id": job.CampaignID.String(),
		"cycle":       job.Cycle,
	})
	defer func() {
		if r := recover(); r != nil {
			jobLog.Errorf("Dispatch job panicked: %v", r)
		}
	}()

	if _, err := p.runner.Run(ctx, job); err != nil {
		jobLog.WithError(err).Error("Dispatch job failed, campaign left in sending")
	}
}

// Recover enqueues a job for every campaign left in sending, e.g. by a worker
// that stopped mid-run. Campaigns whose dispatch lock is still held are left
// to their owner; already-attempted recipients are skipped on resume.
func Recover(ctx context.Context, campaigns repository.CampaignRepositoryInterface, queue Queue, locker Locker) (int, error) {
	stuck, err := campaigns.GetByStatus(ctx, models.CampaignStatusSending)
	if err != nil {
		return 0, fmt.Errorf("list sending campaigns: %w", err)
	}
	enqueued := 0
	for _, c := range stuck {
		if locker != nil {
			held, err := locker.Held(ctx, LockKey(c.ID))
			if err != nil {
				return enqueued, fmt.Errorf("check campaign lock %s: %w", c.ID, err)
			}
			if held {
				continue
			}
		}
		if err := queue.Enqueue(ctx, NewJob(c.ID, c.SendCycle)); err != nil {
			return enqueued, fmt.Errorf("re-enqueue campaign %s: %w", c.ID, err)
		}
		enqueued++
	}
	if enqueued > 0 {
		logger.WithContext(ctx).WithField("campaigns", enqueued).Info("Re-enqueued campaigns left in sending")
	}
	return enqueued, nil
}

// Sweeper periodically re-enqueues campaigns stuck in sending, such as those
// whose worker died holding the lock or whose job was skipped as locked
type Sweeper struct {
	campaigns repository.CampaignRepositoryInterface
	queue     Queue
	locker    Locker
	interval  time.Duration
}

// NewSweeper creates a sweeper running every interval
func NewSweeper(campaigns repository.CampaignRepositoryInterface, queue Queue, locker Locker, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{campaigns: campaigns, queue: queue, locker: locker, interval: interval}
}

// Run sweeps until ctx is done or the queue is closed
func (s *Sweeper) Run(ctx context.Context) {
	log := logger.WithContext(ctx).WithField("interval", s.interval.String())
	log.Debug("Dispatch sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Dispatch sweeper stopped")
			return
		case <-ticker.C:
			if _, err := Recover(ctx, s.campaigns, s.queue, s.locker); err != nil {
				if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
					log.Debug("Dispatch sweeper stopped")
					return
				}
				log.WithError(err).Error("Dispatch sweep failed")
			}
		}
	}
}
