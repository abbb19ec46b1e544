package dispatch

import (
	"context"
	"fmt"
	"sync"

	"email-marketing-backend/internal/config"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/mailer"
	"email-marketing-backend/internal/repository"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const memoryQueueSize = 1024

// Runtime owns the queue selected by QUEUE_BACKEND and the workers consuming it
type Runtime struct {
	Queue     Queue
	Pool      *WorkerPool
	campaigns repository.CampaignRepositoryInterface
	locker    Locker
	sweeper   *Sweeper
	client    *redis.Client
	stopSweep context.CancelFunc
	wg        sync.WaitGroup
}

// NewRuntime builds the queue, locker, dispatcher and worker pool for cfg.
// The redis backend shares its queue and locks with every other process.
func NewRuntime(ctx context.Context, cfg *config.Config, db *gorm.DB, transport mailer.Transport, metrics *Metrics) (*Runtime, error) {
	rt := &Runtime{campaigns: repository.NewCampaignRepository(db)}

	switch cfg.QueueBackend {
	case "memory", "":
		rt.Queue = NewMemoryQueue(memoryQueueSize)
		rt.locker = NewLocalLocker()
	case "redis":
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.client = client
		rt.Queue = NewRedisQueue(client, cfg.DispatchQueue)
		rt.locker = NewRedisLocker(client)
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.QueueBackend)
	}

	dispatcher := NewDispatcher(Dependencies{
		Campaigns: rt.campaigns,
		Templates: repository.NewTemplateRepository(db),
		Contacts:  repository.NewContactRepository(db),
		Sends:     repository.NewEmailSendRepository(db),
		Transport: transport,
		Locker:    rt.locker,
		LockTTL:   cfg.DispatchLockTTL,
		Metrics:   metrics,
	})
	rt.Pool = NewWorkerPool(rt.Queue, dispatcher, cfg.DispatchWorkers)
	rt.sweeper = NewSweeper(rt.campaigns, rt.Queue, rt.locker, cfg.DispatchSweepInterval)
	return rt, nil
}

// Start re-enqueues campaigns left in sending, launches the workers and
// keeps sweeping for campaigns stranded by dead workers
func (r *Runtime) Start(ctx context.Context) error {
	if _, err := Recover(ctx, r.campaigns, r.Queue, r.locker); err != nil {
		return err
	}
	r.Pool.Start(ctx)

	sweepCtx, stop := context.WithCancel(ctx)
	r.stopSweep = stop
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sweeper.Run(sweepCtx)
	}()
	return nil
}

// Close stops the queue, waits for the workers to return and only then
// releases the Redis connection, so in-flight runs can still record results
// and release their campaign locks. Cancel the context given to Start first
// to interrupt running jobs instead of letting them finish.
func (r *Runtime) Close() error {
	if r.stopSweep != nil {
		r.stopSweep()
	}
	r.wg.Wait()
	err := r.Queue.Close()
	r.Pool.Wait()
	if r.client != nil {
		if cerr := r.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close dispatch runtime: %w", err)
	}
	logger.New().Debug("Dispatch runtime stopped")
	return nil
}
