package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"email-marketing-backend/internal/database/models"
	"email-marketing-backend/internal/repository"
	"email-marketing-backend/internal/testutils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu    sync.Mutex
	jobs  []Job
	panic map[uuid.UUID]bool
}

func (r *recordingRunner) Run(_ context.Context, job Job) (*Result, error) {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	if r.panic[job.CampaignID] {
		panic("boom")
	}
	return &Result{Job: job, Outcome: string(models.CampaignStatusSent)}, nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func TestWorkerPoolProcessesJobs(t *testing.T) {
	queue := NewMemoryQueue(8)
	bad := uuid.New()
	runner := &recordingRunner{panic: map[uuid.UUID]bool{bad: true}}
	pool := NewWorkerPool(queue, runner, 2)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	require.NoError(t, queue.Enqueue(ctx, NewJob(bad, 1)))
	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Enqueue(ctx, NewJob(uuid.New(), 1)))
	}

	assert.Eventually(t, func() bool { return runner.count() == 4 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Wait()
}

func TestWorkerPoolStopsOnClose(t *testing.T) {
	queue := NewMemoryQueue(1)
	pool := NewWorkerPool(queue, &recordingRunner{}, 0)
	pool.Start(context.Background())

	require.NoError(t, queue.Close())

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after queue close")
	}
}

func TestRecoverRequeuesSendingCampaigns(t *testing.T) {
	ctx := context.Background()
	db := testutils.NewSQLiteDB(t)
	factories := testutils.NewFactorySet()
	orgs := repository.NewOrganizationRepository(db)
	templates := repository.NewTemplateRepository(db)
	campaigns := repository.NewCampaignRepository(db)

	org := factories.Organization.Create()
	require.NoError(t, orgs.Create(ctx, org))
	tmpl := factories.Template.Create(org.ID)
	require.NoError(t, templates.Create(ctx, tmpl))

	stuck := factories.Campaign.Create(org.ID, tmpl.ID)
	require.NoError(t, campaigns.Create(ctx, stuck))
	ok, err := campaigns.BeginSend(ctx, org.ID, stuck.ID, 0)
	require.NoError(t, err)
	require.True(t, ok)

	draft := factories.Campaign.Create(org.ID, tmpl.ID)
	require.NoError(t, campaigns.Create(ctx, draft))

	queue := NewMemoryQueue(4)
	n, err := Recover(ctx, campaigns, queue, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, stuck.ID, job.CampaignID)
	assert.Equal(t, 1, job.Cycle)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 0, queue.Len())
}

func sendingCampaign(t *testing.T, ctx context.Context, campaigns *repository.CampaignRepository, orgs *repository.OrganizationRepository, templates *repository.TemplateRepository) *models.Campaign {
	t.Helper()
	factories := testutils.NewFactorySet()
	org := factories.Organization.Create()
	require.NoError(t, orgs.Create(ctx, org))
	tmpl := factories.Template.Create(org.ID)
	require.NoError(t, templates.Create(ctx, tmpl))
	campaign := factories.Campaign.Create(org.ID, tmpl.ID)
	require.NoError(t, campaigns.Create(ctx, campaign))
	ok, err := campaigns.BeginSend(ctx, org.ID, campaign.ID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	return campaign
}

func TestRecoverSkipsLockedCampaigns(t *testing.T) {
	ctx := context.Background()
	db := testutils.NewSQLiteDB(t)
	campaigns := repository.NewCampaignRepository(db)
	campaign := sendingCampaign(t, ctx, campaigns, repository.NewOrganizationRepository(db), repository.NewTemplateRepository(db))

	locker := NewLocalLocker()
	lease, ok, err := locker.TryLock(ctx, LockKey(campaign.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	queue := NewMemoryQueue(4)
	n, err := Recover(ctx, campaigns, queue, locker)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, lease.Release(ctx))
	n, err = Recover(ctx, campaigns, queue, locker)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweeperRequeuesAfterLockExpires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db := testutils.NewSQLiteDB(t)
	campaigns := repository.NewCampaignRepository(db)
	campaign := sendingCampaign(t, ctx, campaigns, repository.NewOrganizationRepository(db), repository.NewTemplateRepository(db))

	// a worker died holding the lock
	locker := NewLocalLocker()
	_, ok, err := locker.TryLock(ctx, LockKey(campaign.ID), 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	queue := NewMemoryQueue(64)
	done := make(chan struct{})
	go func() {
		NewSweeper(campaigns, queue, locker, 20*time.Millisecond).Run(ctx)
		close(done)
	}()

	waitCtx, stopWaiting := context.WithTimeout(ctx, 2*time.Second)
	defer stopWaiting()
	job, err := queue.Dequeue(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, job.CampaignID)
	held, _ := locker.Held(ctx, LockKey(campaign.ID))
	assert.False(t, held)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
