package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"email-marketing-backend/internal/config"
	"email-marketing-backend/internal/database/models"
	"email-marketing-backend/internal/mailer"
	"email-marketing-backend/internal/repository"
	"email-marketing-backend/internal/testutils"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// countingTransport counts deliveries per recipient
type countingTransport struct {
	mu     sync.Mutex
	counts map[string]int
	onSend func(to string)
}

func newCountingTransport() *countingTransport {
	return &countingTransport{counts: map[string]int{}}
}

func (c *countingTransport) Send(_ context.Context, msg mailer.Message) error {
	c.mu.Lock()
	c.counts[msg.To]++
	onSend := c.onSend
	c.mu.Unlock()
	if onSend != nil {
		onSend(msg.To)
	}
	return nil
}

func (c *countingTransport) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// seedSendingCampaign stores a custom-audience campaign already in sending cycle 1
func seedSendingCampaign(t *testing.T, db *gorm.DB, recipients ...string) *models.Campaign {
	t.Helper()
	ctx := context.Background()
	factories := testutils.NewFactorySet()
	org := factories.Organization.Create()
	require.NoError(t, repository.NewOrganizationRepository(db).Create(ctx, org))
	tmpl := factories.Template.Create(org.ID)
	require.NoError(t, repository.NewTemplateRepository(db).Create(ctx, tmpl))
	campaign := factories.Campaign.WithRecipients(org.ID, tmpl.ID, recipients...)
	campaign.Status = models.CampaignStatusSending
	campaign.SendCycle = 1
	require.NoError(t, repository.NewCampaignRepository(db).Create(ctx, campaign))
	return campaign
}

func redisConfig(mr *miniredis.Miniredis) *config.Config {
	return &config.Config{
		QueueBackend:          "redis",
		RedisURL:              "redis://" + mr.Addr() + "/0",
		DispatchQueue:         "campaigns:dispatch",
		DispatchWorkers:       2,
		DispatchSweepInterval: 20 * time.Millisecond,
	}
}

func TestRuntimeRecoversStuckCampaigns(t *testing.T) {
	db := testutils.NewSQLiteDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	campaigns := repository.NewCampaignRepository(db)
	campaign := seedSendingCampaign(t, db, "a@example.com", "b@example.com")

	var delivered int
	transport := mailer.TransportFunc(func(context.Context, mailer.Message) error {
		delivered++
		return nil
	})
	cfg := &config.Config{QueueBackend: "memory", DispatchWorkers: 1, DispatchLockTTL: time.Minute}
	rt, err := NewRuntime(ctx, cfg, db, transport, NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, rt.Start(ctx))

	assert.Eventually(t, func() bool {
		got, err := campaigns.Get(ctx, campaign.ID)
		return err == nil && got.Status == models.CampaignStatusSent
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, rt.Close())
	assert.Equal(t, 2, delivered)
}

func TestRuntimeRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		QueueBackend:    "redis",
		RedisURL:        "redis://" + mr.Addr() + "/0",
		DispatchQueue:   "campaigns:dispatch",
		DispatchWorkers: 2,
	}

	rt, err := NewRuntime(context.Background(), cfg, testutils.NewSQLiteDB(t), mailer.NewLogTransport("a@example.com"), nil)
	require.NoError(t, err)
	assert.IsType(t, &RedisQueue{}, rt.Queue)

	require.NoError(t, rt.Queue.Enqueue(context.Background(), NewJob(uuid.New(), 1)))
	n, err := rt.Queue.(*RedisQueue).Len(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.NoError(t, rt.Close())
}

func TestRuntimeRejectsUnknownBackend(t *testing.T) {
	_, err := NewRuntime(context.Background(), &config.Config{QueueBackend: "kafka"}, testutils.NewSQLiteDB(t), nil, nil)
	assert.Error(t, err)

	_, err = NewRuntime(context.Background(), &config.Config{QueueBackend: "redis", RedisURL: "not-a-url"}, testutils.NewSQLiteDB(t), nil, nil)
	assert.Error(t, err)
}

func TestRuntimeRedisRestartResumesCampaign(t *testing.T) {
	mr := miniredis.RunT(t)
	db := testutils.NewSQLiteDB(t)
	campaigns := repository.NewCampaignRepository(db)
	campaign := seedSendingCampaign(t, db, "a@example.com", "b@example.com")
	transport := newCountingTransport()

	// first worker is shut down while delivering to a
	firstCtx, shutdown := context.WithCancel(context.Background())
	defer shutdown()
	transport.onSend = func(string) { shutdown() }
	first, err := NewRuntime(firstCtx, redisConfig(mr), db, transport, NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, first.Start(firstCtx))

	assert.Eventually(t, func() bool { return transport.snapshot()["a@example.com"] == 1 }, 5*time.Second, 10*time.Millisecond)
	<-firstCtx.Done()
	require.NoError(t, first.Close())
	assert.False(t, mr.Exists(LockKey(campaign.ID)), "shutdown must release the campaign lock")

	// a restarted worker picks the campaign up at once and sends only to b
	transport.mu.Lock()
	transport.onSend = nil
	transport.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	second, err := NewRuntime(ctx, redisConfig(mr), db, transport, NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, second.Start(ctx))

	assert.Eventually(t, func() bool {
		got, err := campaigns.Get(ctx, campaign.ID)
		return err == nil && got.Status == models.CampaignStatusSent
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, second.Close())
	assert.Equal(t, map[string]int{"a@example.com": 1, "b@example.com": 1}, transport.snapshot())
}

func TestRuntimeSweepsCampaignOfCrashedWorker(t *testing.T) {
	mr := miniredis.RunT(t)
	db := testutils.NewSQLiteDB(t)
	campaigns := repository.NewCampaignRepository(db)
	campaign := seedSendingCampaign(t, db, "a@example.com")

	// a crashed worker left its lock behind
	require.NoError(t, mr.Set(LockKey(campaign.ID), "crashed-worker"))
	mr.SetTTL(LockKey(campaign.ID), 10*time.Minute)

	transport := newCountingTransport()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := NewRuntime(ctx, redisConfig(mr), db, transport, NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, rt.Start(ctx))

	time.Sleep(100 * time.Millisecond)
	got, err := campaigns.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusSending, got.Status)
	assert.Empty(t, transport.snapshot())

	mr.FastForward(11 * time.Minute)

	assert.Eventually(t, func() bool {
		got, err := campaigns.Get(ctx, campaign.ID)
		return err == nil && got.Status == models.CampaignStatusSent
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, rt.Close())
	assert.Equal(t, map[string]int{"a@example.com": 1}, transport.snapshot())
}

func TestRuntimeCloseWithoutStart(t *testing.T) {
	mr := miniredis.RunT(t)
	rt, err := NewRuntime(context.Background(), redisConfig(mr), testutils.NewSQLiteDB(t), mailer.NewLogTransport("a@example.com"), nil)
	require.NoError(t, err)
	require.NoError(t, rt.Close())
}
