package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"email-marketing-backend/internal/database/models"
	"email-marketing-backend/internal/mailer"
	"email-marketing-backend/internal/repository"
	"email-marketing-backend/internal/testutils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// fakeTransport records messages and fails or panics for selected recipients
type fakeTransport struct {
	mu       sync.Mutex
	sent     []mailer.Message
	failFor  map[string]error
	panicFor map[string]bool
	onSend   func(msg mailer.Message)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failFor: map[string]error{}, panicFor: map[string]bool{}}
}

func (f *fakeTransport) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend(msg)
	}
	if f.panicFor[msg.To] {
		panic("smtp connection reset")
	}
	return f.failFor[msg.To]
}

func (f *fakeTransport) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

// missingTemplates reports every template as deleted
type missingTemplates struct {
	repository.TemplateRepositoryInterface
}

func (missingTemplates) GetByID(context.Context, uuid.UUID, uuid.UUID) (*models.EmailTemplate, error) {
	return nil, gorm.ErrRecordNotFound
}

// DispatcherTestSuite runs the dispatcher against SQLite backed repositories
type DispatcherTestSuite struct {
	suite.Suite
	ctx       context.Context
	db        *gorm.DB
	factories *testutils.FactorySet

	orgs      *repository.OrganizationRepository
	contacts  *repository.ContactRepository
	templates *repository.TemplateRepository
	campaigns *repository.CampaignRepository
	sends     *repository.EmailSendRepository

	transport  *fakeTransport
	metrics    *Metrics
	dispatcher *Dispatcher

	org      *models.Organization
	template *models.EmailTemplate
}

// SetupTest runs before each test
func (suite *DispatcherTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = testutils.NewSQLiteDB(suite.T())
	suite.factories = testutils.NewFactorySet()

	suite.orgs = repository.NewOrganizationRepository(suite.db)
	suite.contacts = repository.NewContactRepository(suite.db)
	suite.templates = repository.NewTemplateRepository(suite.db)
	suite.campaigns = repository.NewCampaignRepository(suite.db)
	suite.sends = repository.NewEmailSendRepository(suite.db)

	suite.transport = newFakeTransport()
	suite.metrics = NewMetrics(prometheus.NewRegistry())
	suite.dispatcher = suite.newDispatcher(suite.templates)

	suite.org = suite.factories.Organization.Create()
	suite.Require().NoError(suite.orgs.Create(suite.ctx, suite.org))
	suite.template = suite.factories.Template.Create(suite.org.ID)
	suite.Require().NoError(suite.templates.Create(suite.ctx, suite.template))
}

func (suite *DispatcherTestSuite) newDispatcher(templates repository.TemplateRepositoryInterface) *Dispatcher {
	return NewDispatcher(Dependencies{
		Campaigns: suite.campaigns,
		Templates: templates,
		Contacts:  suite.contacts,
		Sends:     suite.sends,
		Transport: suite.transport,
		Metrics:   suite.metrics,
	})
}

func (suite *DispatcherTestSuite) addContacts(emails ...string) {
	for _, email := range emails {
		suite.Require().NoError(suite.contacts.Create(suite.ctx, suite.factories.Contact.WithEmail(suite.org.ID, email)))
	}
}

// startSend persists campaign and moves it into sending cycle 1
func (suite *DispatcherTestSuite) startSend(campaign *models.Campaign) Job {
	suite.Require().NoError(suite.campaigns.Create(suite.ctx, campaign))
	ok, err := suite.campaigns.BeginSend(suite.ctx, campaign.OrganizationID, campaign.ID, campaign.SendCycle)
	suite.Require().NoError(err)
	suite.Require().True(ok)
	return NewJob(campaign.ID, campaign.SendCycle+1)
}

func (suite *DispatcherTestSuite) reload(id uuid.UUID) *models.Campaign {
	c, err := suite.campaigns.Get(suite.ctx, id)
	suite.Require().NoError(err)
	return c
}

func (suite *DispatcherTestSuite) sendRows(campaignID uuid.UUID, cycle int) map[string]models.EmailSend {
	rows, err := suite.sends.GetByCycle(suite.ctx, campaignID, cycle)
	suite.Require().NoError(err)
	return rows
}

// TestRunSendsToAllContacts tests the happy path for an all-contacts audience
func (suite *DispatcherTestSuite) TestRunSendsToAllContacts() {
	suite.addContacts("a@example.com", "b@example.com")
	campaign := suite.factories.Campaign.Create(suite.org.ID, suite.template.ID)
	job := suite.startSend(campaign)

	result, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusSent, result.Status)
	suite.Equal(2, result.Recipients)
	suite.Equal(2, result.Sent)
	suite.ElementsMatch([]string{"a@example.com", "b@example.com"}, suite.transport.recipients())

	rows := suite.sendRows(campaign.ID, job.Cycle)
	suite.Len(rows, 2)
	for _, row := range rows {
		suite.Equal(models.SendStatusSent, row.Status)
		suite.Nil(row.Error)
		suite.Equal(suite.org.ID, row.OrganizationID)
	}

	updated := suite.reload(campaign.ID)
	suite.Equal(models.CampaignStatusSent, updated.Status)
	suite.Empty(updated.LastError)

	suite.Equal(float64(2), testutil.ToFloat64(suite.metrics.emails.WithLabelValues("sent")))
	suite.Equal(float64(1), testutil.ToFloat64(suite.metrics.runs.WithLabelValues("sent")))
}

// TestRunComposesBodyAndSubject tests message composition
func (suite *DispatcherTestSuite) TestRunComposesBodyAndSubject() {
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com")
	campaign.FromEmail = "news@example.com"
	campaign.ReplyTo = "reply@example.com"
	job := suite.startSend(campaign)

	_, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Require().Len(suite.transport.sent, 1)
	msg := suite.transport.sent[0]
	suite.Equal(suite.template.Subject, msg.Subject)
	suite.Equal("news@example.com", msg.From)
	suite.Equal("reply@example.com", msg.ReplyTo)
	suite.Equal(`<!doctype html><html><head><meta charset="utf-8"/><style>p{color:red}</style></head><body><p>Hello</p></body></html>`, msg.HTML)
}

// TestRunSubjectPrecedence tests campaign subject over template subject over name
func (suite *DispatcherTestSuite) TestRunSubjectPrecedence() {
	withSubject := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com")
	withSubject.Subject = "Spring sale"
	_, err := suite.dispatcher.Run(suite.ctx, suite.startSend(withSubject))
	suite.Require().NoError(err)

	bare := suite.factories.Template.Create(suite.org.ID)
	bare.Subject = ""
	suite.Require().NoError(suite.templates.Create(suite.ctx, bare))
	named := suite.factories.Campaign.WithRecipients(suite.org.ID, bare.ID, "b@example.com")
	_, err = suite.dispatcher.Run(suite.ctx, suite.startSend(named))
	suite.Require().NoError(err)

	suite.Require().Len(suite.transport.sent, 2)
	suite.Equal("Spring sale", suite.transport.sent[0].Subject)
	suite.Equal(named.Name, suite.transport.sent[1].Subject)
}

// TestRunPartialFailure tests that one failed recipient yields partial
func (suite *DispatcherTestSuite) TestRunPartialFailure() {
	suite.transport.failFor["b@example.com"] = errors.New("mailbox unavailable")
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com", "b@example.com")
	job := suite.startSend(campaign)

	result, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusPartial, result.Status)
	suite.Equal(1, result.Sent)
	suite.Equal(1, result.Failed)

	rows := suite.sendRows(campaign.ID, job.Cycle)
	suite.Equal(models.SendStatusSent, rows["a@example.com"].Status)
	suite.Equal(models.SendStatusFailed, rows["b@example.com"].Status)
	suite.Require().NotNil(rows["b@example.com"].Error)
	suite.Equal("mailbox unavailable", *rows["b@example.com"].Error)

	updated := suite.reload(campaign.ID)
	suite.Equal(models.CampaignStatusPartial, updated.Status)
	suite.Equal("1 of 2 deliveries failed", updated.LastError)
	suite.Equal(float64(1), testutil.ToFloat64(suite.metrics.emails.WithLabelValues("failed")))
}

// TestRunAllFailed tests that every failed recipient yields failed
func (suite *DispatcherTestSuite) TestRunAllFailed() {
	suite.transport.failFor["a@example.com"] = errors.New("relay denied")
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com")
	job := suite.startSend(campaign)

	result, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusFailed, result.Status)
	suite.Equal(models.CampaignStatusFailed, suite.reload(campaign.ID).Status)
}

// TestRunRecoversTransportPanic tests that a panicking send counts as a failure
func (suite *DispatcherTestSuite) TestRunRecoversTransportPanic() {
	suite.transport.panicFor["a@example.com"] = true
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com", "b@example.com")
	job := suite.startSend(campaign)

	result, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusPartial, result.Status)
	rows := suite.sendRows(campaign.ID, job.Cycle)
	suite.Equal(models.SendStatusFailed, rows["a@example.com"].Status)
	suite.Require().NotNil(rows["a@example.com"].Error)
	suite.Contains(*rows["a@example.com"].Error, "smtp connection reset")
	suite.Equal(models.SendStatusSent, rows["b@example.com"].Status)
}

// TestRunTemplateMissing tests that a vanished template fails the campaign
func (suite *DispatcherTestSuite) TestRunTemplateMissing() {
	suite.addContacts("a@example.com")
	campaign := suite.factories.Campaign.Create(suite.org.ID, suite.template.ID)
	job := suite.startSend(campaign)

	result, err := suite.newDispatcher(missingTemplates{}).Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusFailed, result.Status)
	suite.Empty(suite.transport.sent)
	suite.Empty(suite.sendRows(campaign.ID, job.Cycle))

	updated := suite.reload(campaign.ID)
	suite.Equal(models.CampaignStatusFailed, updated.Status)
	suite.Equal("Template not found", updated.LastError)
}

// TestRunEmptyAudience tests that an audience emptied after triggering fails the campaign
func (suite *DispatcherTestSuite) TestRunEmptyAudience() {
	campaign := suite.factories.Campaign.Create(suite.org.ID, suite.template.ID)
	job := suite.startSend(campaign)

	result, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusFailed, result.Status)
	suite.Equal(0, result.Recipients)
	suite.Empty(suite.transport.sent)
	suite.Equal("No recipients", suite.reload(campaign.ID).LastError)
}

// TestRunDeduplicatesRecipients tests trimming and deduplication of custom lists
func (suite *DispatcherTestSuite) TestRunDeduplicatesRecipients() {
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID,
		"a@example.com", " a@example.com ", "", "b@example.com")
	job := suite.startSend(campaign)

	result, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(2, result.Recipients)
	suite.Equal([]string{"a@example.com", "b@example.com"}, suite.transport.recipients())
	suite.Len(suite.sendRows(campaign.ID, job.Cycle), 2)
}

// TestRunResumesWithoutDuplicates tests redelivery after a partial run
func (suite *DispatcherTestSuite) TestRunResumesWithoutDuplicates() {
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID,
		"a@example.com", "b@example.com", "c@example.com")
	job := suite.startSend(campaign)

	// a was delivered and b was queued before the previous worker stopped
	suite.Require().NoError(suite.sends.Create(suite.ctx, &models.EmailSend{
		OrganizationID: suite.org.ID, CampaignID: campaign.ID, Cycle: job.Cycle,
		ToEmail: "a@example.com", Status: models.SendStatusSent,
	}))
	queued := &models.EmailSend{
		OrganizationID: suite.org.ID, CampaignID: campaign.ID, Cycle: job.Cycle,
		ToEmail: "b@example.com", Status: models.SendStatusQueued,
	}
	suite.Require().NoError(suite.sends.Create(suite.ctx, queued))

	result, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusSent, result.Status)
	suite.Equal(1, result.Resumed)
	suite.Equal(3, result.Sent)
	suite.Equal([]string{"b@example.com", "c@example.com"}, suite.transport.recipients())

	rows := suite.sendRows(campaign.ID, job.Cycle)
	suite.Len(rows, 3)
	suite.Equal(queued.ID, rows["b@example.com"].ID)
	suite.Equal(models.SendStatusSent, rows["b@example.com"].Status)
}

// TestRunInterruptedThenResumed tests that cancellation leaves the campaign resumable
func (suite *DispatcherTestSuite) TestRunInterruptedThenResumed() {
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com", "b@example.com")
	job := suite.startSend(campaign)

	ctx, cancel := context.WithCancel(suite.ctx)
	suite.transport.onSend = func(mailer.Message) { cancel() }

	_, err := suite.dispatcher.Run(ctx, job)
	suite.Require().Error(err)
	suite.Equal(models.CampaignStatusSending, suite.reload(campaign.ID).Status)

	suite.transport.onSend = nil
	result, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusSent, result.Status)
	suite.Equal(2, result.Sent)
	suite.Equal([]string{"a@example.com", "b@example.com"}, suite.transport.recipients(),
		"each recipient is delivered exactly once across the interrupted and resumed runs")

	rows := suite.sendRows(campaign.ID, job.Cycle)
	suite.Len(rows, 2)
	suite.Equal(models.SendStatusSent, rows["a@example.com"].Status)
}

// TestRunRecordsDeliveryDuringShutdown tests that a send completed while the
// run is cancelled is still recorded as sent
func (suite *DispatcherTestSuite) TestRunRecordsDeliveryDuringShutdown() {
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com")
	job := suite.startSend(campaign)

	ctx, cancel := context.WithCancel(suite.ctx)
	suite.transport.onSend = func(mailer.Message) { cancel() }

	result, err := suite.dispatcher.Run(ctx, job)

	// the only recipient was attempted, so the run completes
	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusSent, result.Status)
	suite.Equal(models.SendStatusSent, suite.sendRows(campaign.ID, job.Cycle)["a@example.com"].Status)
	suite.Equal(models.CampaignStatusSent, suite.reload(campaign.ID).Status)
}

// TestRunAbortedDeliveryIsRetried tests that a send aborted by cancellation
// stays queued and is attempted again on resume
func (suite *DispatcherTestSuite) TestRunAbortedDeliveryIsRetried() {
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com", "b@example.com")
	job := suite.startSend(campaign)

	ctx, cancel := context.WithCancel(suite.ctx)
	suite.transport.onSend = func(mailer.Message) { cancel() }
	suite.transport.failFor["a@example.com"] = context.Canceled

	_, err := suite.dispatcher.Run(ctx, job)
	suite.Require().ErrorIs(err, context.Canceled)
	suite.Equal(models.SendStatusQueued, suite.sendRows(campaign.ID, job.Cycle)["a@example.com"].Status)

	suite.transport.onSend = nil
	delete(suite.transport.failFor, "a@example.com")
	result, err := suite.dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusSent, result.Status)
	suite.Equal([]string{"a@example.com", "a@example.com", "b@example.com"}, suite.transport.recipients())
	suite.Len(suite.sendRows(campaign.ID, job.Cycle), 2)
}

// TestRunExtendsLock tests that a long run keeps its campaign lock past the ttl
func (suite *DispatcherTestSuite) TestRunExtendsLock() {
	locker := NewLocalLocker()
	dispatcher := NewDispatcher(Dependencies{
		Campaigns: suite.campaigns,
		Templates: suite.templates,
		Contacts:  suite.contacts,
		Sends:     suite.sends,
		Transport: suite.transport,
		Locker:    locker,
		LockTTL:   150 * time.Millisecond,
	})
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID,
		"a@example.com", "b@example.com", "c@example.com")
	job := suite.startSend(campaign)

	var heldAtLast bool
	suite.transport.onSend = func(msg mailer.Message) {
		if msg.To == "c@example.com" {
			heldAtLast, _ = locker.Held(suite.ctx, LockKey(campaign.ID))
		}
		time.Sleep(100 * time.Millisecond)
	}

	result, err := dispatcher.Run(suite.ctx, job)

	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusSent, result.Status)
	suite.True(heldAtLast, "lock must still be held after the initial ttl")
	held, _ := locker.Held(suite.ctx, LockKey(campaign.ID))
	suite.False(held, "lock is released when the run ends")
}

// TestRunStopsWhenLockLost tests that a run whose lock was taken over stops sending
func (suite *DispatcherTestSuite) TestRunStopsWhenLockLost() {
	now := time.Now()
	var mu sync.Mutex
	locker := NewLocalLocker()
	locker.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	dispatcher := NewDispatcher(Dependencies{
		Campaigns: suite.campaigns,
		Templates: suite.templates,
		Contacts:  suite.contacts,
		Sends:     suite.sends,
		Transport: suite.transport,
		Locker:    locker,
		LockTTL:   30 * time.Millisecond,
	})
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com", "b@example.com")
	job := suite.startSend(campaign)

	suite.transport.onSend = func(mailer.Message) {
		mu.Lock()
		now = now.Add(time.Hour)
		mu.Unlock()
		_, ok, err := locker.TryLock(suite.ctx, LockKey(campaign.ID), time.Hour)
		suite.Require().NoError(err)
		suite.Require().True(ok)
		time.Sleep(20 * time.Millisecond)
	}

	_, err := dispatcher.Run(suite.ctx, job)

	suite.Require().ErrorIs(err, ErrLockLost)
	suite.Equal([]string{"a@example.com"}, suite.transport.recipients())
	suite.Equal(models.CampaignStatusSending, suite.reload(campaign.ID).Status)
}

// TestRunSkipsStaleJobs tests that jobs for other cycles or statuses are no-ops
func (suite *DispatcherTestSuite) TestRunSkipsStaleJobs() {
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com")
	job := suite.startSend(campaign)

	stale := NewJob(campaign.ID, job.Cycle-1)
	result, err := suite.dispatcher.Run(suite.ctx, stale)
	suite.Require().NoError(err)
	suite.Equal(OutcomeStale, result.Outcome)
	suite.Empty(suite.transport.sent)
	suite.Equal(models.CampaignStatusSending, suite.reload(campaign.ID).Status)

	_, err = suite.dispatcher.Run(suite.ctx, job)
	suite.Require().NoError(err)

	// redelivery after completion
	result, err = suite.dispatcher.Run(suite.ctx, job)
	suite.Require().NoError(err)
	suite.Equal(OutcomeStale, result.Outcome)
	suite.Len(suite.transport.sent, 1)

	result, err = suite.dispatcher.Run(suite.ctx, NewJob(uuid.New(), 1))
	suite.Require().NoError(err)
	suite.Equal(OutcomeStale, result.Outcome)
}

// TestRunSkipsLockedCampaign tests that a campaign held by another worker is skipped
func (suite *DispatcherTestSuite) TestRunSkipsLockedCampaign() {
	locker := NewLocalLocker()
	dispatcher := NewDispatcher(Dependencies{
		Campaigns: suite.campaigns,
		Templates: suite.templates,
		Contacts:  suite.contacts,
		Sends:     suite.sends,
		Transport: suite.transport,
		Locker:    locker,
	})
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, "a@example.com")
	job := suite.startSend(campaign)

	lease, ok, err := locker.TryLock(suite.ctx, LockKey(campaign.ID), defaultLockTTL)
	suite.Require().NoError(err)
	suite.Require().True(ok)

	result, err := dispatcher.Run(suite.ctx, job)
	suite.Require().NoError(err)
	suite.Equal(OutcomeLocked, result.Outcome)
	suite.Empty(suite.transport.sent)

	suite.Require().NoError(lease.Release(suite.ctx))
	result, err = dispatcher.Run(suite.ctx, job)
	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusSent, result.Status)
}

// TestRunPreservesRecipientOrder tests that recipients are sent one at a time in list order
func (suite *DispatcherTestSuite) TestRunPreservesRecipientOrder() {
	recipients := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		recipients = append(recipients, strings.Repeat("x", i+1)+"@example.com")
	}
	campaign := suite.factories.Campaign.WithRecipients(suite.org.ID, suite.template.ID, recipients...)

	_, err := suite.dispatcher.Run(suite.ctx, suite.startSend(campaign))

	suite.Require().NoError(err)
	suite.Equal(recipients, suite.transport.recipients())
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}
