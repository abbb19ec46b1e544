package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"email-marketing-backend/internal/database/models"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/mailer"
	"email-marketing-backend/internal/rendering"
	"email-marketing-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run outcomes besides the final campaign statuses
const (
	OutcomeStale  = "stale"
	OutcomeLocked = "locked"
)

const (
	lockKeyPrefix  = "campaign-dispatch:"
	defaultLockTTL = 10 * time.Minute
	// recordTimeout bounds send record writes that outlive a cancelled run
	recordTimeout = 10 * time.Second
)

// ErrLockLost is returned when a run's campaign lock expired and could not be extended
var ErrLockLost = errors.New("campaign lock lost")

// Result summarizes one dispatcher run
type Result struct {
	Job        Job                   `json:"job"`
	Outcome    string                `json:"outcome"`
	Status     models.CampaignStatus `json:"status,omitempty"`
	Recipients int                   `json:"recipients"`
	Sent       int                   `json:"sent"`
	Failed     int                   `json:"failed"`
	Resumed    int                   `json:"resumed"`
}

// Runner executes a job. Implemented by Dispatcher.
type Runner interface {
	Run(ctx context.Context, job Job) (*Result, error)
}

// Dependencies are the collaborators of a Dispatcher
type Dependencies struct {
	Campaigns repository.CampaignRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	Contacts  repository.ContactRepositoryInterface
	Sends     repository.EmailSendRepositoryInterface
	Transport mailer.Transport
	Locker    Locker
	LockTTL   time.Duration
	Metrics   *Metrics
}

// Dispatcher performs the bulk send of one campaign cycle
type Dispatcher struct {
	campaigns repository.CampaignRepositoryInterface
	templates repository.TemplateRepositoryInterface
	contacts  repository.ContactRepositoryInterface
	sends     repository.EmailSendRepositoryInterface
	transport mailer.Transport
	locker    Locker
	lockTTL   time.Duration
	metrics   *Metrics
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(deps Dependencies) *Dispatcher {
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = defaultLockTTL
	}
	return &Dispatcher{
		campaigns: deps.Campaigns,
		templates: deps.Templates,
		contacts:  deps.Contacts,
		sends:     deps.Sends,
		transport: deps.Transport,
		locker:    deps.Locker,
		lockTTL:   deps.LockTTL,
		metrics:   deps.Metrics,
	}
}

// Run sends job's campaign cycle to every resolved recipient and records the
// aggregate status. Redelivered or stale jobs are no-ops. A returned error
// leaves the campaign in sending so it can be resumed.
func (d *Dispatcher) Run(ctx context.Context, job Job) (*Result, error) {
	log := logger.WithContext(ctx).WithFields(map[string]interface{}{
		"job_id":      job.ID,
		"campaign_id": job.CampaignID.String(),
		"cycle":       job.Cycle,
	})
	result := &Result{Job: job}

	lease, ok, err := d.locker.TryLock(ctx, LockKey(job.CampaignID), d.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire campaign lock: %w", err)
	}
	if !ok {
		log.Info("Campaign is being dispatched by another worker, skipping job")
		result.Outcome = OutcomeLocked
		d.metrics.run(OutcomeLocked, time.Time{})
		return result, nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("Failed to release campaign lock")
		}
	}()

	started := time.Now()
	campaign, err := d.campaigns.Get(ctx, job.CampaignID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Info("Campaign no longer exists, skipping job")
			result.Outcome = OutcomeStale
			d.metrics.run(OutcomeStale, time.Time{})
			return result, nil
		}
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if campaign.Status != models.CampaignStatusSending || campaign.SendCycle != job.Cycle {
		log.WithFields(map[string]interface{}{
			"status":        campaign.Status,
			"current_cycle": campaign.SendCycle,
		}).Info("Campaign is not sending this cycle, skipping job")
		result.Outcome = OutcomeStale
		d.metrics.run(OutcomeStale, time.Time{})
		return result, nil
	}

	template, err := d.templates.GetByID(ctx, campaign.OrganizationID, campaign.TemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return d.finish(ctx, result, campaign, models.CampaignStatusFailed, "Template not found", started)
		}
		return nil, fmt.Errorf("load template: %w", err)
	}

	recipients, err := d.resolveRecipients(ctx, campaign)
	if err != nil {
		return nil, err
	}
	result.Recipients = len(recipients)
	if len(recipients) == 0 {
		return d.finish(ctx, result, campaign, models.CampaignStatusFailed, "No recipients", started)
	}

	existing, err := d.sends.GetByCycle(ctx, campaign.ID, job.Cycle)
	if err != nil {
		return nil, fmt.Errorf("load send records: %w", err)
	}

	body := rendering.ComposeDocument(template.HTML, template.CSS)
	subject := firstNonEmpty(campaign.Subject, template.Subject, campaign.Name)

	renewed := time.Now()
	attempted := 0
	for _, to := range recipients {
		if err := ctx.Err(); err != nil {
			log.WithField("attempted", attempted).Warn("Dispatch interrupted, campaign left in sending")
			return nil, err
		}
		if time.Since(renewed) >= d.lockTTL/3 {
			extended, err := lease.Extend(ctx, d.lockTTL)
			if err != nil {
				return nil, fmt.Errorf("extend campaign lock: %w", err)
			}
			if !extended {
				log.Warn("Campaign lock expired during dispatch, stopping")
				return nil, ErrLockLost
			}
			renewed = time.Now()
		}

		record, found := existing[to]
		if found && record.Status.IsTerminal() {
			result.Resumed++
			continue
		}
		if !found {
			record = models.EmailSend{
				OrganizationID: campaign.OrganizationID,
				CampaignID:     campaign.ID,
				Cycle:          job.Cycle,
				ToEmail:        to,
				Status:         models.SendStatusQueued,
			}
			if err := d.store(ctx, func(ctx context.Context) error { return d.sends.Create(ctx, &record) }); err != nil {
				return nil, fmt.Errorf("record queued send: %w", err)
			}
		}

		msg := mailer.Message{
			To:      to,
			From:    campaign.FromEmail,
			ReplyTo: campaign.ReplyTo,
			Subject: subject,
			HTML:    body,
		}
		status := models.SendStatusSent
		var errMsg *string
		if err := d.deliver(ctx, msg); err != nil {
			if ctx.Err() != nil {
				// aborted by shutdown, the queued row is retried on resume
				log.WithError(err).WithField("to", logger.RedactEmail(to)).Warn("Delivery interrupted, campaign left in sending")
				return nil, ctx.Err()
			}
			status = models.SendStatusFailed
			text := err.Error()
			errMsg = &text
			log.WithError(err).WithField("to", logger.RedactEmail(to)).Warn("Delivery failed")
		}
		d.metrics.email(string(status))
		attempted++

		if err := d.store(ctx, func(ctx context.Context) error {
			return d.sends.UpdateResult(ctx, record.ID, status, errMsg)
		}); err != nil {
			return nil, fmt.Errorf("record send result: %w", err)
		}
	}

	// every recipient has a terminal row now, so the cycle's rows are authoritative
	done := context.WithoutCancel(ctx)
	counts, err := d.sends.CountByStatus(done, campaign.ID, job.Cycle)
	if err != nil {
		return nil, fmt.Errorf("count send results: %w", err)
	}
	result.Sent = int(counts[models.SendStatusSent])
	result.Failed = int(counts[models.SendStatusFailed])

	final := models.CampaignStatusSent
	lastError := ""
	switch {
	case result.Failed == 0:
	case result.Sent == 0:
		final = models.CampaignStatusFailed
		lastError = fmt.Sprintf("All %d deliveries failed", result.Failed)
	default:
		final = models.CampaignStatusPartial
		lastError = fmt.Sprintf("%d of %d deliveries failed", result.Failed, result.Sent+result.Failed)
	}
	return d.finish(done, result, campaign, final, lastError, started)
}

// store runs a send record write that must land even if ctx is cancelled
// after the delivery attempt, or the recipient would be sent again on resume
func (d *Dispatcher) store(ctx context.Context, write func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	return write(ctx)
}

func (d *Dispatcher) finish(ctx context.Context, result *Result, campaign *models.Campaign, status models.CampaignStatus, lastError string, started time.Time) (*Result, error) {
	log := logger.WithContext(ctx).WithFields(map[string]interface{}{
		"campaign_id": campaign.ID.String(),
		"cycle":       result.Job.Cycle,
	})
	applied, err := d.campaigns.FinishSend(ctx, campaign.ID, result.Job.Cycle, status, lastError)
	if err != nil {
		return nil, fmt.Errorf("record campaign status: %w", err)
	}
	if !applied {
		log.Warn("Campaign changed during dispatch, final status not recorded")
		result.Outcome = OutcomeStale
		d.metrics.run(OutcomeStale, time.Time{})
		return result, nil
	}

	result.Status = status
	result.Outcome = string(status)
	d.metrics.run(string(status), started)
	log.WithFields(map[string]interface{}{
		"status":     status,
		"recipients": result.Recipients,
		"sent":       result.Sent,
		"failed":     result.Failed,
		"resumed":    result.Resumed,
	}).Info("Campaign dispatch finished")
	return result, nil
}

// LockKey is the lock a dispatcher holds while running campaignID
func LockKey(campaignID uuid.UUID) string {
	return lockKeyPrefix + campaignID.String()
}

// resolveRecipients returns the audience at run time, trimmed and deduplicated
// in first-seen order
func (d *Dispatcher) resolveRecipients(ctx context.Context, campaign *models.Campaign) ([]string, error) {
	var raw []string
	if campaign.AudienceType == models.AudienceCustom {
		raw = campaign.Recipients
	} else {
		emails, err := d.contacts.EmailsByOrganizationID(ctx, campaign.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("load contacts: %w", err)
		}
		raw = emails
	}

	seen := make(map[string]struct{}, len(raw))
	recipients := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		recipients = append(recipients, r)
	}
	return recipients, nil
}

// deliver hands msg to the transport, converting a panic into an error so one
// bad recipient cannot abort the run
func (d *Dispatcher) deliver(ctx context.Context, msg mailer.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return d.transport.Send(ctx, msg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
