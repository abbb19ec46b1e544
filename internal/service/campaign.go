package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"email-marketing-backend/internal/database/models"
	"email-marketing-backend/internal/dispatch"
	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SendHistoryLimit caps the send records returned for a campaign
const SendHistoryLimit = 200

// JobEnqueuer hands dispatch jobs to the worker pool
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job dispatch.Job) error
}

// CampaignService handles business logic for campaigns and triggers their dispatch
type CampaignService struct {
	campaigns repository.CampaignRepositoryInterface
	templates repository.TemplateRepositoryInterface
	contacts  repository.ContactRepositoryInterface
	sends     repository.EmailSendRepositoryInterface
	queue     JobEnqueuer
	validator *validator.Validate
}

// NewCampaignService creates a new campaign service
func NewCampaignService(
	campaigns repository.CampaignRepositoryInterface,
	templates repository.TemplateRepositoryInterface,
	contacts repository.ContactRepositoryInterface,
	sends repository.EmailSendRepositoryInterface,
	queue JobEnqueuer,
	validator *validator.Validate,
) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		templates: templates,
		contacts:  contacts,
		sends:     sends,
		queue:     queue,
		validator: validator,
	}
}

// CreateCampaignRequest represents the request to create a campaign
type CreateCampaignRequest struct {
	Name         string    `json:"name" validate:"required,min=1,max=200" example:"Spring launch"`
	TemplateID   uuid.UUID `json:"template_id" validate:"required"`
	Subject      string    `json:"subject,omitempty" validate:"max=255"`
	FromEmail    string    `json:"from_email,omitempty" validate:"omitempty,email,max=255"`
	ReplyTo      string    `json:"reply_to,omitempty" validate:"omitempty,email,max=255"`
	AudienceType string    `json:"audience_type,omitempty" example:"all_contacts"`
	Recipients   []string  `json:"recipients,omitempty" validate:"omitempty,dive,email"`
	Notes        string    `json:"notes,omitempty"`
}

// CampaignResponse represents the response for campaign operations
type CampaignResponse struct {
	ID              uuid.UUID             `json:"id"`
	OrganizationID  uuid.UUID             `json:"organization_id"`
	CreatedByUserID *uuid.UUID            `json:"created_by_user_id"`
	TemplateID      uuid.UUID             `json:"template_id"`
	Name            string                `json:"name"`
	Subject         string                `json:"subject"`
	FromEmail       string                `json:"from_email"`
	ReplyTo         string                `json:"reply_to"`
	AudienceType    models.AudienceType   `json:"audience_type"`
	Recipients      []string              `json:"recipients"`
	Notes           string                `json:"notes"`
	Status          models.CampaignStatus `json:"status"`
	SendCycle       int                   `json:"send_cycle"`
	LastError       string                `json:"last_error,omitempty"`
	CreatedAt       string                `json:"created_at"`
	UpdatedAt       string                `json:"updated_at"`
}

// CampaignListResponse represents a paginated list of campaigns
type CampaignListResponse struct {
	Campaigns []CampaignResponse `json:"data"`
	Total     int64              `json:"total"`
	Page      int                `json:"page"`
	PageSize  int                `json:"page_size"`
}

// SendAcknowledgement is returned once a send has been accepted for dispatch
type SendAcknowledgement struct {
	Status     string    `json:"status" example:"queued"`
	JobID      string    `json:"job_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	Cycle      int       `json:"cycle"`
}

// EmailSendResponse represents one per-recipient delivery record
type EmailSendResponse struct {
	ID         uuid.UUID         `json:"id"`
	CampaignID uuid.UUID         `json:"campaign_id"`
	Cycle      int               `json:"cycle"`
	ToEmail    string            `json:"to_email"`
	Status     models.SendStatus `json:"status"`
	Error      *string           `json:"error"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
}

// Create creates a draft campaign in orgID using one of its templates
func (s *CampaignService) Create(ctx context.Context, orgID, userID uuid.UUID, req *CreateCampaignRequest) (*CampaignResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	for i := range req.Recipients {
		req.Recipients[i] = strings.TrimSpace(req.Recipients[i])
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	audience := models.AudienceType(strings.TrimSpace(req.AudienceType))
	if audience == "" {
		audience = models.AudienceAllContacts
	}
	if !audience.IsValid() {
		return nil, apperrors.ErrInvalidAudienceType
	}
	if audience == models.AudienceCustom && len(req.Recipients) == 0 {
		return nil, apperrors.ErrRecipientsRequired
	}

	if _, err := s.templates.GetByID(ctx, orgID, req.TemplateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	campaign := &models.Campaign{
		OrganizationID:  orgID,
		CreatedByUserID: &userID,
		TemplateID:      req.TemplateID,
		Name:            req.Name,
		Subject:         req.Subject,
		FromEmail:       req.FromEmail,
		ReplyTo:         req.ReplyTo,
		AudienceType:    audience,
		Notes:           req.Notes,
		Status:          models.CampaignStatusDraft,
	}
	if len(req.Recipients) > 0 {
		campaign.Recipients = datatypes.JSONSlice[string](req.Recipients)
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	return toCampaignResponse(campaign), nil
}

// GetByID retrieves a campaign of orgID
func (s *CampaignService) GetByID(ctx context.Context, orgID, id uuid.UUID) (*CampaignResponse, error) {
	campaign, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return toCampaignResponse(campaign), nil
}

// GetByOrganization retrieves the campaigns of orgID, newest first
func (s *CampaignService) GetByOrganization(ctx context.Context, orgID uuid.UUID, page, pageSize int) (*CampaignListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	campaigns, total, err := s.campaigns.GetByOrganizationID(ctx, orgID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaigns: %w", err)
	}
	responses := make([]CampaignResponse, len(campaigns))
	for i := range campaigns {
		responses[i] = *toCampaignResponse(&campaigns[i])
	}
	return &CampaignListResponse{
		Campaigns: responses,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

// Send validates that a campaign of orgID can be sent, moves it into sending
// and enqueues its dispatch. Delivery happens asynchronously.
func (s *CampaignService) Send(ctx context.Context, orgID, id uuid.UUID) (*SendAcknowledgement, error) {
	campaign, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.CanSend() {
		return nil, apperrors.NewCampaignStateConflict(string(campaign.Status))
	}

	if _, err := s.templates.GetByID(ctx, orgID, campaign.TemplateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCampaignTemplateAbsent
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	switch campaign.AudienceType {
	case models.AudienceCustom:
		if len(normalizeNames(campaign.Recipients)) == 0 {
			return nil, apperrors.ErrNoRecipients
		}
	default:
		count, err := s.contacts.CountByOrganizationID(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("failed to count contacts: %w", err)
		}
		if count == 0 {
			return nil, apperrors.ErrNoContacts
		}
	}

	started, err := s.campaigns.BeginSend(ctx, orgID, id, campaign.SendCycle)
	if err != nil {
		return nil, fmt.Errorf("failed to start campaign send: %w", err)
	}
	if !started {
		// another trigger won the race
		status := models.CampaignStatusSending
		if current, err := s.campaigns.GetByID(ctx, orgID, id); err == nil && !current.Status.CanSend() {
			status = current.Status
		}
		return nil, apperrors.NewCampaignStateConflict(string(status))
	}

	cycle := campaign.SendCycle + 1
	job := dispatch.NewJob(id, cycle)
	log := logger.WithContext(ctx).WithFields(map[string]interface{}{
		"campaign_id": id.String(),
		"cycle":       cycle,
		"job_id":      job.ID,
	})
	if err := s.queue.Enqueue(ctx, job); err != nil {
		log.WithError(err).Error("Failed to enqueue campaign dispatch, restoring previous status")
		if abortErr := s.campaigns.AbortSend(context.WithoutCancel(ctx), id, cycle, campaign.Status); abortErr != nil {
			log.WithError(abortErr).Error("Failed to restore campaign status")
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEnqueueFailed, err)
	}

	log.Info("Campaign dispatch queued")
	return &SendAcknowledgement{
		Status:     "queued",
		JobID:      job.ID,
		CampaignID: id,
		Cycle:      cycle,
	}, nil
}

// Sends returns the most recent send records of a campaign of orgID, newest first
func (s *CampaignService) Sends(ctx context.Context, orgID, id uuid.UUID) ([]EmailSendResponse, error) {
	if _, err := s.get(ctx, orgID, id); err != nil {
		return nil, err
	}
	sends, err := s.sends.GetByCampaignID(ctx, orgID, id, SendHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign sends: %w", err)
	}
	responses := make([]EmailSendResponse, len(sends))
	for i, send := range sends {
		responses[i] = EmailSendResponse{
			ID:         send.ID,
			CampaignID: send.CampaignID,
			Cycle:      send.Cycle,
			ToEmail:    send.ToEmail,
			Status:     send.Status,
			Error:      send.Error,
			CreatedAt:  send.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  send.UpdatedAt.Format(time.RFC3339),
		}
	}
	return responses, nil
}

func (s *CampaignService) get(ctx context.Context, orgID, id uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

func toCampaignResponse(c *models.Campaign) *CampaignResponse {
	recipients := []string(c.Recipients)
	if recipients == nil {
		recipients = []string{}
	}
	return &CampaignResponse{
		ID:              c.ID,
		OrganizationID:  c.OrganizationID,
		CreatedByUserID: c.CreatedByUserID,
		TemplateID:      c.TemplateID,
		Name:            c.Name,
		Subject:         c.Subject,
		FromEmail:       c.FromEmail,
		ReplyTo:         c.ReplyTo,
		AudienceType:    c.AudienceType,
		Recipients:      recipients,
		Notes:           c.Notes,
		Status:          c.Status,
		SendCycle:       c.SendCycle,
		LastError:       c.LastError,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       c.UpdatedAt.Format(time.RFC3339),
	}
}
