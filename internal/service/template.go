package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"email-marketing-backend/internal/database/models"
	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/mailer"
	"email-marketing-backend/internal/rendering"
	"email-marketing-backend/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TemplateService handles business logic for email templates
type TemplateService struct {
	templates repository.TemplateRepositoryInterface
	transport mailer.Transport
	validator *validator.Validate
}

// NewTemplateService creates a new template service
func NewTemplateService(templates repository.TemplateRepositoryInterface, transport mailer.Transport, validator *validator.Validate) *TemplateService {
	return &TemplateService{
		templates: templates,
		transport: transport,
		validator: validator,
	}
}

// CreateTemplateRequest represents the request to create a template
type CreateTemplateRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=200" example:"Welcome"`
	Subject     string          `json:"subject,omitempty" validate:"max=255" example:"Welcome aboard"`
	HTML        string          `json:"html,omitempty" example:"<h1>Hello</h1>"`
	CSS         string          `json:"css,omitempty" example:"h1{color:#333}"`
	ProjectData json.RawMessage `json:"project_data,omitempty" swaggertype:"object"`
}

// UpdateTemplateRequest represents a partial template update. Absent fields are left unchanged.
type UpdateTemplateRequest struct {
	Name        *string         `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Subject     *string         `json:"subject,omitempty" validate:"omitempty,max=255"`
	HTML        *string         `json:"html,omitempty"`
	CSS         *string         `json:"css,omitempty"`
	ProjectData json.RawMessage `json:"project_data,omitempty" swaggertype:"object"`
}

// SendTestRequest represents the request to send one test email of a template
type SendTestRequest struct {
	To      string `json:"to" validate:"required,email" example:"qa@example.com"`
	Subject string `json:"subject,omitempty" validate:"max=255"`
}

// SendTestResponse represents the outcome of a test send
type SendTestResponse struct {
	Status string `json:"status" example:"sent"`
	To     string `json:"to" example:"qa@example.com"`
}

// TemplateResponse represents the response for template operations
type TemplateResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrganizationID  uuid.UUID       `json:"organization_id"`
	CreatedByUserID *uuid.UUID      `json:"created_by_user_id"`
	Name            string          `json:"name"`
	Subject         string          `json:"subject"`
	HTML            string          `json:"html"`
	CSS             string          `json:"css"`
	ProjectData     json.RawMessage `json:"project_data" swaggertype:"object"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

// TemplateListResponse represents a paginated list of templates
type TemplateListResponse struct {
	Templates []TemplateResponse `json:"data"`
	Total     int64              `json:"total"`
	Page      int                `json:"page"`
	PageSize  int                `json:"page_size"`
}

// Create creates a template in orgID on behalf of userID
func (s *TemplateService) Create(ctx context.Context, orgID, userID uuid.UUID, req *CreateTemplateRequest) (*TemplateResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	projectData, err := projectDataOf(req.ProjectData)
	if err != nil {
		return nil, err
	}

	tmpl := &models.EmailTemplate{
		OrganizationID:  orgID,
		CreatedByUserID: &userID,
		Name:            req.Name,
		Subject:         req.Subject,
		HTML:            req.HTML,
		CSS:             req.CSS,
		ProjectData:     projectData,
	}
	if err := s.templates.Create(ctx, tmpl); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.ErrTemplateExists
		}
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return toTemplateResponse(tmpl), nil
}

// GetByID retrieves a template of orgID
func (s *TemplateService) GetByID(ctx context.Context, orgID, id uuid.UUID) (*TemplateResponse, error) {
	tmpl, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return toTemplateResponse(tmpl), nil
}

// GetByOrganization retrieves the templates of orgID, most recently updated first
func (s *TemplateService) GetByOrganization(ctx context.Context, orgID uuid.UUID, page, pageSize int) (*TemplateListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	templates, total, err := s.templates.GetByOrganizationID(ctx, orgID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get templates: %w", err)
	}
	responses := make([]TemplateResponse, len(templates))
	for i := range templates {
		responses[i] = *toTemplateResponse(&templates[i])
	}
	return &TemplateListResponse{
		Templates: responses,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

// Update applies the fields present in req to a template of orgID
func (s *TemplateService) Update(ctx context.Context, orgID, id uuid.UUID, req *UpdateTemplateRequest) (*TemplateResponse, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	tmpl, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		tmpl.Name = *req.Name
	}
	if req.Subject != nil {
		tmpl.Subject = *req.Subject
	}
	if req.HTML != nil {
		tmpl.HTML = *req.HTML
	}
	if req.CSS != nil {
		tmpl.CSS = *req.CSS
	}
	if len(req.ProjectData) > 0 {
		projectData, err := projectDataOf(req.ProjectData)
		if err != nil {
			return nil, err
		}
		tmpl.ProjectData = projectData
	}
	tmpl.UpdatedAt = time.Now()

	if err := s.templates.Update(ctx, tmpl); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.ErrTemplateExists
		}
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return toTemplateResponse(tmpl), nil
}

// Delete removes a template of orgID. Templates referenced by a campaign are kept.
func (s *TemplateService) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	if _, err := s.get(ctx, orgID, id); err != nil {
		return err
	}
	refs, err := s.templates.CountCampaignReferences(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check template references: %w", err)
	}
	if refs > 0 {
		return apperrors.ErrTemplateInUse
	}

	if err := s.templates.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrTemplateNotFound
		}
		if repository.IsForeignKeyViolation(err) {
			return apperrors.ErrTemplateInUse
		}
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

// SendTest composes a template of orgID and sends it synchronously to one address
func (s *TemplateService) SendTest(ctx context.Context, orgID, id uuid.UUID, req *SendTestRequest) (*SendTestResponse, error) {
	req.To = strings.TrimSpace(req.To)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	tmpl, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	msg := mailer.Message{
		To:      req.To,
		Subject: firstNonBlank(req.Subject, tmpl.Subject, "Test email: "+tmpl.Name),
		HTML:    rendering.ComposeDocument(tmpl.HTML, tmpl.CSS),
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"template_id": id.String(),
			"to":          logger.RedactEmail(req.To),
		}).Warn("Test send failed")
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDeliveryFailed, err)
	}
	return &SendTestResponse{Status: "sent", To: req.To}, nil
}

func (s *TemplateService) get(ctx context.Context, orgID, id uuid.UUID) (*models.EmailTemplate, error) {
	tmpl, err := s.templates.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tmpl, nil
}

// projectDataOf accepts a JSON object or null
func projectDataOf(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, apperrors.NewValidationError("project_data", "must be a JSON object")
	}
	return datatypes.JSON(trimmed), nil
}

func toTemplateResponse(t *models.EmailTemplate) *TemplateResponse {
	var projectData json.RawMessage
	if len(t.ProjectData) > 0 {
		projectData = json.RawMessage(t.ProjectData)
	}
	return &TemplateResponse{
		ID:              t.ID,
		OrganizationID:  t.OrganizationID,
		CreatedByUserID: t.CreatedByUserID,
		Name:            t.Name,
		Subject:         t.Subject,
		HTML:            t.HTML,
		CSS:             t.CSS,
		ProjectData:     projectData,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
