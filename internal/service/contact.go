package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"email-marketing-backend/internal/database/models"
	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactService handles business logic for contacts
type ContactService struct {
	contacts  repository.ContactRepositoryInterface
	orgs      repository.OrganizationRepositoryInterface
	validator *validator.Validate
}

// NewContactService creates a new contact service
func NewContactService(contacts repository.ContactRepositoryInterface, orgs repository.OrganizationRepositoryInterface, validator *validator.Validate) *ContactService {
	return &ContactService{
		contacts:  contacts,
		orgs:      orgs,
		validator: validator,
	}
}

// CreateContactRequest represents the request to create a contact
type CreateContactRequest struct {
	Email     string `json:"email" validate:"required,email,max=255" example:"ada@example.com"`
	FirstName string `json:"first_name,omitempty" validate:"max=100"`
	LastName  string `json:"last_name,omitempty" validate:"max=100"`
}

// ContactResponse represents the response for contact operations
type ContactResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	CreatedAt      string    `json:"created_at"`
}

// ContactListResponse represents a paginated list of contacts
type ContactListResponse struct {
	Contacts []ContactResponse `json:"data"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// Create creates a contact in orgID
func (s *ContactService) Create(ctx context.Context, orgID uuid.UUID, req *CreateContactRequest) (*ContactResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if err := s.ensureOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	contact := &models.Contact{
		OrganizationID: orgID,
		Email:          req.Email,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.ErrContactExists
		}
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return toContactResponse(contact), nil
}

// GetByOrganization retrieves the contacts of orgID with pagination
func (s *ContactService) GetByOrganization(ctx context.Context, orgID uuid.UUID, page, pageSize int) (*ContactListResponse, error) {
	if err := s.ensureOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	contacts, total, err := s.contacts.GetByOrganizationID(ctx, orgID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}
	responses := make([]ContactResponse, len(contacts))
	for i := range contacts {
		responses[i] = *toContactResponse(&contacts[i])
	}
	return &ContactListResponse{
		Contacts: responses,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (s *ContactService) ensureOrganization(ctx context.Context, orgID uuid.UUID) error {
	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrOrganizationNotFound
		}
		return fmt.Errorf("failed to get organization: %w", err)
	}
	return nil
}

func toContactResponse(c *models.Contact) *ContactResponse {
	return &ContactResponse{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		Email:          c.Email,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}
