package service

import (
	"context"

	"email-marketing-backend/internal/iam"

	"github.com/google/uuid"
)

//go:generate mockgen -source=interfaces.go -destination=../mocks/service_mocks.go -package=mocks

// IAMServiceInterface defines the interface for IAM service
type IAMServiceInterface interface {
	Catalog() *iam.Catalog
	Seed(ctx context.Context) (*SeedResult, error)
	AssignRoles(ctx context.Context, userID uuid.UUID, roleNames []string) (*RoleAssignmentResponse, error)
	AssignOrganizationUserRoles(ctx context.Context, orgID, userID uuid.UUID, roleNames []string) (*RoleAssignmentResponse, error)
	ResolvePermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// AuthServiceInterface defines the interface for auth service
type AuthServiceInterface interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	Me(ctx context.Context, userID uuid.UUID, tokenRoles []string) (*MeResponse, error)
}

// OrganizationServiceInterface defines the interface for organization service
type OrganizationServiceInterface interface {
	Create(ctx context.Context, req *CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*OrganizationResponse, error)
	GetAll(ctx context.Context, page, pageSize int) (*OrganizationListResponse, error)
}

// ContactServiceInterface defines the interface for contact service
type ContactServiceInterface interface {
	Create(ctx context.Context, orgID uuid.UUID, req *CreateContactRequest) (*ContactResponse, error)
	GetByOrganization(ctx context.Context, orgID uuid.UUID, page, pageSize int) (*ContactListResponse, error)
}

// TemplateServiceInterface defines the interface for template service
type TemplateServiceInterface interface {
	Create(ctx context.Context, orgID, userID uuid.UUID, req *CreateTemplateRequest) (*TemplateResponse, error)
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*TemplateResponse, error)
	GetByOrganization(ctx context.Context, orgID uuid.UUID, page, pageSize int) (*TemplateListResponse, error)
	Update(ctx context.Context, orgID, id uuid.UUID, req *UpdateTemplateRequest) (*TemplateResponse, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	SendTest(ctx context.Context, orgID, id uuid.UUID, req *SendTestRequest) (*SendTestResponse, error)
}

// CampaignServiceInterface defines the interface for campaign service
type CampaignServiceInterface interface {
	Create(ctx context.Context, orgID, userID uuid.UUID, req *CreateCampaignRequest) (*CampaignResponse, error)
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*CampaignResponse, error)
	GetByOrganization(ctx context.Context, orgID uuid.UUID, page, pageSize int) (*CampaignListResponse, error)
	Send(ctx context.Context, orgID, id uuid.UUID) (*SendAcknowledgement, error)
	Sends(ctx context.Context, orgID, id uuid.UUID) ([]EmailSendResponse, error)
}

var (
	_ IAMServiceInterface          = (*IAMService)(nil)
	_ AuthServiceInterface         = (*AuthService)(nil)
	_ OrganizationServiceInterface = (*OrganizationService)(nil)
	_ ContactServiceInterface      = (*ContactService)(nil)
	_ TemplateServiceInterface     = (*TemplateService)(nil)
	_ CampaignServiceInterface     = (*CampaignService)(nil)
)
