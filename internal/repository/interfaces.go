package repository

import (
	"context"

	"email-marketing-backend/internal/database/models"

	"github.com/google/uuid"
)

//go:generate mockgen -source=interfaces.go -destination=../mocks/repository_mocks.go -package=mocks

// OrganizationRepositoryInterface defines the interface for organization repository operations
type OrganizationRepositoryInterface interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	GetByName(ctx context.Context, name string) (*models.Organization, error)
	GetAll(ctx context.Context, limit, offset int) ([]models.Organization, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepositoryInterface defines the interface for user repository operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByOrganizationID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.User, int64, error)
	ReplaceRoles(ctx context.Context, user *models.User, roles []models.Role) error
	PermissionNames(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// RoleRepositoryInterface defines the interface for role and permission repository operations
type RoleRepositoryInterface interface {
	Transaction(ctx context.Context, fn func(repo RoleRepositoryInterface) error) error
	EnsurePermission(ctx context.Context, name, description string) (*models.Permission, error)
	EnsureRole(ctx context.Context, name, description string) (*models.Role, error)
	ReplacePermissions(ctx context.Context, role *models.Role, perms []models.Permission) error
	GetByNames(ctx context.Context, names []string) ([]models.Role, error)
	GetAll(ctx context.Context) ([]models.Role, error)
	CountPermissions(ctx context.Context) (int64, error)
}

// ContactRepositoryInterface defines the interface for contact repository operations
type ContactRepositoryInterface interface {
	Create(ctx context.Context, contact *models.Contact) error
	GetByOrganizationID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Contact, int64, error)
	CountByOrganizationID(ctx context.Context, orgID uuid.UUID) (int64, error)
	EmailsByOrganizationID(ctx context.Context, orgID uuid.UUID) ([]string, error)
}

// TemplateRepositoryInterface defines the interface for template repository operations
type TemplateRepositoryInterface interface {
	Create(ctx context.Context, tmpl *models.EmailTemplate) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.EmailTemplate, error)
	GetByOrganizationID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.EmailTemplate, int64, error)
	Update(ctx context.Context, tmpl *models.EmailTemplate) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	CountCampaignReferences(ctx context.Context, id uuid.UUID) (int64, error)
}

// CampaignRepositoryInterface defines the interface for campaign repository operations
type CampaignRepositoryInterface interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Campaign, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetByOrganizationID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Campaign, int64, error)
	GetByStatus(ctx context.Context, status models.CampaignStatus) ([]models.Campaign, error)
	BeginSend(ctx context.Context, orgID, id uuid.UUID, expectedCycle int) (bool, error)
	AbortSend(ctx context.Context, id uuid.UUID, cycle int, previous models.CampaignStatus) error
	FinishSend(ctx context.Context, id uuid.UUID, cycle int, status models.CampaignStatus, lastError string) (bool, error)
}

// EmailSendRepositoryInterface defines the interface for send record repository operations
type EmailSendRepositoryInterface interface {
	Create(ctx context.Context, send *models.EmailSend) error
	GetByCycle(ctx context.Context, campaignID uuid.UUID, cycle int) (map[string]models.EmailSend, error)
	UpdateResult(ctx context.Context, id uuid.UUID, status models.SendStatus, errMsg *string) error
	GetByCampaignID(ctx context.Context, orgID, campaignID uuid.UUID, limit int) ([]models.EmailSend, error)
	CountByStatus(ctx context.Context, campaignID uuid.UUID, cycle int) (map[models.SendStatus]int64, error)
}

var (
	_ OrganizationRepositoryInterface = (*OrganizationRepository)(nil)
	_ UserRepositoryInterface         = (*UserRepository)(nil)
	_ RoleRepositoryInterface         = (*RoleRepository)(nil)
	_ ContactRepositoryInterface      = (*ContactRepository)(nil)
	_ TemplateRepositoryInterface     = (*TemplateRepository)(nil)
	_ CampaignRepositoryInterface     = (*CampaignRepository)(nil)
	_ EmailSendRepositoryInterface    = (*EmailSendRepository)(nil)
)
