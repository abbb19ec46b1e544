package testutils

import (
	"fmt"
	"sync/atomic"
	"time"

	"email-marketing-backend/internal/database/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var factorySeq atomic.Int64

func nextSeq() int64 {
	return factorySeq.Add(1)
}

// OrganizationFactory provides methods to create test Organization data
type OrganizationFactory struct{}

// NewOrganizationFactory creates a new OrganizationFactory
func NewOrganizationFactory() *OrganizationFactory {
	return &OrganizationFactory{}
}

// Create creates a test Organization with unique name and slug
func (f *OrganizationFactory) Create() *models.Organization {
	n := nextSeq()
	return &models.Organization{
		BaseModel: models.BaseModel{
			ID:        uuid.New(),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		Name: fmt.Sprintf("Test Organization %d", n),
		Slug: fmt.Sprintf("test-org-%d", n),
	}
}

// WithSlug sets a custom slug for the organization
func (f *OrganizationFactory) WithSlug(slug string) *models.Organization {
	org := f.Create()
	org.Slug = slug
	org.Name = slug
	return org
}

// UserFactory provides methods to create test User data
type UserFactory struct{}

// NewUserFactory creates a new UserFactory
func NewUserFactory() *UserFactory {
	return &UserFactory{}
}

// Create creates a test User in orgID with a unique email and no password
func (f *UserFactory) Create(orgID uuid.UUID) *models.User {
	return &models.User{
		BaseModel:      models.BaseModel{ID: uuid.New()},
		OrganizationID: orgID,
		Email:          fmt.Sprintf("user%d@example.com", nextSeq()),
		FirstName:      "Test",
		LastName:       "User",
	}
}

// ContactFactory provides methods to create test Contact data
type ContactFactory struct{}

// NewContactFactory creates a new ContactFactory
func NewContactFactory() *ContactFactory {
	return &ContactFactory{}
}

// Create creates a test Contact in orgID
func (f *ContactFactory) Create(orgID uuid.UUID) *models.Contact {
	return f.WithEmail(orgID, fmt.Sprintf("contact%d@example.com", nextSeq()))
}

// WithEmail creates a test Contact in orgID with a fixed email
func (f *ContactFactory) WithEmail(orgID uuid.UUID, email string) *models.Contact {
	return &models.Contact{
		BaseModel:      models.BaseModel{ID: uuid.New()},
		OrganizationID: orgID,
		Email:          email,
		FirstName:      "Contact",
	}
}

// TemplateFactory provides methods to create test EmailTemplate data
type TemplateFactory struct{}

// NewTemplateFactory creates a new TemplateFactory
func NewTemplateFactory() *TemplateFactory {
	return &TemplateFactory{}
}

// Create creates a test EmailTemplate in orgID
func (f *TemplateFactory) Create(orgID uuid.UUID) *models.EmailTemplate {
	return &models.EmailTemplate{
		BaseModel:      models.BaseModel{ID: uuid.New()},
		OrganizationID: orgID,
		Name:           fmt.Sprintf("Template %d", nextSeq()),
		Subject:        "Template subject",
		HTML:           "<p>Hello</p>",
		CSS:            "p{color:red}",
	}
}

// CampaignFactory provides methods to create test Campaign data
type CampaignFactory struct{}

// NewCampaignFactory creates a new CampaignFactory
func NewCampaignFactory() *CampaignFactory {
	return &CampaignFactory{}
}

// Create creates a draft all-contacts Campaign in orgID using templateID
func (f *CampaignFactory) Create(orgID, templateID uuid.UUID) *models.Campaign {
	return &models.Campaign{
		BaseModel:      models.BaseModel{ID: uuid.New()},
		OrganizationID: orgID,
		TemplateID:     templateID,
		Name:           fmt.Sprintf("Campaign %d", nextSeq()),
		AudienceType:   models.AudienceAllContacts,
		Status:         models.CampaignStatusDraft,
	}
}

// WithRecipients creates a draft custom-audience Campaign
func (f *CampaignFactory) WithRecipients(orgID, templateID uuid.UUID, recipients ...string) *models.Campaign {
	c := f.Create(orgID, templateID)
	c.AudienceType = models.AudienceCustom
	c.Recipients = datatypes.JSONSlice[string](recipients)
	return c
}

// FactorySet groups all factories for convenient access in tests
type FactorySet struct {
	Organization *OrganizationFactory
	User         *UserFactory
	Contact      *ContactFactory
	Template     *TemplateFactory
	Campaign     *CampaignFactory
}

// NewFactorySet creates a new FactorySet with all factories
func NewFactorySet() *FactorySet {
	return &FactorySet{
		Organization: NewOrganizationFactory(),
		User:         NewUserFactory(),
		Contact:      NewContactFactory(),
		Template:     NewTemplateFactory(),
		Campaign:     NewCampaignFactory(),
	}
}
