package service_test

import (
	"context"
	"sync"
	"testing"

	"email-marketing-backend/internal/database/models"
	"email-marketing-backend/internal/iam"
	"email-marketing-backend/internal/mailer"
	"email-marketing-backend/internal/repository"
	"email-marketing-backend/internal/service"
	"email-marketing-backend/internal/testutils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// store bundles SQLite backed repositories for service tests
type store struct {
	db        *gorm.DB
	factories *testutils.FactorySet
	orgs      *repository.OrganizationRepository
	users     *repository.UserRepository
	roles     *repository.RoleRepository
	contacts  *repository.ContactRepository
	templates *repository.TemplateRepository
	campaigns *repository.CampaignRepository
	sends     *repository.EmailSendRepository
}

func newStore(t *testing.T) *store {
	t.Helper()
	db := testutils.NewSQLiteDB(t)
	return &store{
		db:        db,
		factories: testutils.NewFactorySet(),
		orgs:      repository.NewOrganizationRepository(db),
		users:     repository.NewUserRepository(db),
		roles:     repository.NewRoleRepository(db),
		contacts:  repository.NewContactRepository(db),
		templates: repository.NewTemplateRepository(db),
		campaigns: repository.NewCampaignRepository(db),
		sends:     repository.NewEmailSendRepository(db),
	}
}

func (s *store) iamService(policy iam.UnknownRolePolicy) *service.IAMService {
	return service.NewIAMService(s.roles, s.users, iam.MustDefaultCatalog(), policy)
}

func (s *store) createOrg(t *testing.T) *models.Organization {
	t.Helper()
	org := s.factories.Organization.Create()
	require.NoError(t, s.orgs.Create(context.Background(), org))
	return org
}

func (s *store) createUser(t *testing.T, orgID uuid.UUID) *models.User {
	t.Helper()
	user := s.factories.User.Create(orgID)
	require.NoError(t, s.users.Create(context.Background(), user))
	return user
}

func (s *store) createTemplate(t *testing.T, orgID uuid.UUID) *models.EmailTemplate {
	t.Helper()
	tmpl := s.factories.Template.Create(orgID)
	require.NoError(t, s.templates.Create(context.Background(), tmpl))
	return tmpl
}

// recordingTransport captures messages and optionally fails every send
type recordingTransport struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (r *recordingTransport) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}
