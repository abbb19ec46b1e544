//go:build integration
// +build integration

package repository

import (
	"context"
	"sync"
	"testing"

	"email-marketing-backend/internal/database/models"
	"email-marketing-backend/internal/testutils"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// PostgresTestSuite checks constraint behavior that SQLite cannot reproduce faithfully
type PostgresTestSuite struct {
	suite.Suite
	baseTestSuite *testutils.BaseTestSuite
	ctx           context.Context
	factories     *testutils.FactorySet

	orgs      *OrganizationRepository
	users     *UserRepository
	roles     *RoleRepository
	contacts  *ContactRepository
	templates *TemplateRepository
	campaigns *CampaignRepository
	sends     *EmailSendRepository
}

// SetupSuite runs before all tests in the suite
func (suite *PostgresTestSuite) SetupSuite() {
	suite.baseTestSuite = testutils.SetupTestSuite(suite.T())
	suite.ctx = context.Background()
	suite.factories = testutils.NewFactorySet()

	db := suite.baseTestSuite.DB
	suite.orgs = NewOrganizationRepository(db)
	suite.users = NewUserRepository(db)
	suite.roles = NewRoleRepository(db)
	suite.contacts = NewContactRepository(db)
	suite.templates = NewTemplateRepository(db)
	suite.campaigns = NewCampaignRepository(db)
	suite.sends = NewEmailSendRepository(db)
}

// TearDownSuite runs after all tests in the suite
func (suite *PostgresTestSuite) TearDownSuite() {
	suite.baseTestSuite.TeardownTestSuite()
}

// SetupTest runs before each test
func (suite *PostgresTestSuite) SetupTest() {
	suite.baseTestSuite.SetupTest()
}

func (suite *PostgresTestSuite) seedCampaign() (*models.Organization, *models.EmailTemplate, *models.Campaign) {
	org := suite.factories.Organization.Create()
	suite.Require().NoError(suite.orgs.Create(suite.ctx, org))
	tmpl := suite.factories.Template.Create(org.ID)
	suite.Require().NoError(suite.templates.Create(suite.ctx, tmpl))
	campaign := suite.factories.Campaign.WithRecipients(org.ID, tmpl.ID, "a@example.com")
	suite.Require().NoError(suite.campaigns.Create(suite.ctx, campaign))
	return org, tmpl, campaign
}

// TestDeleteOrganizationCascades tests that an organization takes its data with it
func (suite *PostgresTestSuite) TestDeleteOrganizationCascades() {
	org, tmpl, campaign := suite.seedCampaign()
	user := suite.factories.User.Create(org.ID)
	suite.Require().NoError(suite.users.Create(suite.ctx, user))
	suite.Require().NoError(suite.contacts.Create(suite.ctx, suite.factories.Contact.Create(org.ID)))
	suite.Require().NoError(suite.sends.Create(suite.ctx, &models.EmailSend{
		OrganizationID: org.ID,
		CampaignID:     campaign.ID,
		Cycle:          1,
		ToEmail:        "a@example.com",
		Status:         models.SendStatusSent,
	}))

	suite.Require().NoError(suite.orgs.Delete(suite.ctx, org.ID))

	_, err := suite.templates.GetByID(suite.ctx, org.ID, tmpl.ID)
	suite.ErrorIs(err, gorm.ErrRecordNotFound)
	_, err = suite.campaigns.Get(suite.ctx, campaign.ID)
	suite.ErrorIs(err, gorm.ErrRecordNotFound)
	_, err = suite.users.GetByID(suite.ctx, user.ID)
	suite.ErrorIs(err, gorm.ErrRecordNotFound)
	count, err := suite.contacts.CountByOrganizationID(suite.ctx, org.ID)
	suite.NoError(err)
	suite.Zero(count)
	sends, err := suite.sends.GetByCampaignID(suite.ctx, org.ID, campaign.ID, 10)
	suite.NoError(err)
	suite.Empty(sends)
}

// TestTemplateInUseCannotBeDeleted tests the campaign to template foreign key
func (suite *PostgresTestSuite) TestTemplateInUseCannotBeDeleted() {
	org, tmpl, _ := suite.seedCampaign()

	err := suite.templates.Delete(suite.ctx, org.ID, tmpl.ID)

	suite.Error(err)
	suite.True(IsForeignKeyViolation(err))
}

// TestDuplicatesAreUniqueViolations tests translation of Postgres unique errors
func (suite *PostgresTestSuite) TestDuplicatesAreUniqueViolations() {
	org := suite.factories.Organization.Create()
	suite.Require().NoError(suite.orgs.Create(suite.ctx, org))

	err := suite.orgs.Create(suite.ctx, suite.factories.Organization.WithSlug(org.Slug))
	suite.True(IsUniqueViolation(err))

	suite.Require().NoError(suite.contacts.Create(suite.ctx, suite.factories.Contact.WithEmail(org.ID, "ada@example.com")))
	err = suite.contacts.Create(suite.ctx, suite.factories.Contact.WithEmail(org.ID, "ada@example.com"))
	suite.True(IsUniqueViolation(err))
}

// TestBeginSendHasOneWinner tests the conditional status transition under contention
func (suite *PostgresTestSuite) TestBeginSendHasOneWinner() {
	org, _, campaign := suite.seedCampaign()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := suite.campaigns.BeginSend(suite.ctx, org.ID, campaign.ID, 0)
			suite.NoError(err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	suite.Equal(1, wins)
	got, err := suite.campaigns.Get(suite.ctx, campaign.ID)
	suite.Require().NoError(err)
	suite.Equal(models.CampaignStatusSending, got.Status)
	suite.Equal(1, got.SendCycle)
}

// TestConcurrentEnsureRoleConverges tests that concurrent seeding yields one row per name
func (suite *PostgresTestSuite) TestConcurrentEnsureRoleConverges() {
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.roles.EnsurePermission(suite.ctx, "campaigns.send", "Send campaigns")
			suite.NoError(err)
			_, err = suite.roles.EnsureRole(suite.ctx, "journey-architect", "Builds campaigns")
			suite.NoError(err)
		}()
	}
	wg.Wait()

	roles, err := suite.roles.GetAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Len(roles, 1)
	count, err := suite.roles.CountPermissions(suite.ctx)
	suite.Require().NoError(err)
	suite.EqualValues(1, count)
}

// TestPostgresTestSuite runs the test suite
func TestPostgresTestSuite(t *testing.T) {
	suite.Run(t, new(PostgresTestSuite))
}
