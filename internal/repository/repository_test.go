package repository

import (
	"context"
	"testing"
	"time"

	"email-marketing-backend/internal/database/models"
	"email-marketing-backend/internal/testutils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// RepositoryTestSuite exercises the repositories against an in-memory SQLite database
type RepositoryTestSuite struct {
	suite.Suite
	ctx       context.Context
	db        *gorm.DB
	factories *testutils.FactorySet

	orgs      *OrganizationRepository
	users     *UserRepository
	roles     *RoleRepository
	contacts  *ContactRepository
	templates *TemplateRepository
	campaigns *CampaignRepository
	sends     *EmailSendRepository
}

// SetupTest runs before each test
func (suite *RepositoryTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = testutils.NewSQLiteDB(suite.T())
	suite.factories = testutils.NewFactorySet()

	suite.orgs = NewOrganizationRepository(suite.db)
	suite.users = NewUserRepository(suite.db)
	suite.roles = NewRoleRepository(suite.db)
	suite.contacts = NewContactRepository(suite.db)
	suite.templates = NewTemplateRepository(suite.db)
	suite.campaigns = NewCampaignRepository(suite.db)
	suite.sends = NewEmailSendRepository(suite.db)
}

func (suite *RepositoryTestSuite) createOrg() *models.Organization {
	org := suite.factories.Organization.Create()
	suite.Require().NoError(suite.orgs.Create(suite.ctx, org))
	return org
}

func (suite *RepositoryTestSuite) createTemplate(orgID uuid.UUID) *models.EmailTemplate {
	tmpl := suite.factories.Template.Create(orgID)
	suite.Require().NoError(suite.templates.Create(suite.ctx, tmpl))
	return tmpl
}

// TestOrganizationSlugIsUnique tests the organization slug constraint
func (suite *RepositoryTestSuite) TestOrganizationSlugIsUnique() {
	org := suite.createOrg()

	dup := suite.factories.Organization.Create()
	dup.Slug = org.Slug
	err := suite.orgs.Create(suite.ctx, dup)

	suite.Error(err)
	suite.True(IsUniqueViolation(err))

	found, err := suite.orgs.GetBySlug(suite.ctx, org.Slug)
	suite.NoError(err)
	suite.Equal(org.ID, found.ID)

	_, err = suite.orgs.GetBySlug(suite.ctx, "missing")
	suite.True(IsNotFound(err))
}

// TestContactEmailUniquePerOrganization tests the (organization, email) constraint
func (suite *RepositoryTestSuite) TestContactEmailUniquePerOrganization() {
	orgA := suite.createOrg()
	orgB := suite.createOrg()

	suite.NoError(suite.contacts.Create(suite.ctx, suite.factories.Contact.WithEmail(orgA.ID, "a@example.com")))
	suite.NoError(suite.contacts.Create(suite.ctx, suite.factories.Contact.WithEmail(orgB.ID, "a@example.com")))

	err := suite.contacts.Create(suite.ctx, suite.factories.Contact.WithEmail(orgA.ID, "a@example.com"))
	suite.True(IsUniqueViolation(err))

	emails, err := suite.contacts.EmailsByOrganizationID(suite.ctx, orgA.ID)
	suite.NoError(err)
	suite.Equal([]string{"a@example.com"}, emails)

	count, err := suite.contacts.CountByOrganizationID(suite.ctx, orgB.ID)
	suite.NoError(err)
	suite.EqualValues(1, count)
}

// TestTemplateScopedByOrganization tests that template lookups never cross tenants
func (suite *RepositoryTestSuite) TestTemplateScopedByOrganization() {
	orgA := suite.createOrg()
	orgB := suite.createOrg()
	tmpl := suite.createTemplate(orgA.ID)

	_, err := suite.templates.GetByID(suite.ctx, orgB.ID, tmpl.ID)
	suite.True(IsNotFound(err))

	tmpl.Name = "Renamed"
	tmpl.OrganizationID = orgB.ID
	suite.NoError(suite.templates.Update(suite.ctx, tmpl))

	stored, err := suite.templates.GetByID(suite.ctx, orgA.ID, tmpl.ID)
	suite.NoError(err)
	suite.Equal("Renamed", stored.Name)
	suite.Equal(orgA.ID, stored.OrganizationID)

	suite.True(IsNotFound(suite.templates.Delete(suite.ctx, orgB.ID, tmpl.ID)))
}

// TestTemplateNameUniquePerOrganization tests the (organization, name) constraint
func (suite *RepositoryTestSuite) TestTemplateNameUniquePerOrganization() {
	org := suite.createOrg()
	tmpl := suite.createTemplate(org.ID)

	dup := suite.factories.Template.Create(org.ID)
	dup.Name = tmpl.Name
	suite.True(IsUniqueViolation(suite.templates.Create(suite.ctx, dup)))
}

// TestTemplateDeleteBlockedByCampaign tests that a referenced template cannot be removed
func (suite *RepositoryTestSuite) TestTemplateDeleteBlockedByCampaign() {
	org := suite.createOrg()
	tmpl := suite.createTemplate(org.ID)
	suite.Require().NoError(suite.campaigns.Create(suite.ctx, suite.factories.Campaign.Create(org.ID, tmpl.ID)))

	refs, err := suite.templates.CountCampaignReferences(suite.ctx, tmpl.ID)
	suite.NoError(err)
	suite.EqualValues(1, refs)

	err = suite.templates.Delete(suite.ctx, org.ID, tmpl.ID)
	suite.True(IsForeignKeyViolation(err))
}

// TestBeginSendIsConditional tests the atomic draft -> sending transition
func (suite *RepositoryTestSuite) TestBeginSendIsConditional() {
	org := suite.createOrg()
	tmpl := suite.createTemplate(org.ID)
	campaign := suite.factories.Campaign.Create(org.ID, tmpl.ID)
	suite.Require().NoError(suite.campaigns.Create(suite.ctx, campaign))

	ok, err := suite.campaigns.BeginSend(suite.ctx, org.ID, campaign.ID, 0)
	suite.NoError(err)
	suite.True(ok)

	// A second trigger with the stale cycle loses
	ok, err = suite.campaigns.BeginSend(suite.ctx, org.ID, campaign.ID, 0)
	suite.NoError(err)
	suite.False(ok)

	stored, err := suite.campaigns.Get(suite.ctx, campaign.ID)
	suite.NoError(err)
	suite.Equal(models.CampaignStatusSending, stored.Status)
	suite.Equal(1, stored.SendCycle)

	// Still sending: even the current cycle cannot start again
	ok, err = suite.campaigns.BeginSend(suite.ctx, org.ID, campaign.ID, 1)
	suite.NoError(err)
	suite.False(ok)

	suite.NoError(suite.campaigns.AbortSend(suite.ctx, campaign.ID, 1, models.CampaignStatusDraft))
	stored, err = suite.campaigns.Get(suite.ctx, campaign.ID)
	suite.NoError(err)
	suite.Equal(models.CampaignStatusDraft, stored.Status)
	suite.Equal(0, stored.SendCycle)
}

// TestFinishSendOnlyAppliesToCurrentCycle tests that stale runs cannot overwrite status
func (suite *RepositoryTestSuite) TestFinishSendOnlyAppliesToCurrentCycle() {
	org := suite.createOrg()
	tmpl := suite.createTemplate(org.ID)
	campaign := suite.factories.Campaign.Create(org.ID, tmpl.ID)
	suite.Require().NoError(suite.campaigns.Create(suite.ctx, campaign))

	ok, err := suite.campaigns.BeginSend(suite.ctx, org.ID, campaign.ID, 0)
	suite.Require().NoError(err)
	suite.Require().True(ok)

	applied, err := suite.campaigns.FinishSend(suite.ctx, campaign.ID, 2, models.CampaignStatusSent, "")
	suite.NoError(err)
	suite.False(applied)

	applied, err = suite.campaigns.FinishSend(suite.ctx, campaign.ID, 1, models.CampaignStatusPartial, "1 of 2 failed")
	suite.NoError(err)
	suite.True(applied)

	stored, err := suite.campaigns.Get(suite.ctx, campaign.ID)
	suite.NoError(err)
	suite.Equal(models.CampaignStatusPartial, stored.Status)
	suite.Equal("1 of 2 failed", stored.LastError)

	sending, err := suite.campaigns.GetByStatus(suite.ctx, models.CampaignStatusSending)
	suite.NoError(err)
	suite.Empty(sending)
}

// TestEmailSendAttemptKey tests the (campaign, cycle, recipient) idempotency key
func (suite *RepositoryTestSuite) TestEmailSendAttemptKey() {
	org := suite.createOrg()
	tmpl := suite.createTemplate(org.ID)
	campaign := suite.factories.Campaign.Create(org.ID, tmpl.ID)
	suite.Require().NoError(suite.campaigns.Create(suite.ctx, campaign))

	first := &models.EmailSend{OrganizationID: org.ID, CampaignID: campaign.ID, Cycle: 1, ToEmail: "a@example.com", Status: models.SendStatusQueued}
	suite.NoError(suite.sends.Create(suite.ctx, first))

	dup := &models.EmailSend{OrganizationID: org.ID, CampaignID: campaign.ID, Cycle: 1, ToEmail: "a@example.com", Status: models.SendStatusQueued}
	suite.True(IsUniqueViolation(suite.sends.Create(suite.ctx, dup)))

	nextCycle := &models.EmailSend{OrganizationID: org.ID, CampaignID: campaign.ID, Cycle: 2, ToEmail: "a@example.com", Status: models.SendStatusQueued}
	suite.NoError(suite.sends.Create(suite.ctx, nextCycle))

	msg := "mailbox full"
	suite.NoError(suite.sends.UpdateResult(suite.ctx, first.ID, models.SendStatusFailed, &msg))

	byRecipient, err := suite.sends.GetByCycle(suite.ctx, campaign.ID, 1)
	suite.NoError(err)
	suite.Require().Contains(byRecipient, "a@example.com")
	suite.Equal(models.SendStatusFailed, byRecipient["a@example.com"].Status)
	suite.Equal("mailbox full", *byRecipient["a@example.com"].Error)

	counts, err := suite.sends.CountByStatus(suite.ctx, campaign.ID, 2)
	suite.NoError(err)
	suite.EqualValues(1, counts[models.SendStatusQueued])
}

// TestSendsNewestFirst tests ordering and limit of the send listing
func (suite *RepositoryTestSuite) TestSendsNewestFirst() {
	org := suite.createOrg()
	tmpl := suite.createTemplate(org.ID)
	campaign := suite.factories.Campaign.Create(org.ID, tmpl.ID)
	suite.Require().NoError(suite.campaigns.Create(suite.ctx, campaign))

	base := time.Now().Add(-time.Hour)
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		send := &models.EmailSend{OrganizationID: org.ID, CampaignID: campaign.ID, Cycle: 1, ToEmail: email, Status: models.SendStatusSent}
		send.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		suite.Require().NoError(suite.sends.Create(suite.ctx, send))
	}

	sends, err := suite.sends.GetByCampaignID(suite.ctx, org.ID, campaign.ID, 2)
	suite.NoError(err)
	suite.Require().Len(sends, 2)
	suite.Equal("c@example.com", sends[0].ToEmail)
	suite.Equal("b@example.com", sends[1].ToEmail)

	other, err := suite.sends.GetByCampaignID(suite.ctx, uuid.New(), campaign.ID, 200)
	suite.NoError(err)
	suite.Empty(other)
}

// TestRolesAndPermissions tests role upserts, replacement and permission resolution
func (suite *RepositoryTestSuite) TestRolesAndPermissions() {
	org := suite.createOrg()
	user := suite.factories.User.Create(org.ID)
	suite.Require().NoError(suite.users.Create(suite.ctx, user))

	var roleA, roleB *models.Role
	err := suite.roles.Transaction(suite.ctx, func(repo RoleRepositoryInterface) error {
		p1, err := repo.EnsurePermission(suite.ctx, "campaigns.send", "Send")
		if err != nil {
			return err
		}
		p2, err := repo.EnsurePermission(suite.ctx, "campaigns.manage", "Manage")
		if err != nil {
			return err
		}
		if roleA, err = repo.EnsureRole(suite.ctx, "sender", ""); err != nil {
			return err
		}
		if roleB, err = repo.EnsureRole(suite.ctx, "manager", ""); err != nil {
			return err
		}
		if err := repo.ReplacePermissions(suite.ctx, roleA, []models.Permission{*p1}); err != nil {
			return err
		}
		return repo.ReplacePermissions(suite.ctx, roleB, []models.Permission{*p1, *p2})
	})
	suite.Require().NoError(err)

	again, err := suite.roles.EnsurePermission(suite.ctx, "campaigns.send", "Send campaigns")
	suite.NoError(err)
	suite.Equal("Send campaigns", again.Description)
	count, err := suite.roles.CountPermissions(suite.ctx)
	suite.NoError(err)
	suite.EqualValues(2, count)

	suite.NoError(suite.users.ReplaceRoles(suite.ctx, user, []models.Role{*roleA, *roleB}))
	perms, err := suite.users.PermissionNames(suite.ctx, user.ID)
	suite.NoError(err)
	suite.Equal([]string{"campaigns.manage", "campaigns.send"}, perms)

	suite.NoError(suite.users.ReplaceRoles(suite.ctx, user, nil))
	perms, err = suite.users.PermissionNames(suite.ctx, user.ID)
	suite.NoError(err)
	suite.Empty(perms)

	found, err := suite.roles.GetByNames(suite.ctx, []string{"sender", "ghost"})
	suite.NoError(err)
	suite.Len(found, 1)
}

// TestOrganizationDeleteCascades tests that tenant-owned rows disappear with the organization
func (suite *RepositoryTestSuite) TestOrganizationDeleteCascades() {
	org := suite.createOrg()
	tmpl := suite.createTemplate(org.ID)
	campaign := suite.factories.Campaign.Create(org.ID, tmpl.ID)
	suite.Require().NoError(suite.campaigns.Create(suite.ctx, campaign))
	suite.Require().NoError(suite.contacts.Create(suite.ctx, suite.factories.Contact.Create(org.ID)))
	suite.Require().NoError(suite.sends.Create(suite.ctx, &models.EmailSend{
		OrganizationID: org.ID, CampaignID: campaign.ID, Cycle: 1, ToEmail: "a@example.com", Status: models.SendStatusSent,
	}))

	suite.NoError(suite.orgs.Delete(suite.ctx, org.ID))

	for _, model := range []interface{}{&models.Contact{}, &models.EmailTemplate{}, &models.Campaign{}, &models.EmailSend{}} {
		var count int64
		suite.NoError(suite.db.Model(model).Count(&count).Error)
		suite.Zero(count)
	}
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
