package service_test

import (
	"context"
	"errors"
	"testing"

	"email-marketing-backend/internal/database/models"
	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/mocks"
	"email-marketing-backend/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

// OrganizationServiceTestSuite defines the test suite for OrganizationService
type OrganizationServiceTestSuite struct {
	suite.Suite
	ctx                 context.Context
	ctrl                *gomock.Controller
	mockOrgRepo         *mocks.MockOrganizationRepositoryInterface
	organizationService *service.OrganizationService
}

// SetupTest sets up the test suite
func (suite *OrganizationServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.ctrl = gomock.NewController(suite.T())
	suite.mockOrgRepo = mocks.NewMockOrganizationRepositoryInterface(suite.ctrl)
	suite.organizationService = service.NewOrganizationService(suite.mockOrgRepo, service.NewValidator())
}

// TearDownTest cleans up after each test
func (suite *OrganizationServiceTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

// TestCreateOrganization tests creating an organization
func (suite *OrganizationServiceTestSuite) TestCreateOrganization() {
	req := &service.CreateOrganizationRequest{Name: "  Acme Labs ", Slug: "Acme Labs"}

	suite.mockOrgRepo.EXPECT().GetByName(gomock.Any(), "Acme Labs").Return(nil, gorm.ErrRecordNotFound)
	suite.mockOrgRepo.EXPECT().GetBySlug(gomock.Any(), "acme-labs").Return(nil, gorm.ErrRecordNotFound)
	suite.mockOrgRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, org *models.Organization) error {
			org.ID = uuid.New()
			return nil
		})

	response, err := suite.organizationService.Create(suite.ctx, req)

	suite.Require().NoError(err)
	suite.NotEqual(uuid.Nil, response.ID)
	suite.Equal("Acme Labs", response.Name)
	suite.Equal("acme-labs", response.Slug)
}

// TestCreateOrganizationValidationError tests creating an organization with an empty name
func (suite *OrganizationServiceTestSuite) TestCreateOrganizationValidationError() {
	req := &service.CreateOrganizationRequest{Name: "   ", Slug: "acme"}

	response, err := suite.organizationService.Create(suite.ctx, req)

	suite.Nil(response)
	suite.True(apperrors.IsValidation(err))
	var vErr *apperrors.ValidationError
	suite.Require().ErrorAs(err, &vErr)
	suite.Equal("is required", vErr.Details()["name"])
}

// TestCreateOrganizationNameExists tests the duplicate name path
func (suite *OrganizationServiceTestSuite) TestCreateOrganizationNameExists() {
	req := &service.CreateOrganizationRequest{Name: "Acme", Slug: "acme"}
	suite.mockOrgRepo.EXPECT().GetByName(gomock.Any(), "Acme").Return(&models.Organization{Name: "Acme"}, nil)

	_, err := suite.organizationService.Create(suite.ctx, req)

	suite.ErrorIs(err, apperrors.ErrOrganizationExists)
}

// TestCreateOrganizationSlugExists tests the duplicate slug path
func (suite *OrganizationServiceTestSuite) TestCreateOrganizationSlugExists() {
	req := &service.CreateOrganizationRequest{Name: "Acme", Slug: "acme"}
	suite.mockOrgRepo.EXPECT().GetByName(gomock.Any(), "Acme").Return(nil, gorm.ErrRecordNotFound)
	suite.mockOrgRepo.EXPECT().GetBySlug(gomock.Any(), "acme").Return(&models.Organization{Slug: "acme"}, nil)

	_, err := suite.organizationService.Create(suite.ctx, req)

	suite.ErrorIs(err, apperrors.ErrOrganizationExists)
}

// TestCreateOrganizationRepositoryError tests that unexpected errors are wrapped
func (suite *OrganizationServiceTestSuite) TestCreateOrganizationRepositoryError() {
	req := &service.CreateOrganizationRequest{Name: "Acme", Slug: "acme"}
	boom := errors.New("connection reset")
	suite.mockOrgRepo.EXPECT().GetByName(gomock.Any(), "Acme").Return(nil, boom)

	_, err := suite.organizationService.Create(suite.ctx, req)

	suite.ErrorIs(err, boom)
	suite.False(apperrors.IsAlreadyExists(err))
}

// TestGetByIDNotFound tests retrieving a missing organization
func (suite *OrganizationServiceTestSuite) TestGetByIDNotFound() {
	id := uuid.New()
	suite.mockOrgRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, gorm.ErrRecordNotFound)

	_, err := suite.organizationService.GetByID(suite.ctx, id)

	suite.ErrorIs(err, apperrors.ErrOrganizationNotFound)
}

// TestGetAllClampsPagination tests that page and page size are normalized
func (suite *OrganizationServiceTestSuite) TestGetAllClampsPagination() {
	orgs := []models.Organization{{Name: "A", Slug: "a"}, {Name: "B", Slug: "b"}}
	suite.mockOrgRepo.EXPECT().GetAll(gomock.Any(), 100, 0).Return(orgs, int64(2), nil)

	response, err := suite.organizationService.GetAll(suite.ctx, 0, 1000)

	suite.Require().NoError(err)
	suite.Equal(1, response.Page)
	suite.Equal(100, response.PageSize)
	suite.EqualValues(2, response.Total)
	suite.Len(response.Organizations, 2)
}

// TestGetAllOffset tests the offset passed for later pages
func (suite *OrganizationServiceTestSuite) TestGetAllOffset() {
	suite.mockOrgRepo.EXPECT().GetAll(gomock.Any(), 20, 40).Return([]models.Organization{}, int64(41), nil)

	response, err := suite.organizationService.GetAll(suite.ctx, 3, 0)

	suite.Require().NoError(err)
	suite.Equal(20, response.PageSize)
	suite.Empty(response.Organizations)
}

// TestOrganizationServiceTestSuite runs the test suite
func TestOrganizationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OrganizationServiceTestSuite))
}
