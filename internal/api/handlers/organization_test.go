package handlers

import (
	"net/http"
	"testing"

	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/mocks"
	"email-marketing-backend/internal/service"
	"email-marketing-backend/internal/testutils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

// OrganizationHandlerTestSuite defines the test suite for OrganizationHandler
type OrganizationHandlerTestSuite struct {
	suite.Suite
	ctrl                    *gomock.Controller
	mockOrganizationService *mocks.MockOrganizationServiceInterface
	handler                 *OrganizationHandler
	httpSuite               *testutils.HTTPTestSuite
}

// SetupTest sets up the test suite
func (suite *OrganizationHandlerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.mockOrganizationService = mocks.NewMockOrganizationServiceInterface(suite.ctrl)
	suite.handler = NewOrganizationHandler(suite.mockOrganizationService)

	httpSuite, api, _ := newAuthenticatedRouter()
	suite.httpSuite = httpSuite
	orgs := api.Group("/organizations")
	{
		orgs.POST("", suite.handler.CreateOrganization)
		orgs.GET("", suite.handler.ListOrganizations)
		orgs.GET("/:id", suite.handler.GetOrganization)
	}
}

// TearDownTest cleans up after each test
func (suite *OrganizationHandlerTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

// TestCreateOrganization tests creating an organization
func (suite *OrganizationHandlerTestSuite) TestCreateOrganization() {
	orgID := uuid.New()
	requestBody := map[string]interface{}{"name": "Acme Labs", "slug": "acme-labs"}
	expectedResponse := &service.OrganizationResponse{
		ID:        orgID,
		Name:      "Acme Labs",
		Slug:      "acme-labs",
		CreatedAt: "2024-01-01T00:00:00Z",
	}

	suite.mockOrganizationService.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(expectedResponse, nil).
		Times(1)

	recorder := suite.httpSuite.MakeRequestWithHeaders("POST", "/api/organizations", requestBody, testutils.APIKeyHeaders())

	assert.Equal(suite.T(), http.StatusCreated, recorder.Code)
	var response struct {
		Data service.OrganizationResponse `json:"data"`
	}
	testutils.ParseJSONResponse(suite.T(), recorder, &response)
	assert.Equal(suite.T(), expectedResponse.Name, response.Data.Name)
	assert.Equal(suite.T(), expectedResponse.Slug, response.Data.Slug)
}

// TestCreateOrganizationConflict tests creating a duplicate organization
func (suite *OrganizationHandlerTestSuite) TestCreateOrganizationConflict() {
	suite.mockOrganizationService.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(nil, apperrors.ErrOrganizationExists)

	recorder := suite.httpSuite.MakeRequestWithHeaders("POST", "/api/organizations",
		map[string]interface{}{"name": "Acme", "slug": "acme"}, testutils.APIKeyHeaders())

	testutils.AssertErrorResponse(suite.T(), recorder, http.StatusConflict, "organization already exists")
}

// TestGetOrganizationInvalidID tests retrieving an organization with a malformed id
func (suite *OrganizationHandlerTestSuite) TestGetOrganizationInvalidID() {
	recorder := suite.httpSuite.MakeRequestWithHeaders("GET", "/api/organizations/invalid-uuid", nil, testutils.APIKeyHeaders())

	testutils.AssertErrorResponse(suite.T(), recorder, http.StatusBadRequest, "Invalid organization ID")
}

// TestGetOrganizationNotFound tests retrieving a missing organization
func (suite *OrganizationHandlerTestSuite) TestGetOrganizationNotFound() {
	orgID := uuid.New()
	suite.mockOrganizationService.EXPECT().
		GetByID(gomock.Any(), orgID).
		Return(nil, apperrors.ErrOrganizationNotFound)

	recorder := suite.httpSuite.MakeRequestWithHeaders("GET", "/api/organizations/"+orgID.String(), nil, testutils.APIKeyHeaders())

	testutils.AssertErrorResponse(suite.T(), recorder, http.StatusNotFound, "organization not found")
}

// TestListOrganizations tests listing organizations with pagination
func (suite *OrganizationHandlerTestSuite) TestListOrganizations() {
	suite.mockOrganizationService.EXPECT().
		GetAll(gomock.Any(), 1, 20).
		Return(&service.OrganizationListResponse{
			Organizations: []service.OrganizationResponse{{Name: "Acme", Slug: "acme"}},
			Total:         1,
			Page:          1,
			PageSize:      20,
		}, nil)

	recorder := suite.httpSuite.MakeRequestWithHeaders("GET", "/api/organizations", nil, testutils.APIKeyHeaders())

	var response service.OrganizationListResponse
	testutils.AssertJSONResponse(suite.T(), recorder, http.StatusOK, &response)
	assert.Len(suite.T(), response.Organizations, 1)
	assert.EqualValues(suite.T(), 1, response.Total)
}

// TestOrganizationHandlerTestSuite runs the test suite
func TestOrganizationHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(OrganizationHandlerTestSuite))
}
