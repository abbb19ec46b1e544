package handlers

import (
	"net/http"
	"testing"

	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/mocks"
	"email-marketing-backend/internal/service"
	"email-marketing-backend/internal/testutils"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

// AuthHandlerTestSuite defines the test suite for AuthHandler
type AuthHandlerTestSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	mockService *mocks.MockAuthServiceInterface
	httpSuite   *testutils.HTTPTestSuite
	caller      testCaller
}

// SetupTest sets up the test suite
func (suite *AuthHandlerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.mockService = mocks.NewMockAuthServiceInterface(suite.ctrl)
	handler := NewAuthHandler(suite.mockService)

	httpSuite, api, tokens := newAuthenticatedRouter()
	suite.httpSuite = httpSuite
	suite.caller = issueCaller(tokens, []string{"journey-architect"}, []string{"journeys.build"})

	public := httpSuite.Router.Group("/api/auth")
	public.POST("/register", handler.Register)
	public.POST("/login", handler.Login)
	api.GET("/auth/me", handler.Me)
}

// TearDownTest cleans up after each test
func (suite *AuthHandlerTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

// TestRegister tests a successful registration
func (suite *AuthHandlerTestSuite) TestRegister() {
	suite.mockService.EXPECT().Register(gomock.Any(), gomock.Any()).
		Return(&service.AuthResponse{AccessToken: "token", TokenType: "bearer", ExpiresIn: 3600, Roles: []string{"journey-architect"}}, nil)

	recorder := suite.httpSuite.MakeRequest(http.MethodPost, "/api/auth/register",
		map[string]string{"email": "jane@example.com", "password": "correct-horse"})

	var response service.AuthResponse
	testutils.AssertJSONResponse(suite.T(), recorder, http.StatusCreated, &response)
	suite.Equal("token", response.AccessToken)
	suite.Equal("bearer", response.TokenType)
}

// TestRegisterDuplicate tests the duplicate email conflict
func (suite *AuthHandlerTestSuite) TestRegisterDuplicate() {
	suite.mockService.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperrors.ErrUserExists)

	recorder := suite.httpSuite.MakeRequest(http.MethodPost, "/api/auth/register",
		map[string]string{"email": "jane@example.com", "password": "correct-horse"})

	testutils.AssertErrorResponse(suite.T(), recorder, http.StatusConflict, "user already exists")
}

// TestLoginInvalidCredentials tests that bad credentials give 401
func (suite *AuthHandlerTestSuite) TestLoginInvalidCredentials() {
	suite.mockService.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, apperrors.ErrInvalidCredentials)

	recorder := suite.httpSuite.MakeRequest(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "jane@example.com", "password": "nope"})

	testutils.AssertErrorResponse(suite.T(), recorder, http.StatusUnauthorized, "Invalid credentials")
}

// TestLoginMalformedBody tests an unparseable body
func (suite *AuthHandlerTestSuite) TestLoginMalformedBody() {
	recorder := suite.httpSuite.MakeRequest(http.MethodPost, "/api/auth/login", "[")

	testutils.AssertErrorResponse(suite.T(), recorder, http.StatusBadRequest, "Invalid request body")
}

// TestMe tests that the token roles are passed through
func (suite *AuthHandlerTestSuite) TestMe() {
	suite.mockService.EXPECT().Me(gomock.Any(), suite.caller.UserID, []string{"journey-architect"}).
		Return(&service.MeResponse{Roles: []string{"journey-architect"}, Permissions: []string{"journeys.build"}}, nil)

	recorder := suite.httpSuite.MakeRequestWithHeaders(http.MethodGet, "/api/auth/me", nil, testutils.BearerHeaders(suite.caller.Token))

	var response service.MeResponse
	testutils.AssertJSONResponse(suite.T(), recorder, http.StatusOK, &response)
	suite.Equal([]string{"journeys.build"}, response.Permissions)
}

// TestMeInvalidToken tests a tampered token
func (suite *AuthHandlerTestSuite) TestMeInvalidToken() {
	recorder := suite.httpSuite.MakeRequestWithHeaders(http.MethodGet, "/api/auth/me", nil, testutils.BearerHeaders(suite.caller.Token+"x"))

	testutils.AssertErrorResponse(suite.T(), recorder, http.StatusUnauthorized, "Invalid or expired token")
}

// TestAuthHandlerTestSuite runs the test suite
func TestAuthHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerTestSuite))
}
