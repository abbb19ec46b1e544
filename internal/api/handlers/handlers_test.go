package handlers

import (
	"time"

	"email-marketing-backend/internal/auth"
	"email-marketing-backend/internal/testutils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const handlerTestSecret = "handler-test-secret"

// testCaller is a bearer identity issued for handler tests
type testCaller struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Token          string
}

// newAuthenticatedRouter returns an HTTP test suite whose API group runs the real gate
func newAuthenticatedRouter() (*testutils.HTTPTestSuite, *gin.RouterGroup, *auth.TokenService) {
	httpSuite := testutils.SetupHTTPTest()
	tokens := auth.NewTokenService(handlerTestSecret)
	gate := auth.NewGate(tokens, []string{testutils.TestAPIKey})
	api := httpSuite.Router.Group("/api", gate.Authenticate())
	return httpSuite, api, tokens
}

func issueCaller(tokens *auth.TokenService, roles, permissions []string) testCaller {
	caller := testCaller{UserID: uuid.New(), OrganizationID: uuid.New()}
	claims := auth.Claims{
		OrganizationID: caller.OrganizationID.String(),
		Email:          "caller@example.com",
		Roles:          roles,
		Permissions:    permissions,
	}
	claims.Subject = caller.UserID.String()
	token, err := tokens.Issue(claims, time.Hour)
	if err != nil {
		panic(err)
	}
	caller.Token = token
	return caller
}
