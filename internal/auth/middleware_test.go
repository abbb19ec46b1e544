package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type GateTestSuite struct {
	suite.Suite
	tokens *TokenService
	gate   *Gate
	router *gin.Engine
	orgID  uuid.UUID
	userID uuid.UUID
}

func (s *GateTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.tokens = NewTokenService("gate-secret")
	s.gate = NewGate(s.tokens, []string{"internal-key"})
	s.orgID = uuid.New()
	s.userID = uuid.New()

	s.router = gin.New()
	api := s.router.Group("/api", s.gate.Authenticate())
	api.GET("/campaigns", s.gate.RequirePermission("campaigns.manage"), func(c *gin.Context) {
		identity, _ := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"mode": identity.Mode})
	})
	api.GET("/organizations", s.gate.RequireInternal(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	api.GET("/organizations/:org_id/contacts", s.gate.RequirePermission("journeys.build"), s.gate.RequireSameOrganization("org_id"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	api.GET("/me", func(c *gin.Context) {
		identity, ok := RequireUser(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID.String()})
	})
}

func (s *GateTestSuite) bearer(permissions ...string) string {
	token, err := s.tokens.Issue(Claims{
		OrganizationID:   s.orgID.String(),
		Email:            "jane@example.com",
		Roles:            []string{"journey-architect"},
		Permissions:      permissions,
		RegisteredClaims: jwt.RegisteredClaims{Subject: s.userID.String()},
	}, time.Hour)
	s.Require().NoError(err)
	return "Bearer " + token
}

func (s *GateTestSuite) do(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *GateTestSuite) TestMissingCredentials() {
	w := s.do("/api/campaigns", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *GateTestSuite) TestInvalidToken() {
	w := s.do("/api/campaigns", map[string]string{"Authorization": "Bearer garbage"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do("/api/campaigns", map[string]string{"Authorization": "Token abc"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *GateTestSuite) TestExpiredToken() {
	expired, err := s.tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).Issue(Claims{
		OrganizationID:   s.orgID.String(),
		Permissions:      []string{"campaigns.manage"},
		RegisteredClaims: jwt.RegisteredClaims{Subject: s.userID.String()},
	}, time.Hour)
	s.Require().NoError(err)

	w := s.do("/api/campaigns", map[string]string{"Authorization": "Bearer " + expired})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *GateTestSuite) TestBearerWithPermission() {
	w := s.do("/api/campaigns", map[string]string{"Authorization": s.bearer("campaigns.manage")})
	s.Equal(http.StatusOK, w.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(string(ModeBearer), body["mode"])
}

func (s *GateTestSuite) TestBearerWithoutPermission() {
	w := s.do("/api/campaigns", map[string]string{"Authorization": s.bearer("campaigns.send")})
	s.Equal(http.StatusForbidden, w.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("Insufficient permissions", body["error"])
}

func (s *GateTestSuite) TestServiceCredentialsSatisfyAnyPermission() {
	w := s.do("/api/campaigns", map[string]string{APIKeyHeader: "internal-key"})
	s.Equal(http.StatusOK, w.Code)
}

func (s *GateTestSuite) TestAPIKeyIsCaseSensitive() {
	w := s.do("/api/campaigns", map[string]string{APIKeyHeader: "INTERNAL-KEY"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *GateTestSuite) TestRequireInternal() {
	w := s.do("/api/organizations", map[string]string{"Authorization": s.bearer("*")})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do("/api/organizations", map[string]string{APIKeyHeader: "internal-key"})
	s.Equal(http.StatusOK, w.Code)
}

func (s *GateTestSuite) TestRequireSameOrganization() {
	auth := map[string]string{"Authorization": s.bearer("journeys.build")}

	w := s.do("/api/organizations/"+s.orgID.String()+"/contacts", auth)
	s.Equal(http.StatusOK, w.Code)

	w = s.do("/api/organizations/"+uuid.NewString()+"/contacts", auth)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do("/api/organizations/not-a-uuid/contacts", auth)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do("/api/organizations/"+uuid.NewString()+"/contacts", map[string]string{APIKeyHeader: "internal-key"})
	s.Equal(http.StatusOK, w.Code)
}

func (s *GateTestSuite) TestRequireUser() {
	w := s.do("/api/me", map[string]string{APIKeyHeader: "internal-key"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do("/api/me", map[string]string{"Authorization": s.bearer()})
	s.Equal(http.StatusOK, w.Code)
}

func TestGateTestSuite(t *testing.T) {
	suite.Run(t, new(GateTestSuite))
}

func TestIdentityHelpers(t *testing.T) {
	service := ServiceIdentity()
	assert.True(t, service.IsService())
	assert.True(t, service.Can("anything"))
	assert.Equal(t, []string{"internal"}, service.Roles)

	var nilIdentity *Identity
	assert.False(t, nilIdentity.Can("campaigns.send"))

	user := &Identity{Mode: ModeBearer, Permissions: []string{"campaigns.send"}}
	ctx := ContextWithIdentity(t.Context(), user)
	got, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, user, got)
}
