package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/logger"
)

// APIKeyHeader carries service credentials
const APIKeyHeader = "X-API-Key"

// Gate authenticates requests and enforces permission, internal-only and tenant checks
type Gate struct {
	tokens  *TokenService
	apiKeys [][]byte
}

// NewGate creates a gate verifying bearer tokens with tokens and service credentials against apiKeys
func NewGate(tokens *TokenService, apiKeys []string) *Gate {
	keys := make([][]byte, 0, len(apiKeys))
	for _, key := range apiKeys {
		if key != "" {
			keys = append(keys, []byte(key))
		}
	}
	return &Gate{tokens: tokens, apiKeys: keys}
}

// Authenticate establishes the identity of the caller. A recognised API key wins
// over a bearer token; anything else is rejected with 401 before the handler runs.
func (g *Gate) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(APIKeyHeader); key != "" {
			if !g.validAPIKey(key) {
				abortWithError(c, http.StatusUnauthorized, apperrors.ErrInvalidCredentials, "")
				return
			}
			g.attach(c, ServiceIdentity())
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, apperrors.ErrMissingCredentials, "")
			return
		}

		// Extract token from Bearer header
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			abortWithError(c, http.StatusUnauthorized, apperrors.ErrInvalidToken, "Invalid authorization header format")
			return
		}

		claims, err := g.tokens.Verify(tokenString)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, apperrors.ErrInvalidToken, err.Error())
			return
		}

		identity, err := identityFromClaims(claims)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, apperrors.ErrInvalidToken, err.Error())
			return
		}

		g.attach(c, identity)
		c.Next()
	}
}

// RequirePermission rejects callers whose permission set lacks permission
func (g *Gate) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, apperrors.ErrMissingCredentials, "")
			return
		}
		if !identity.Can(permission) {
			logger.WithContext(c.Request.Context()).WithField("permission", permission).Warn("permission denied")
			abortWithError(c, http.StatusForbidden, apperrors.ErrInsufficientPerms, "")
			return
		}
		c.Next()
	}
}

// RequireInternal admits only service credentials
func (g *Gate) RequireInternal() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, apperrors.ErrMissingCredentials, "")
			return
		}
		if !identity.IsService() {
			abortWithError(c, http.StatusForbidden, apperrors.ErrInternalOnly, "")
			return
		}
		c.Next()
	}
}

// RequireSameOrganization rejects bearer callers addressing another organization
// through the named path parameter. Service credentials are not tenant-bound.
func (g *Gate) RequireSameOrganization(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, apperrors.ErrMissingCredentials, "")
			return
		}
		if identity.IsService() {
			c.Next()
			return
		}
		target, err := uuid.Parse(c.Param(param))
		if err != nil || target != identity.OrganizationID {
			abortWithError(c, http.StatusForbidden, apperrors.ErrCrossOrganization, "")
			return
		}
		c.Next()
	}
}

// RequireUser returns the caller identity when it belongs to a user. Service
// credentials have no organization to scope to and get 401.
func RequireUser(c *gin.Context) (*Identity, bool) {
	identity, ok := GetIdentity(c)
	if !ok || identity.IsService() {
		abortWithError(c, http.StatusUnauthorized, apperrors.ErrUserRequired, "")
		return nil, false
	}
	return identity, true
}

func (g *Gate) validAPIKey(key string) bool {
	candidate := []byte(key)
	matched := false
	for _, allowed := range g.apiKeys {
		if subtle.ConstantTimeCompare(candidate, allowed) == 1 {
			matched = true
		}
	}
	return matched
}

func (g *Gate) attach(c *gin.Context, identity *Identity) {
	c.Set(identityKey, identity)

	ctx := ContextWithIdentity(c.Request.Context(), identity)
	if identity.IsService() {
		ctx = logger.ContextWithUser(ctx, "service", "")
	} else {
		ctx = logger.ContextWithUser(ctx, identity.UserID.String(), identity.OrganizationID.String())
	}
	c.Request = c.Request.WithContext(ctx)
}

func identityFromClaims(claims *Claims) (*Identity, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, &TokenError{Reason: "invalid subject", Err: err}
	}
	orgID, err := uuid.Parse(claims.OrganizationID)
	if err != nil {
		return nil, &TokenError{Reason: "invalid organization", Err: err}
	}
	return &Identity{
		Mode:           ModeBearer,
		UserID:         userID,
		OrganizationID: orgID,
		Email:          claims.Email,
		Roles:          append([]string(nil), claims.Roles...),
		Permissions:    append([]string(nil), claims.Permissions...),
	}, nil
}

func abortWithError(c *gin.Context, status int, err error, details string) {
	body := gin.H{"error": err.Error()}
	if details != "" {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, body)
}
