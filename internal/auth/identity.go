package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"email-marketing-backend/internal/iam"
)

// Mode tells how a request was authenticated
type Mode string

const (
	// ModeBearer is a user authenticated by access token
	ModeBearer Mode = "bearer"
	// ModeService is a trusted internal caller authenticated by API key
	ModeService Mode = "service"
)

const identityKey = "auth_identity"

type identityCtxKey struct{}

// Identity is the request-scoped authorization context
type Identity struct {
	Mode           Mode
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Email          string
	Roles          []string
	Permissions    []string
}

// IsService reports whether the caller used service credentials
func (i *Identity) IsService() bool {
	return i != nil && i.Mode == ModeService
}

// Can reports whether the identity holds permission, directly or by wildcard
func (i *Identity) Can(permission string) bool {
	return i != nil && iam.Has(i.Permissions, permission)
}

// ServiceIdentity returns the identity granted to a valid API key
func ServiceIdentity() *Identity {
	return &Identity{
		Mode:        ModeService,
		Roles:       []string{"internal"},
		Permissions: []string{iam.Wildcard},
	}
}

// ContextWithIdentity stores identity on ctx for services and loggers
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// IdentityFromContext returns the identity stored on ctx, if any
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(*Identity)
	return identity, ok && identity != nil
}

// GetIdentity is a helper function to extract the identity from the gin context
func GetIdentity(c *gin.Context) (*Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*Identity)
	return identity, ok && identity != nil
}

// GetUserID is a helper function to extract the user id from the gin context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	identity, ok := GetIdentity(c)
	if !ok || identity.IsService() {
		return uuid.Nil, false
	}
	return identity.UserID, true
}

// GetOrganizationID is a helper function to extract the caller organization from the gin context
func GetOrganizationID(c *gin.Context) (uuid.UUID, bool) {
	identity, ok := GetIdentity(c)
	if !ok || identity.IsService() {
		return uuid.Nil, false
	}
	return identity.OrganizationID, true
}
