package handlers

import (
	"net/http"

	"email-marketing-backend/internal/auth"
	"email-marketing-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler handles user administration endpoints
type UserHandler struct {
	iam service.IAMServiceInterface
}

// NewUserHandler creates a new user handler
func NewUserHandler(iam service.IAMServiceInterface) *UserHandler {
	return &UserHandler{iam: iam}
}

// AssignRoles handles PUT /api/users/:id/roles
// @Summary Replace a user's roles
// @Description Replace the role set of a user in the caller's workspace. Service credentials may address any user.
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID (UUID)"
// @Param roles body service.RoleAssignmentRequest true "Role names"
// @Success 200 {object} DataResponse{data=service.RoleAssignmentResponse}
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 403 {object} ErrorResponse "Insufficient permissions"
// @Failure 404 {object} ErrorResponse "User not found"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /api/users/{id}/roles [put]
func (h *UserHandler) AssignRoles(c *gin.Context) {
	userID, ok := parseID(c, "id", "user")
	if !ok {
		return
	}
	var req service.RoleAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	identity, _ := auth.GetIdentity(c)
	var (
		resp *service.RoleAssignmentResponse
		err  error
	)
	if identity.IsService() {
		resp, err = h.iam.AssignRoles(c.Request.Context(), userID, req.Roles)
	} else {
		resp, err = h.iam.AssignOrganizationUserRoles(c.Request.Context(), identity.OrganizationID, userID, req.Roles)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse{Data: resp})
}

// Catalog handles GET /api/iam/roles
// @Summary Role catalog
// @Description List every role and the permissions it grants
// @Tags users
// @Produce json
// @Success 200 {object} DataResponse
// @Security BearerAuth
// @Router /api/iam/roles [get]
func (h *UserHandler) Catalog(c *gin.Context) {
	catalog := h.iam.Catalog()
	roles := make([]gin.H, 0, len(catalog.Roles()))
	for _, role := range catalog.Roles() {
		roles = append(roles, gin.H{
			"name":        role.Name,
			"description": role.Description,
			"permissions": role.Permissions,
		})
	}
	c.JSON(http.StatusOK, DataResponse{Data: roles})
}
