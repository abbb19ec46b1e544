package handlers

import (
	"net/http"

	"email-marketing-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// ContactHandler handles HTTP requests for an organization's contacts
type ContactHandler struct {
	service service.ContactServiceInterface
}

// NewContactHandler creates a new contact handler
func NewContactHandler(service service.ContactServiceInterface) *ContactHandler {
	return &ContactHandler{service: service}
}

// ListContacts handles GET /api/organizations/:id/contacts
// @Summary List contacts
// @Description List the contacts of an organization. Bearer callers may only address their own organization.
// @Tags contacts
// @Produce json
// @Param id path string true "Organization ID (UUID)"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} service.ContactListResponse
// @Failure 403 {object} ErrorResponse "Cannot access another workspace"
// @Failure 404 {object} ErrorResponse "Organization not found"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /api/organizations/{id}/contacts [get]
func (h *ContactHandler) ListContacts(c *gin.Context) {
	orgID, ok := parseID(c, "id", "organization")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	contacts, err := h.service.GetByOrganization(c.Request.Context(), orgID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// CreateContact handles POST /api/organizations/:id/contacts
// @Summary Create a contact
// @Description Add a contact to an organization. Bearer callers may only address their own organization.
// @Tags contacts
// @Accept json
// @Produce json
// @Param id path string true "Organization ID (UUID)"
// @Param contact body service.CreateContactRequest true "Contact data"
// @Success 201 {object} DataResponse{data=service.ContactResponse}
// @Failure 400 {object} ErrorResponse "Invalid request body"
// @Failure 403 {object} ErrorResponse "Cannot access another workspace"
// @Failure 404 {object} ErrorResponse "Organization not found"
// @Failure 409 {object} ErrorResponse "Contact already exists"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /api/organizations/{id}/contacts [post]
func (h *ContactHandler) CreateContact(c *gin.Context) {
	orgID, ok := parseID(c, "id", "organization")
	if !ok {
		return
	}
	var req service.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	contact, err := h.service.Create(c.Request.Context(), orgID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, DataResponse{Data: contact})
}
