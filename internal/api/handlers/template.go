package handlers

import (
	"net/http"

	"email-marketing-backend/internal/auth"
	"email-marketing-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// TemplateHandler handles HTTP requests for email templates of the caller's organization
type TemplateHandler struct {
	service service.TemplateServiceInterface
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(service service.TemplateServiceInterface) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// ListTemplates handles GET /api/templates
// @Summary List templates
// @Description List the templates of the caller's organization, most recently updated first
// @Tags templates
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} service.TemplateListResponse
// @Failure 401 {object} ErrorResponse "User credentials required"
// @Failure 403 {object} ErrorResponse "Insufficient permissions"
// @Security BearerAuth
// @Router /api/templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	templates, err := h.service.GetByOrganization(c.Request.Context(), identity.OrganizationID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

// CreateTemplate handles POST /api/templates
// @Summary Create a template
// @Tags templates
// @Accept json
// @Produce json
// @Param template body service.CreateTemplateRequest true "Template data"
// @Success 201 {object} DataResponse{data=service.TemplateResponse}
// @Failure 400 {object} ErrorResponse "Invalid request body"
// @Failure 409 {object} ErrorResponse "Template already exists"
// @Security BearerAuth
// @Router /api/templates [post]
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	var req service.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	tmpl, err := h.service.Create(c.Request.Context(), identity.OrganizationID, identity.UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, DataResponse{Data: tmpl})
}

// GetTemplate handles GET /api/templates/:id
// @Summary Get a template
// @Tags templates
// @Produce json
// @Param id path string true "Template ID (UUID)"
// @Success 200 {object} DataResponse{data=service.TemplateResponse}
// @Failure 404 {object} ErrorResponse "Template not found"
// @Security BearerAuth
// @Router /api/templates/{id} [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "template")
	if !ok {
		return
	}

	tmpl, err := h.service.GetByID(c.Request.Context(), identity.OrganizationID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse{Data: tmpl})
}

// UpdateTemplate handles PUT /api/templates/:id
// @Summary Update a template
// @Description Apply the fields present in the body; absent fields are unchanged
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID (UUID)"
// @Param template body service.UpdateTemplateRequest true "Fields to change"
// @Success 200 {object} DataResponse{data=service.TemplateResponse}
// @Failure 400 {object} ErrorResponse "Invalid request body"
// @Failure 404 {object} ErrorResponse "Template not found"
// @Failure 409 {object} ErrorResponse "Template already exists"
// @Security BearerAuth
// @Router /api/templates/{id} [put]
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "template")
	if !ok {
		return
	}
	var req service.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	tmpl, err := h.service.Update(c.Request.Context(), identity.OrganizationID, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse{Data: tmpl})
}

// DeleteTemplate handles DELETE /api/templates/:id
// @Summary Delete a template
// @Description Delete a template that no campaign references
// @Tags templates
// @Produce json
// @Param id path string true "Template ID (UUID)"
// @Success 200 {object} StatusResponse
// @Failure 404 {object} ErrorResponse "Template not found"
// @Failure 409 {object} ErrorResponse "Template is in use"
// @Security BearerAuth
// @Router /api/templates/{id} [delete]
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "template")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), identity.OrganizationID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: "deleted"})
}

// SendTest handles POST /api/templates/:id/send-test
// @Summary Send a test email
// @Description Compose the template and send it synchronously to one address
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID (UUID)"
// @Param request body service.SendTestRequest true "Recipient"
// @Success 200 {object} service.SendTestResponse
// @Failure 400 {object} ErrorResponse "Invalid request body"
// @Failure 404 {object} ErrorResponse "Template not found"
// @Failure 502 {object} ErrorResponse "Email delivery failed"
// @Security BearerAuth
// @Router /api/templates/{id}/send-test [post]
func (h *TemplateHandler) SendTest(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "template")
	if !ok {
		return
	}
	var req service.SendTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	resp, err := h.service.SendTest(c.Request.Context(), identity.OrganizationID, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
