package handlers

import (
	"net/http"

	"email-marketing-backend/internal/auth"
	"email-marketing-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// CampaignHandler handles HTTP requests for campaigns of the caller's organization
type CampaignHandler struct {
	service service.CampaignServiceInterface
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(service service.CampaignServiceInterface) *CampaignHandler {
	return &CampaignHandler{service: service}
}

// ListCampaigns handles GET /api/campaigns
// @Summary List campaigns
// @Tags campaigns
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} service.CampaignListResponse
// @Failure 401 {object} ErrorResponse "User credentials required"
// @Failure 403 {object} ErrorResponse "Insufficient permissions"
// @Security BearerAuth
// @Router /api/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	campaigns, err := h.service.GetByOrganization(c.Request.Context(), identity.OrganizationID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaigns)
}

// CreateCampaign handles POST /api/campaigns
// @Summary Create a campaign
// @Description Create a draft campaign using one of the organization's templates
// @Tags campaigns
// @Accept json
// @Produce json
// @Param campaign body service.CreateCampaignRequest true "Campaign data"
// @Success 201 {object} DataResponse{data=service.CampaignResponse}
// @Failure 400 {object} ErrorResponse "Invalid request body"
// @Failure 404 {object} ErrorResponse "Template not found"
// @Security BearerAuth
// @Router /api/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	var req service.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	campaign, err := h.service.Create(c.Request.Context(), identity.OrganizationID, identity.UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, DataResponse{Data: campaign})
}

// GetCampaign handles GET /api/campaigns/:id
// @Summary Get a campaign
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID (UUID)"
// @Success 200 {object} DataResponse{data=service.CampaignResponse}
// @Failure 404 {object} ErrorResponse "Campaign not found"
// @Security BearerAuth
// @Router /api/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "campaign")
	if !ok {
		return
	}

	campaign, err := h.service.GetByID(c.Request.Context(), identity.OrganizationID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse{Data: campaign})
}

// SendCampaign handles POST /api/campaigns/:id/send
// @Summary Send a campaign
// @Description Move the campaign into sending and queue its dispatch. Delivery happens asynchronously.
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID (UUID)"
// @Success 202 {object} service.SendAcknowledgement
// @Failure 400 {object} ErrorResponse "No recipients"
// @Failure 404 {object} ErrorResponse "Campaign not found"
// @Failure 409 {object} ErrorResponse "Campaign is already sending or sent"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /api/campaigns/{id}/send [post]
func (h *CampaignHandler) SendCampaign(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "campaign")
	if !ok {
		return
	}

	ack, err := h.service.Send(c.Request.Context(), identity.OrganizationID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ack)
}

// ListSends handles GET /api/campaigns/:id/sends
// @Summary List campaign sends
// @Description List the most recent per-recipient delivery records, newest first
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID (UUID)"
// @Success 200 {object} DataResponse{data=[]service.EmailSendResponse}
// @Failure 404 {object} ErrorResponse "Campaign not found"
// @Security BearerAuth
// @Router /api/campaigns/{id}/sends [get]
func (h *CampaignHandler) ListSends(c *gin.Context) {
	identity, ok := auth.RequireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "campaign")
	if !ok {
		return
	}

	sends, err := h.service.Sends(c.Request.Context(), identity.OrganizationID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse{Data: sends})
}
