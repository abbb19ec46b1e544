package service

import (
	"time"

	"email-marketing-backend/internal/database/models"

	"github.com/google/uuid"
)

// UserResponse represents a user as returned by the API
type UserResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Roles          []string  `json:"roles"`
	CreatedAt      string    `json:"created_at"`
}

func toUserResponse(user *models.User, roles []string) UserResponse {
	if roles == nil {
		roles = user.RoleNames()
	}
	return UserResponse{
		ID:             user.ID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Roles:          roles,
		CreatedAt:      user.CreatedAt.Format(time.RFC3339),
	}
}
