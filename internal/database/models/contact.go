package models

import (
	"github.com/google/uuid"
)

// Contact is a tenant-scoped recipient, unique per (organization, email)
type Contact struct {
	BaseModel
	OrganizationID uuid.UUID `json:"organization_id" gorm:"type:uuid;not null;uniqueIndex:uq_org_contact_email,priority:1"`
	Email          string    `json:"email" gorm:"not null;size:255;uniqueIndex:uq_org_contact_email,priority:2"`
	FirstName      string    `json:"first_name" gorm:"size:100"`
	LastName       string    `json:"last_name" gorm:"size:100"`
}

// TableName returns the table name for Contact
func (Contact) TableName() string {
	return "contacts"
}
