package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EmailTemplate holds raw markup and style for a tenant, unique per (organization, name)
type EmailTemplate struct {
	BaseModel
	OrganizationID  uuid.UUID      `json:"organization_id" gorm:"type:uuid;not null;uniqueIndex:uq_org_template_name,priority:1"`
	CreatedByUserID *uuid.UUID     `json:"created_by_user_id,omitempty" gorm:"type:uuid;index"`
	Name            string         `json:"name" gorm:"not null;size:200;uniqueIndex:uq_org_template_name,priority:2"`
	Subject         string         `json:"subject" gorm:"size:255"`
	HTML            string         `json:"html" gorm:"type:text;not null;default:''"`
	CSS             string         `json:"css" gorm:"type:text"`
	ProjectData     datatypes.JSON `json:"project_data,omitempty"`

	CreatedBy *User `json:"-" gorm:"foreignKey:CreatedByUserID;constraint:OnDelete:SET NULL"`
}

// TableName returns the table name for EmailTemplate
func (EmailTemplate) TableName() string {
	return "email_templates"
}
