package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Campaign sends one template to an audience. SendCycle counts accepted send
// triggers and scopes the EmailSend rows of each run.
type Campaign struct {
	BaseModel
	OrganizationID  uuid.UUID                   `json:"organization_id" gorm:"type:uuid;not null;index"`
	CreatedByUserID *uuid.UUID                  `json:"created_by_user_id,omitempty" gorm:"type:uuid;index"`
	TemplateID      uuid.UUID                   `json:"template_id" gorm:"type:uuid;not null;index"`
	Name            string                      `json:"name" gorm:"not null;size:200"`
	Subject         string                      `json:"subject" gorm:"size:255"`
	FromEmail       string                      `json:"from_email" gorm:"size:255"`
	ReplyTo         string                      `json:"reply_to" gorm:"size:255"`
	AudienceType    AudienceType                `json:"audience_type" gorm:"type:varchar(32);not null;default:'all_contacts'"`
	Recipients      datatypes.JSONSlice[string] `json:"recipients,omitempty"`
	Notes           string                      `json:"notes" gorm:"type:text"`
	Status          CampaignStatus              `json:"status" gorm:"type:varchar(32);not null;default:'draft';index"`
	SendCycle       int                         `json:"send_cycle" gorm:"not null;default:0"`
	LastError       string                      `json:"last_error,omitempty" gorm:"type:text"`

	Template  *EmailTemplate `json:"-" gorm:"foreignKey:TemplateID"`
	CreatedBy *User          `json:"-" gorm:"foreignKey:CreatedByUserID;constraint:OnDelete:SET NULL"`
}

// TableName returns the table name for Campaign
func (Campaign) TableName() string {
	return "campaigns"
}

// EmailSend records one delivery attempt to one recipient within a send cycle.
// (campaign_id, cycle, to_email) is the idempotency key of an attempt.
type EmailSend struct {
	BaseModel
	OrganizationID uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;index"`
	CampaignID     uuid.UUID  `json:"campaign_id" gorm:"type:uuid;not null;uniqueIndex:uq_send_attempt,priority:1"`
	Cycle          int        `json:"cycle" gorm:"not null;uniqueIndex:uq_send_attempt,priority:2"`
	ToEmail        string     `json:"to_email" gorm:"not null;size:255;uniqueIndex:uq_send_attempt,priority:3"`
	Status         SendStatus `json:"status" gorm:"type:varchar(32);not null;default:'queued'"`
	Error          *string    `json:"error"`

	Campaign *Campaign `json:"-" gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for EmailSend
func (EmailSend) TableName() string {
	return "email_sends"
}
