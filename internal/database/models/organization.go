package models

// Organization is the tenant boundary. Every tenant-scoped row references it and
// is removed with it.
type Organization struct {
	BaseModel
	Name string `json:"name" gorm:"uniqueIndex;not null;size:200" validate:"required,min=1,max=200"`
	Slug string `json:"slug" gorm:"uniqueIndex;not null;size:100" validate:"required,max=100"`

	// Relationships
	Users      []User          `json:"-" gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	Contacts   []Contact       `json:"-" gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	Templates  []EmailTemplate `json:"-" gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	Campaigns  []Campaign      `json:"-" gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	EmailSends []EmailSend     `json:"-" gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for Organization
func (Organization) TableName() string {
	return "organizations"
}
