package models

// Role is a named, global bundle of permissions
type Role struct {
	BaseModel
	Name        string `json:"name" gorm:"uniqueIndex;not null;size:80"`
	Description string `json:"description" gorm:"size:255"`

	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for Role
func (Role) TableName() string {
	return "roles"
}

// Permission is an atomic capability string such as "campaigns.send"
type Permission struct {
	BaseModel
	Name        string `json:"name" gorm:"uniqueIndex;not null;size:120"`
	Description string `json:"description" gorm:"size:255"`
}

// TableName returns the table name for Permission
func (Permission) TableName() string {
	return "permissions"
}
