package repository

import (
	"context"

	"email-marketing-backend/internal/database/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository handles database operations for roles and permissions
type RoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Transaction runs fn with a repository bound to a single database transaction
func (r *RoleRepository) Transaction(ctx context.Context, fn func(repo RoleRepositoryInterface) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RoleRepository{db: tx})
	})
}

// EnsurePermission returns the permission named name, inserting it when absent.
// A concurrent insert of the same name is absorbed by re-reading the winner.
func (r *RoleRepository) EnsurePermission(ctx context.Context, name, description string) (*models.Permission, error) {
	db := r.db.WithContext(ctx)

	var perm models.Permission
	err := db.Where("name = ?", name).First(&perm).Error
	if err == nil {
		if perm.Description != description {
			if err := db.Model(&perm).Update("description", description).Error; err != nil {
				return nil, err
			}
		}
		return &perm, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	perm = models.Permission{Name: name, Description: description}
	if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&perm).Error; err != nil {
		return nil, err
	}
	var stored models.Permission
	if err := db.Where("name = ?", name).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// EnsureRole returns the role named name, inserting it when absent
func (r *RoleRepository) EnsureRole(ctx context.Context, name, description string) (*models.Role, error) {
	db := r.db.WithContext(ctx)

	var role models.Role
	err := db.Where("name = ?", name).First(&role).Error
	if err == nil {
		if role.Description != description {
			if err := db.Model(&role).Update("description", description).Error; err != nil {
				return nil, err
			}
		}
		return &role, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	role = models.Role{Name: name, Description: description}
	if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&role).Error; err != nil {
		return nil, err
	}
	var stored models.Role
	if err := db.Where("name = ?", name).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// ReplacePermissions makes perms the exact permission set of role
func (r *RoleRepository) ReplacePermissions(ctx context.Context, role *models.Role, perms []models.Permission) error {
	assoc := r.db.WithContext(ctx).Model(role).Association("Permissions")
	if len(perms) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(perms)
}

// GetByNames returns the stored roles among names. Unknown names are simply absent.
func (r *RoleRepository) GetByNames(ctx context.Context, names []string) ([]models.Role, error) {
	roles := []models.Role{}
	if len(names) == 0 {
		return roles, nil
	}
	err := r.db.WithContext(ctx).Where("name IN ?", names).Order("name ASC").Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// GetAll returns every role with its permissions
func (r *RoleRepository) GetAll(ctx context.Context) ([]models.Role, error) {
	roles := []models.Role{}
	err := r.db.WithContext(ctx).Preload("Permissions", func(db *gorm.DB) *gorm.DB {
		return db.Order("permissions.name ASC")
	}).Order("name ASC").Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// CountPermissions returns the number of stored permissions
func (r *RoleRepository) CountPermissions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Permission{}).Count(&count).Error
	return count, err
}
