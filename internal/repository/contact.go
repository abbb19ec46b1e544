package repository

import (
	"context"

	"email-marketing-backend/internal/database/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactRepository handles database operations for contacts
type ContactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create creates a new contact
func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

// GetByOrganizationID retrieves contacts of an organization with pagination
func (r *ContactRepository) GetByOrganizationID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Contact, int64, error) {
	var contacts []models.Contact
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Contact{}).Where("organization_id = ?", orgID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).
		Order("created_at ASC, email ASC").Limit(limit).Offset(offset).Find(&contacts).Error
	if err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

// CountByOrganizationID returns the number of contacts in an organization
func (r *ContactRepository) CountByOrganizationID(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Contact{}).Where("organization_id = ?", orgID).Count(&total).Error
	return total, err
}

// EmailsByOrganizationID returns every contact email of an organization in a stable order
func (r *ContactRepository) EmailsByOrganizationID(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	emails := []string{}
	err := r.db.WithContext(ctx).Model(&models.Contact{}).
		Where("organization_id = ?", orgID).
		Order("created_at ASC, email ASC").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}
