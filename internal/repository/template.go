package repository

import (
	"context"

	"email-marketing-backend/internal/database/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateRepository handles database operations for email templates
type TemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create creates a new template
func (r *TemplateRepository) Create(ctx context.Context, tmpl *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Create(tmpl).Error
}

// GetByID retrieves a template of an organization by ID
func (r *TemplateRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.EmailTemplate, error) {
	var tmpl models.EmailTemplate
	err := r.db.WithContext(ctx).First(&tmpl, "id = ? AND organization_id = ?", id, orgID).Error
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// GetByOrganizationID retrieves templates of an organization, most recently updated first
func (r *TemplateRepository) GetByOrganizationID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.EmailTemplate, int64, error) {
	var templates []models.EmailTemplate
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.EmailTemplate{}).Where("organization_id = ?", orgID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).
		Order("updated_at DESC").Limit(limit).Offset(offset).Find(&templates).Error
	if err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

// Update saves template fields. The owning organization is never changed.
func (r *TemplateRepository) Update(ctx context.Context, tmpl *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Model(tmpl).
		Select("name", "subject", "html", "css", "project_data", "updated_at").
		Updates(tmpl).Error
}

// Delete deletes a template of an organization
func (r *TemplateRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.EmailTemplate{}, "id = ? AND organization_id = ?", id, orgID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountCampaignReferences returns how many campaigns use a template
func (r *TemplateRepository) CountCampaignReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Campaign{}).Where("template_id = ?", id).Count(&total).Error
	return total, err
}
