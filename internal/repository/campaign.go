package repository

import (
	"context"

	"email-marketing-backend/internal/database/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignRepository handles database operations for campaigns
type CampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Omit("Template", "CreatedBy").Create(campaign).Error
}

// GetByID retrieves a campaign of an organization by ID
func (r *CampaignRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).First(&campaign, "id = ? AND organization_id = ?", id, orgID).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// Get retrieves a campaign by ID regardless of organization. Used by dispatch workers.
func (r *CampaignRepository) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).First(&campaign, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetByOrganizationID retrieves campaigns of an organization, newest first
func (r *CampaignRepository) GetByOrganizationID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Campaign, int64, error) {
	var campaigns []models.Campaign
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Campaign{}).Where("organization_id = ?", orgID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&campaigns).Error
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// GetByStatus retrieves every campaign in status across organizations
func (r *CampaignRepository) GetByStatus(ctx context.Context, status models.CampaignStatus) ([]models.Campaign, error) {
	campaigns := []models.Campaign{}
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("updated_at ASC").Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// BeginSend atomically moves a campaign from a sendable status into sending and
// starts cycle expectedCycle+1. It reports false when the campaign changed
// underneath the caller, e.g. another request already started a send.
func (r *CampaignRepository) BeginSend(ctx context.Context, orgID, id uuid.UUID, expectedCycle int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND organization_id = ?", id, orgID).
		Where("send_cycle = ?", expectedCycle).
		Where("status NOT IN ?", []models.CampaignStatus{models.CampaignStatusSending, models.CampaignStatusSent}).
		Updates(map[string]interface{}{
			"status":     models.CampaignStatusSending,
			"send_cycle": gorm.Expr("send_cycle + 1"),
			"last_error": "",
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AbortSend undoes BeginSend for cycle, restoring the previous status
func (r *CampaignRepository) AbortSend(ctx context.Context, id uuid.UUID, cycle int, previous models.CampaignStatus) error {
	return r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status = ? AND send_cycle = ?", id, models.CampaignStatusSending, cycle).
		Updates(map[string]interface{}{
			"status":     previous,
			"send_cycle": cycle - 1,
		}).Error
}

// FinishSend records the terminal status of cycle. It only applies while the
// campaign is still sending that cycle.
func (r *CampaignRepository) FinishSend(ctx context.Context, id uuid.UUID, cycle int, status models.CampaignStatus, lastError string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status = ? AND send_cycle = ?", id, models.CampaignStatusSending, cycle).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
