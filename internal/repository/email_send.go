package repository

import (
	"context"

	"email-marketing-backend/internal/database/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailSendRepository handles database operations for per-recipient send records
type EmailSendRepository struct {
	db *gorm.DB
}

// NewEmailSendRepository creates a new email send repository
func NewEmailSendRepository(db *gorm.DB) *EmailSendRepository {
	return &EmailSendRepository{db: db}
}

// Create creates a new send record. A second record for the same
// (campaign, cycle, recipient) fails with a unique violation.
func (r *EmailSendRepository) Create(ctx context.Context, send *models.EmailSend) error {
	return r.db.WithContext(ctx).Omit("Campaign").Create(send).Error
}

// GetByCycle returns the records of one send cycle keyed by recipient
func (r *EmailSendRepository) GetByCycle(ctx context.Context, campaignID uuid.UUID, cycle int) (map[string]models.EmailSend, error) {
	var sends []models.EmailSend
	err := r.db.WithContext(ctx).Where("campaign_id = ? AND cycle = ?", campaignID, cycle).Find(&sends).Error
	if err != nil {
		return nil, err
	}
	byRecipient := make(map[string]models.EmailSend, len(sends))
	for _, s := range sends {
		byRecipient[s.ToEmail] = s
	}
	return byRecipient, nil
}

// UpdateResult records the outcome of a delivery attempt
func (r *EmailSendRepository) UpdateResult(ctx context.Context, id uuid.UUID, status models.SendStatus, errMsg *string) error {
	return r.db.WithContext(ctx).Model(&models.EmailSend{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": status,
			"error":  errMsg,
		}).Error
}

// GetByCampaignID returns the newest send records of a campaign in an organization
func (r *EmailSendRepository) GetByCampaignID(ctx context.Context, orgID, campaignID uuid.UUID, limit int) ([]models.EmailSend, error) {
	sends := []models.EmailSend{}
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND campaign_id = ?", orgID, campaignID).
		Order("created_at DESC").
		Limit(limit).
		Find(&sends).Error
	if err != nil {
		return nil, err
	}
	return sends, nil
}

// CountByStatus returns per-status counts for one cycle
func (r *EmailSendRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID, cycle int) (map[models.SendStatus]int64, error) {
	var rows []struct {
		Status models.SendStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.EmailSend{}).
		Select("status, COUNT(*) AS total").
		Where("campaign_id = ? AND cycle = ?", campaignID, cycle).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.SendStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
