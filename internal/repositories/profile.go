package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/betanery/easy-doc-signer-sub000/internal/database"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// profileRepository implements ProfileRepository
type profileRepository struct {
	db *database.Connection
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.Connection) ProfileRepository {
	return &profileRepository{db: db}
}

// Create creates a new profile
func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetByID retrieves a profile by its identity subject
func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByTenant retrieves the profiles attached to a tenant
func (r *profileRepository) GetByTenant(ctx context.Context, tenantID string) ([]*models.Profile, error) {
	var profiles []*models.Profile
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&profiles).Error
	return profiles, err
}

// CountByTenant counts the seats in use by a tenant
func (r *profileRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

// SetTenant attaches a profile to a tenant, or detaches it when tenantID is nil
func (r *profileRepository) SetTenant(ctx context.Context, profileID string, tenantID *string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", profileID).
		Update("tenant_id", tenantID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
