package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/betanery/easy-doc-signer-sub000/internal/database"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// organizationRepository implements OrganizationRepository
type organizationRepository struct {
	db *database.Connection
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *database.Connection) OrganizationRepository {
	return &organizationRepository{db: db}
}

// Create creates a new organization
func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

// GetByID retrieves an organization owned by the tenant, with its members
func (r *organizationRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Members.Profile").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// ListByTenant retrieves all organizations of a tenant
func (r *organizationRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.Organization, error) {
	var orgs []*models.Organization
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&orgs).Error
	return orgs, err
}

// Update updates an existing organization
func (r *organizationRepository) Update(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).
		Model(&models.Organization{}).
		Where("tenant_id = ? AND id = ?", org.TenantID, org.ID).
		Updates(map[string]interface{}{
			"name":                     org.Name,
			"provider_organization_id": org.ProviderOrganizationID,
		}).Error
}

// Delete removes an organization together with its memberships
func (r *organizationRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&models.Organization{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("organization_id = ?", id).Delete(&models.OrganizationMember{}).Error
	})
}

// AddMember adds or updates a membership
func (r *organizationRepository) AddMember(ctx context.Context, member *models.OrganizationMember) error {
	return r.db.WithContext(ctx).Save(member).Error
}

// RemoveMember removes a membership
func (r *organizationRepository) RemoveMember(ctx context.Context, organizationID, userID string) error {
	result := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Delete(&models.OrganizationMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
