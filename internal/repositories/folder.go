package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/betanery/easy-doc-signer-sub000/internal/database"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// folderRepository implements FolderRepository
type folderRepository struct {
	db *database.Connection
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(db *database.Connection) FolderRepository {
	return &folderRepository{db: db}
}

// Create creates a new folder
func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) error {
	return r.db.WithContext(ctx).Create(folder).Error
}

// GetByID retrieves a folder owned by the tenant
func (r *folderRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// ListByTenant retrieves all folders of a tenant
func (r *folderRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.Folder, error) {
	var folders []*models.Folder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&folders).Error
	return folders, err
}

// Update updates an existing folder
func (r *folderRepository) Update(ctx context.Context, folder *models.Folder) error {
	return r.db.WithContext(ctx).
		Model(&models.Folder{}).
		Where("tenant_id = ? AND id = ?", folder.TenantID, folder.ID).
		Updates(map[string]interface{}{
			"name":      folder.Name,
			"parent_id": folder.ParentID,
			"color":     folder.Color,
		}).Error
}

// Delete soft-deletes a folder and lifts its children to the root
func (r *folderRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Folder{}).
			Where("tenant_id = ? AND parent_id = ?", tenantID, id).
			Update("parent_id", nil).Error; err != nil {
			return err
		}
		result := tx.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&models.Folder{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
