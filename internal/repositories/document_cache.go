package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/betanery/easy-doc-signer-sub000/internal/database"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// documentCacheRepository implements DocumentCacheRepository
type documentCacheRepository struct {
	db *database.Connection
}

// NewDocumentCacheRepository creates a new document cache repository
func NewDocumentCacheRepository(db *database.Connection) DocumentCacheRepository {
	return &documentCacheRepository{db: db}
}

// Insert stores a freshly created document
func (r *documentCacheRepository) Insert(ctx context.Context, doc *models.CachedDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// Upsert overwrites the cached row for (tenant, provider document id)
func (r *documentCacheRepository) Upsert(ctx context.Context, doc *models.CachedDocument) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "provider_document_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "status", "payload", "updated_at"}),
		}).
		Create(doc).Error
}

// GetByProviderID retrieves the tenant's cached copy of a document
func (r *documentCacheRepository) GetByProviderID(ctx context.Context, tenantID, providerDocumentID string) (*models.CachedDocument, error) {
	var doc models.CachedDocument
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider_document_id = ?", tenantID, providerDocumentID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FilterOwned returns the ids among providerDocumentIDs that the tenant has
// a cached row for
func (r *documentCacheRepository) FilterOwned(ctx context.Context, tenantID string, providerDocumentIDs []string) ([]string, error) {
	owned := []string{}
	if len(providerDocumentIDs) == 0 {
		return owned, nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.CachedDocument{}).
		Where("tenant_id = ? AND provider_document_id IN ?", tenantID, providerDocumentIDs).
		Pluck("provider_document_id", &owned).Error
	return owned, err
}

// ListByTenant returns one page of the tenant's cached documents, newest first,
// with the tenant's total row count
func (r *documentCacheRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.CachedDocument, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.CachedDocument{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []*models.CachedDocument
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&docs).Error
	return docs, total, err
}

// UpdatePayload writes back a modified payload for an existing row
func (r *documentCacheRepository) UpdatePayload(ctx context.Context, doc *models.CachedDocument) error {
	return r.db.WithContext(ctx).
		Model(&models.CachedDocument{}).
		Where("tenant_id = ? AND provider_document_id = ?", doc.TenantID, doc.ProviderDocumentID).
		Updates(map[string]interface{}{
			"payload":    doc.Payload,
			"status":     doc.Status,
			"updated_at": time.Now(),
		}).Error
}

// Delete removes the tenant's cached copy of a document
func (r *documentCacheRepository) Delete(ctx context.Context, tenantID, providerDocumentID string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider_document_id = ?", tenantID, providerDocumentID).
		Delete(&models.CachedDocument{}).Error
}
