package repositories

import (
	"context"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/database"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// documentUsageRepository implements DocumentUsageRepository
type documentUsageRepository struct {
	db *database.Connection
}

// NewDocumentUsageRepository creates a new document usage repository
func NewDocumentUsageRepository(db *database.Connection) DocumentUsageRepository {
	return &documentUsageRepository{db: db}
}

// Record appends a usage entry
func (r *documentUsageRepository) Record(ctx context.Context, record *models.DocumentUsageRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// CountByTenantSince counts the tenant's usage entries at or after since.
// A zero since counts every entry.
func (r *documentUsageRepository) CountByTenantSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&models.DocumentUsageRecord{}).
		Where("tenant_id = ?", tenantID)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	err := query.Count(&count).Error
	return count, err
}
