package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/betanery/easy-doc-signer-sub000/internal/database"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// syncIntentRepository implements SyncIntentRepository
type syncIntentRepository struct {
	db *database.Connection
}

// NewSyncIntentRepository creates a new sync intent repository
func NewSyncIntentRepository(db *database.Connection) SyncIntentRepository {
	return &syncIntentRepository{db: db}
}

// Create records a new pending intent
func (r *syncIntentRepository) Create(ctx context.Context, intent *models.SyncIntent) error {
	if intent.State == "" {
		intent.State = models.SyncIntentPending
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

// GetByID retrieves an intent by ID
func (r *syncIntentRepository) GetByID(ctx context.Context, id string) (*models.SyncIntent, error) {
	var intent models.SyncIntent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// ListPending returns the oldest pending intents
func (r *syncIntentRepository) ListPending(ctx context.Context, limit int) ([]*models.SyncIntent, error) {
	var intents []*models.SyncIntent
	err := r.db.WithContext(ctx).
		Where("state = ?", models.SyncIntentPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}

// MarkReconciled closes an intent
func (r *syncIntentRepository) MarkReconciled(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncIntent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":      models.SyncIntentReconciled,
			"last_error": "",
		}).Error
}

// RecordFailure bumps the attempt counter and moves the intent to failed
// once maxAttempts is reached
func (r *syncIntentRepository) RecordFailure(ctx context.Context, id string, cause string, maxAttempts int) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncIntent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause,
			"state": gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE state END",
				maxAttempts, models.SyncIntentFailed),
		}).Error
}
