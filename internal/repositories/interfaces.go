package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// ErrNotFound is returned when a tenant-scoped lookup matches no row
var ErrNotFound = errors.New("record not found")

// TenantRepository defines the interface for tenant data operations
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	UpdatePlan(ctx context.Context, id string, plan models.PlanTier) error
}

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByTenant(ctx context.Context, tenantID string) ([]*models.Profile, error)
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
	SetTenant(ctx context.Context, profileID string, tenantID *string) error
}

// DocumentCacheRepository defines the tenant-scoped document cache. Every
// method takes the owning tenant and never touches rows of another tenant.
type DocumentCacheRepository interface {
	Insert(ctx context.Context, doc *models.CachedDocument) error
	Upsert(ctx context.Context, doc *models.CachedDocument) error
	GetByProviderID(ctx context.Context, tenantID, providerDocumentID string) (*models.CachedDocument, error)
	FilterOwned(ctx context.Context, tenantID string, providerDocumentIDs []string) ([]string, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.CachedDocument, int64, error)
	UpdatePayload(ctx context.Context, doc *models.CachedDocument) error
	Delete(ctx context.Context, tenantID, providerDocumentID string) error
}

// DocumentUsageRepository defines the append-only ledger that document quotas
// are counted from
type DocumentUsageRepository interface {
	Record(ctx context.Context, record *models.DocumentUsageRecord) error
	CountByTenantSince(ctx context.Context, tenantID string, since time.Time) (int64, error)
}

// SyncIntentRepository defines the outbox of cache writes awaiting reconciliation
type SyncIntentRepository interface {
	Create(ctx context.Context, intent *models.SyncIntent) error
	GetByID(ctx context.Context, id string) (*models.SyncIntent, error)
	ListPending(ctx context.Context, limit int) ([]*models.SyncIntent, error)
	MarkReconciled(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, cause string, maxAttempts int) error
}

// FolderRepository defines the interface for folder data operations
type FolderRepository interface {
	Create(ctx context.Context, folder *models.Folder) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Folder, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.Folder, error)
	Update(ctx context.Context, folder *models.Folder) error
	Delete(ctx context.Context, tenantID, id string) error
}

// OrganizationRepository defines the interface for organization data operations
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Organization, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, tenantID, id string) error
	AddMember(ctx context.Context, member *models.OrganizationMember) error
	RemoveMember(ctx context.Context, organizationID, userID string) error
}
