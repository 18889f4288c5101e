package services

import (
	"context"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// Identity is the authenticated caller of a request
type Identity struct {
	UserID string
	Email  string
}

// Caller is an authenticated identity resolved to its tenant. Every
// tenant-scoped operation takes a Caller instead of reading ambient state.
type Caller struct {
	Identity Identity
	Profile  *models.Profile
	Tenant   *models.Tenant
}

// TenantID returns the caller's tenant identifier
func (c *Caller) TenantID() string {
	return c.Tenant.ID
}

// ActionResult is the outcome of one document action
type ActionResult struct {
	StatusCode int
	Data       interface{}
	FromCache  *bool
	Cached     *bool
	Replayed   bool
}

// AuthenticationService defines the interface for bearer token operations
type AuthenticationService interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
	ResolveCaller(ctx context.Context, identity *Identity) (*Caller, error)
	GenerateToken(ctx context.Context, profile *models.Profile) (string, error)
}

// SigningProviderClient defines the contract this service expects from the
// signing provider's HTTP API
type SigningProviderClient interface {
	CreateDocument(ctx context.Context, creds ProviderCredentials, payload *ProviderCreateDocument) (models.JSONMap, error)
	ListDocuments(ctx context.Context, creds ProviderCredentials, limit, offset int) (models.JSONMap, error)
	GetDocument(ctx context.Context, creds ProviderCredentials, documentID string) (models.JSONMap, error)
	AddParticipant(ctx context.Context, creds ProviderCredentials, documentID string, participant *ProviderFlowAction) (models.JSONMap, error)
	DeleteDocument(ctx context.Context, creds ProviderCredentials, documentID string) error
}

// DocumentSynchronizer executes tagged document actions against the
// provider and keeps the tenant's cache consistent
type DocumentSynchronizer interface {
	Execute(ctx context.Context, caller *Caller, req models.ActionRequest) (*ActionResult, error)
	Create(ctx context.Context, caller *Caller, req *models.CreateDocumentRequest) (*ActionResult, error)
	List(ctx context.Context, caller *Caller, req *models.ListDocumentsRequest) (*ActionResult, error)
	Get(ctx context.Context, caller *Caller, req *models.GetDocumentRequest) (*ActionResult, error)
	AddSigner(ctx context.Context, caller *Caller, req *models.AddSignerRequest) (*ActionResult, error)
	Delete(ctx context.Context, caller *Caller, req *models.DeleteDocumentRequest) (*ActionResult, error)
}

// UsageService defines plan enforcement backed by stored counts
type UsageService interface {
	GetDocumentUsage(ctx context.Context, tenant *models.Tenant) (*DocumentUsage, error)
	GetSeatUsage(ctx context.Context, tenant *models.Tenant) (*SeatUsage, error)
	CheckCanCreateDocument(ctx context.Context, tenant *models.Tenant) error
	CheckCanAddMember(ctx context.Context, tenant *models.Tenant) error
}

// TenantService defines tenant and membership management
type TenantService interface {
	GetTenant(ctx context.Context, caller *Caller) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, caller *Caller, name string, taxID *string) (*models.Tenant, error)
	// ChangePlan is operator only and is not reachable from the tenant API
	ChangePlan(ctx context.Context, tenantID, plan string) (*models.Tenant, error)
	ListMembers(ctx context.Context, caller *Caller) ([]*models.Profile, error)
	AddMember(ctx context.Context, caller *Caller, profileID string) (*models.Profile, error)
	RemoveMember(ctx context.Context, caller *Caller, profileID string) error
}

// FolderService defines folder management inside a tenant
type FolderService interface {
	ListFolders(ctx context.Context, caller *Caller) ([]*models.Folder, error)
	GetFolder(ctx context.Context, caller *Caller, id string) (*models.Folder, error)
	CreateFolder(ctx context.Context, caller *Caller, folder *models.Folder) (*models.Folder, error)
	UpdateFolder(ctx context.Context, caller *Caller, folder *models.Folder) (*models.Folder, error)
	DeleteFolder(ctx context.Context, caller *Caller, id string) error
}

// OrganizationService defines organization management inside a tenant
type OrganizationService interface {
	ListOrganizations(ctx context.Context, caller *Caller) ([]*models.Organization, error)
	GetOrganization(ctx context.Context, caller *Caller, id string) (*models.Organization, error)
	CreateOrganization(ctx context.Context, caller *Caller, org *models.Organization) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, caller *Caller, org *models.Organization) (*models.Organization, error)
	DeleteOrganization(ctx context.Context, caller *Caller, id string) error
	AddMember(ctx context.Context, caller *Caller, orgID string, member *models.OrganizationMember) error
	RemoveMember(ctx context.Context, caller *Caller, orgID, userID string) error
}

// IdempotencyStore remembers responses of write actions by client key. A
// request claims its key before calling the provider so concurrent retries
// cannot both create.
type IdempotencyStore interface {
	Claim(ctx context.Context, tenantID, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, tenantID, key string) error
	Lookup(ctx context.Context, tenantID, key string) (*StoredResponse, error)
	Remember(ctx context.Context, tenantID, key string, response *StoredResponse, ttl time.Duration) error
}

// ReconciliationQueue accepts cache writes that did not land after a
// confirmed provider operation
type ReconciliationQueue interface {
	Enqueue(ctx context.Context, intent *models.SyncIntent) error
}
