package handlers

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/middleware"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/services"
)

func createTestLogger() *logger.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &logger.Logger{Logger: log}
}

// MockAuthenticationService stands in for bearer token validation
type MockAuthenticationService struct {
	mock.Mock
}

func (m *MockAuthenticationService) ValidateToken(ctx context.Context, token string) (*services.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Identity), args.Error(1)
}

func (m *MockAuthenticationService) ResolveCaller(ctx context.Context, identity *services.Identity) (*services.Caller, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Caller), args.Error(1)
}

func (m *MockAuthenticationService) GenerateToken(ctx context.Context, profile *models.Profile) (string, error) {
	args := m.Called(ctx, profile)
	return args.String(0), args.Error(1)
}

// authFor wires a middleware that resolves "Bearer good-token" to caller
func authFor(caller *services.Caller) *middleware.AuthenticationMiddleware {
	authSvc := &MockAuthenticationService{}
	identity := &caller.Identity
	authSvc.On("ValidateToken", mock.Anything, "good-token").Return(identity, nil).Maybe()
	authSvc.On("ValidateToken", mock.Anything, mock.Anything).Return(nil, services.ErrInvalidToken).Maybe()
	authSvc.On("ResolveCaller", mock.Anything, identity).Return(caller, nil).Maybe()

	log := createTestLogger()
	return middleware.NewAuthenticationMiddleware(log, authSvc, services.NewErrorHandler(log))
}

func testCaller(tenantID string) *services.Caller {
	profileTenant := tenantID
	return &services.Caller{
		Identity: services.Identity{UserID: "user-" + tenantID},
		Profile:  &models.Profile{ID: "user-" + tenantID, TenantID: &profileTenant},
		Tenant:   &models.Tenant{ID: tenantID, Name: "Tenant " + tenantID, Plan: models.PlanBasic},
	}
}

type MockDocumentSynchronizer struct {
	mock.Mock
}

func (m *MockDocumentSynchronizer) Execute(ctx context.Context, caller *services.Caller, req models.ActionRequest) (*services.ActionResult, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ActionResult), args.Error(1)
}

func (m *MockDocumentSynchronizer) Create(ctx context.Context, caller *services.Caller, req *models.CreateDocumentRequest) (*services.ActionResult, error) {
	return m.Execute(ctx, caller, req)
}

func (m *MockDocumentSynchronizer) List(ctx context.Context, caller *services.Caller, req *models.ListDocumentsRequest) (*services.ActionResult, error) {
	return m.Execute(ctx, caller, req)
}

func (m *MockDocumentSynchronizer) Get(ctx context.Context, caller *services.Caller, req *models.GetDocumentRequest) (*services.ActionResult, error) {
	return m.Execute(ctx, caller, req)
}

func (m *MockDocumentSynchronizer) AddSigner(ctx context.Context, caller *services.Caller, req *models.AddSignerRequest) (*services.ActionResult, error) {
	return m.Execute(ctx, caller, req)
}

func (m *MockDocumentSynchronizer) Delete(ctx context.Context, caller *services.Caller, req *models.DeleteDocumentRequest) (*services.ActionResult, error) {
	return m.Execute(ctx, caller, req)
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) GetTenant(ctx context.Context, caller *services.Caller) (*models.Tenant, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantService) UpdateTenant(ctx context.Context, caller *services.Caller, name string, taxID *string) (*models.Tenant, error) {
	args := m.Called(ctx, caller, name, taxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantService) ChangePlan(ctx context.Context, tenantID, plan string) (*models.Tenant, error) {
	args := m.Called(ctx, tenantID, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantService) ListMembers(ctx context.Context, caller *services.Caller) ([]*models.Profile, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Profile), args.Error(1)
}

func (m *MockTenantService) AddMember(ctx context.Context, caller *services.Caller, profileID string) (*models.Profile, error) {
	args := m.Called(ctx, caller, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockTenantService) RemoveMember(ctx context.Context, caller *services.Caller, profileID string) error {
	args := m.Called(ctx, caller, profileID)
	return args.Error(0)
}

type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) GetDocumentUsage(ctx context.Context, tenant *models.Tenant) (*services.DocumentUsage, error) {
	args := m.Called(ctx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DocumentUsage), args.Error(1)
}

func (m *MockUsageService) GetSeatUsage(ctx context.Context, tenant *models.Tenant) (*services.SeatUsage, error) {
	args := m.Called(ctx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SeatUsage), args.Error(1)
}

func (m *MockUsageService) CheckCanCreateDocument(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockUsageService) CheckCanAddMember(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

type MockFolderService struct {
	mock.Mock
}

func (m *MockFolderService) ListFolders(ctx context.Context, caller *services.Caller) ([]*models.Folder, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Folder), args.Error(1)
}

func (m *MockFolderService) GetFolder(ctx context.Context, caller *services.Caller, id string) (*models.Folder, error) {
	args := m.Called(ctx, caller, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Folder), args.Error(1)
}

func (m *MockFolderService) CreateFolder(ctx context.Context, caller *services.Caller, folder *models.Folder) (*models.Folder, error) {
	args := m.Called(ctx, caller, folder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Folder), args.Error(1)
}

func (m *MockFolderService) UpdateFolder(ctx context.Context, caller *services.Caller, folder *models.Folder) (*models.Folder, error) {
	args := m.Called(ctx, caller, folder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Folder), args.Error(1)
}

func (m *MockFolderService) DeleteFolder(ctx context.Context, caller *services.Caller, id string) error {
	args := m.Called(ctx, caller, id)
	return args.Error(0)
}

type MockOrganizationService struct {
	mock.Mock
}

func (m *MockOrganizationService) ListOrganizations(ctx context.Context, caller *services.Caller) ([]*models.Organization, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Organization), args.Error(1)
}

func (m *MockOrganizationService) GetOrganization(ctx context.Context, caller *services.Caller, id string) (*models.Organization, error) {
	args := m.Called(ctx, caller, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationService) CreateOrganization(ctx context.Context, caller *services.Caller, org *models.Organization) (*models.Organization, error) {
	args := m.Called(ctx, caller, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationService) UpdateOrganization(ctx context.Context, caller *services.Caller, org *models.Organization) (*models.Organization, error) {
	args := m.Called(ctx, caller, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationService) DeleteOrganization(ctx context.Context, caller *services.Caller, id string) error {
	args := m.Called(ctx, caller, id)
	return args.Error(0)
}

func (m *MockOrganizationService) AddMember(ctx context.Context, caller *services.Caller, orgID string, member *models.OrganizationMember) error {
	args := m.Called(ctx, caller, orgID, member)
	return args.Error(0)
}

func (m *MockOrganizationService) RemoveMember(ctx context.Context, caller *services.Caller, orgID, userID string) error {
	args := m.Called(ctx, caller, orgID, userID)
	return args.Error(0)
}
