package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

func newTestTenantService() (TenantService, *MockTenantRepository, *MockProfileRepository, *MockUsageService) {
	tenants := &MockTenantRepository{}
	profiles := &MockProfileRepository{}
	usage := &MockUsageService{}
	svc := NewTenantService(createTestLogger(), tenants, profiles, usage, models.NewValidationService())
	return svc, tenants, profiles, usage
}

func strPtr(s string) *string {
	return &s
}

func TestTenantService_ChangePlan(t *testing.T) {
	svc, tenants, _, _ := newTestTenantService()
	tenants.On("UpdatePlan", mock.Anything, "tenant-a", models.PlanBusiness).Return(nil)
	tenants.On("GetByID", mock.Anything, "tenant-a").Return(&models.Tenant{ID: "tenant-a", Plan: models.PlanBusiness}, nil)

	tenant, err := svc.ChangePlan(context.Background(), "tenant-a", "business")

	require.NoError(t, err)
	assert.Equal(t, models.PlanBusiness, tenant.Plan)
	tenants.AssertExpectations(t)
}

func TestTenantService_ChangePlanRejectsUnknownTier(t *testing.T) {
	svc, tenants, _, _ := newTestTenantService()

	_, err := svc.ChangePlan(context.Background(), "tenant-a", "platinum")

	assert.ErrorIs(t, err, ErrInvalidPlan)
	tenants.AssertNotCalled(t, "UpdatePlan", mock.Anything, mock.Anything, mock.Anything)
}

func TestTenantService_ChangePlanUnknownTenant(t *testing.T) {
	svc, tenants, _, _ := newTestTenantService()
	tenants.On("GetByID", mock.Anything, "tenant-x").Return(nil, repositories.ErrNotFound)

	_, err := svc.ChangePlan(context.Background(), "tenant-x", "business")

	assert.ErrorIs(t, err, repositories.ErrNotFound)
	tenants.AssertNotCalled(t, "UpdatePlan", mock.Anything, mock.Anything, mock.Anything)
}

func TestTenantService_UpdateTenantValidates(t *testing.T) {
	svc, tenants, _, _ := newTestTenantService()
	tenants.On("GetByID", mock.Anything, "tenant-a").Return(&models.Tenant{ID: "tenant-a", Name: "Acme"}, nil)

	_, err := svc.UpdateTenant(context.Background(), testCaller("tenant-a"), "", nil)

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.True(t, validationErr.HasField("name"))
	tenants.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestTenantService_AddMember(t *testing.T) {
	svc, _, profiles, usage := newTestTenantService()
	caller := testCaller("tenant-a")
	profiles.On("GetByID", mock.Anything, "profile-1").Return(&models.Profile{ID: "profile-1"}, nil)
	profiles.On("SetTenant", mock.Anything, "profile-1", mock.MatchedBy(func(id *string) bool {
		return id != nil && *id == "tenant-a"
	})).Return(nil)
	usage.On("CheckCanAddMember", mock.Anything, caller.Tenant).Return(nil)

	profile, err := svc.AddMember(context.Background(), caller, "profile-1")

	require.NoError(t, err)
	assert.Equal(t, "tenant-a", *profile.TenantID)
	profiles.AssertExpectations(t)
}

func TestTenantService_AddMemberSeatLimit(t *testing.T) {
	svc, _, profiles, usage := newTestTenantService()
	caller := testCaller("tenant-a")
	profiles.On("GetByID", mock.Anything, "profile-1").Return(&models.Profile{ID: "profile-1"}, nil)
	usage.On("CheckCanAddMember", mock.Anything, caller.Tenant).Return(ErrSeatLimitReached)

	_, err := svc.AddMember(context.Background(), caller, "profile-1")

	assert.ErrorIs(t, err, ErrSeatLimitReached)
	profiles.AssertNotCalled(t, "SetTenant", mock.Anything, mock.Anything, mock.Anything)
}

func TestTenantService_AddMemberOfAnotherTenant(t *testing.T) {
	svc, _, profiles, usage := newTestTenantService()
	profiles.On("GetByID", mock.Anything, "profile-1").Return(&models.Profile{ID: "profile-1", TenantID: strPtr("tenant-b")}, nil)

	_, err := svc.AddMember(context.Background(), testCaller("tenant-a"), "profile-1")

	assert.ErrorIs(t, err, ErrMemberOfAnotherTenant)
	usage.AssertNotCalled(t, "CheckCanAddMember", mock.Anything, mock.Anything)
}

func TestTenantService_RemoveMember(t *testing.T) {
	svc, _, profiles, _ := newTestTenantService()
	profiles.On("GetByID", mock.Anything, "profile-1").Return(&models.Profile{ID: "profile-1", TenantID: strPtr("tenant-a")}, nil)
	profiles.On("SetTenant", mock.Anything, "profile-1", (*string)(nil)).Return(nil)

	require.NoError(t, svc.RemoveMember(context.Background(), testCaller("tenant-a"), "profile-1"))
	profiles.AssertExpectations(t)
}

func TestTenantService_RemoveMemberOfAnotherTenant(t *testing.T) {
	svc, _, profiles, _ := newTestTenantService()
	profiles.On("GetByID", mock.Anything, "profile-1").Return(&models.Profile{ID: "profile-1", TenantID: strPtr("tenant-b")}, nil)

	err := svc.RemoveMember(context.Background(), testCaller("tenant-a"), "profile-1")

	assert.ErrorIs(t, err, repositories.ErrNotFound)
	profiles.AssertNotCalled(t, "SetTenant", mock.Anything, mock.Anything, mock.Anything)
}
