package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

var (
	ErrInvalidPlan           = errors.New("unknown plan tier")
	ErrMemberOfAnotherTenant = errors.New("profile belongs to another tenant")
)

// tenantService implements TenantService
type tenantService struct {
	logger    *logger.Logger
	tenants   repositories.TenantRepository
	profiles  repositories.ProfileRepository
	usage     UsageService
	validator *models.ValidationService
}

// NewTenantService creates a new tenant service
func NewTenantService(
	logger *logger.Logger,
	tenants repositories.TenantRepository,
	profiles repositories.ProfileRepository,
	usage UsageService,
	validator *models.ValidationService,
) TenantService {
	return &tenantService{
		logger:    logger,
		tenants:   tenants,
		profiles:  profiles,
		usage:     usage,
		validator: validator,
	}
}

// GetTenant returns the caller's tenant as stored
func (s *tenantService) GetTenant(ctx context.Context, caller *Caller) (*models.Tenant, error) {
	return s.tenants.GetByID(ctx, caller.TenantID())
}

// UpdateTenant changes the tenant's name and tax id
func (s *tenantService) UpdateTenant(ctx context.Context, caller *Caller, name string, taxID *string) (*models.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, caller.TenantID())
	if err != nil {
		return nil, err
	}

	tenant.Name = name
	tenant.TaxID = taxID
	if err := s.validator.ValidateStruct(tenant); err != nil {
		return nil, err
	}

	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return tenant, nil
}

// ChangePlan moves a tenant to another tier. It is an operator action with
// no route on the tenant API. Unknown tier names are rejected rather than
// mapped to the free tier.
func (s *tenantService) ChangePlan(ctx context.Context, tenantID, plan string) (*models.Tenant, error) {
	tier, ok := models.ParsePlanTier(plan)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}

	if _, err := s.tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	if err := s.tenants.UpdatePlan(ctx, tenantID, tier); err != nil {
		return nil, err
	}

	s.logger.WithTenant(tenantID).
		WithField("plan", tier.String()).
		Info("Tenant plan changed")

	return s.tenants.GetByID(ctx, tenantID)
}

// ListMembers returns the profiles attached to the caller's tenant
func (s *tenantService) ListMembers(ctx context.Context, caller *Caller) ([]*models.Profile, error) {
	return s.profiles.GetByTenant(ctx, caller.TenantID())
}

// AddMember attaches a detached profile to the caller's tenant when a seat
// is free
func (s *tenantService) AddMember(ctx context.Context, caller *Caller, profileID string) (*models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}

	tenantID := caller.TenantID()
	if profile.HasTenant() {
		if *profile.TenantID == tenantID {
			return profile, nil
		}
		return nil, ErrMemberOfAnotherTenant
	}

	if err := s.usage.CheckCanAddMember(ctx, caller.Tenant); err != nil {
		return nil, err
	}

	if err := s.profiles.SetTenant(ctx, profileID, &tenantID); err != nil {
		return nil, err
	}
	profile.TenantID = &tenantID

	s.logger.WithTenant(tenantID).WithField("profile_id", profileID).Info("Member added to tenant")
	return profile, nil
}

// RemoveMember detaches a profile from the caller's tenant. Profiles of other
// tenants are reported as not found.
func (s *tenantService) RemoveMember(ctx context.Context, caller *Caller, profileID string) error {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return err
	}

	tenantID := caller.TenantID()
	if !profile.HasTenant() || *profile.TenantID != tenantID {
		return repositories.ErrNotFound
	}

	if err := s.profiles.SetTenant(ctx, profileID, nil); err != nil {
		return err
	}

	s.logger.WithTenant(tenantID).WithField("profile_id", profileID).Info("Member removed from tenant")
	return nil
}
