package services

import (
	"context"
	"fmt"

	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

// organizationService implements OrganizationService
type organizationService struct {
	logger        *logger.Logger
	organizations repositories.OrganizationRepository
	profiles      repositories.ProfileRepository
	validator     *models.ValidationService
}

// NewOrganizationService creates a new organization service
func NewOrganizationService(
	logger *logger.Logger,
	organizations repositories.OrganizationRepository,
	profiles repositories.ProfileRepository,
	validator *models.ValidationService,
) OrganizationService {
	return &organizationService{
		logger:        logger,
		organizations: organizations,
		profiles:      profiles,
		validator:     validator,
	}
}

func (s *organizationService) ListOrganizations(ctx context.Context, caller *Caller) ([]*models.Organization, error) {
	return s.organizations.ListByTenant(ctx, caller.TenantID())
}

func (s *organizationService) GetOrganization(ctx context.Context, caller *Caller, id string) (*models.Organization, error) {
	return s.organizations.GetByID(ctx, caller.TenantID(), id)
}

func (s *organizationService) CreateOrganization(ctx context.Context, caller *Caller, org *models.Organization) (*models.Organization, error) {
	org.ID = ""
	org.TenantID = caller.TenantID()
	org.Members = nil

	if err := s.validator.ValidateStruct(org); err != nil {
		return nil, err
	}

	if err := s.organizations.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.logger.WithTenant(org.TenantID).WithField("organization_id", org.ID).Info("Organization created")
	return org, nil
}

func (s *organizationService) UpdateOrganization(ctx context.Context, caller *Caller, org *models.Organization) (*models.Organization, error) {
	existing, err := s.organizations.GetByID(ctx, caller.TenantID(), org.ID)
	if err != nil {
		return nil, err
	}

	existing.Name = org.Name
	existing.ProviderOrganizationID = org.ProviderOrganizationID
	if err := s.validator.ValidateStruct(existing); err != nil {
		return nil, err
	}

	if err := s.organizations.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return existing, nil
}

func (s *organizationService) DeleteOrganization(ctx context.Context, caller *Caller, id string) error {
	return s.organizations.Delete(ctx, caller.TenantID(), id)
}

// AddMember adds a profile of the caller's tenant to an organization of the
// same tenant
func (s *organizationService) AddMember(ctx context.Context, caller *Caller, orgID string, member *models.OrganizationMember) error {
	tenantID := caller.TenantID()

	if _, err := s.organizations.GetByID(ctx, tenantID, orgID); err != nil {
		return err
	}

	member.OrganizationID = orgID
	if member.Role == "" {
		member.Role = models.MemberRoleUser
	}
	if err := s.validator.ValidateStruct(member); err != nil {
		return err
	}

	profile, err := s.profiles.GetByID(ctx, member.UserID)
	if err != nil {
		return err
	}
	if !profile.HasTenant() || *profile.TenantID != tenantID {
		return repositories.ErrNotFound
	}

	return s.organizations.AddMember(ctx, member)
}

func (s *organizationService) RemoveMember(ctx context.Context, caller *Caller, orgID, userID string) error {
	if _, err := s.organizations.GetByID(ctx, caller.TenantID(), orgID); err != nil {
		return err
	}
	return s.organizations.RemoveMember(ctx, orgID, userID)
}
