package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

var (
	ErrDocumentQuotaExceeded = errors.New("document quota exceeded")
	ErrSeatLimitReached      = errors.New("seat limit reached")
)

// QuotaError carries the usage that caused a document creation to be blocked
type QuotaError struct {
	Usage DocumentUsage
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %d of %d documents used", e.Usage.BlockReason, e.Usage.Used, e.Usage.Limit)
}

func (e *QuotaError) Unwrap() error {
	return ErrDocumentQuotaExceeded
}

// Reason returns the client-facing error code
func (e *QuotaError) Reason() BlockReason {
	return e.Usage.BlockReason
}

// usageService implements UsageService
type usageService struct {
	logger   *logger.Logger
	ledger   repositories.DocumentUsageRepository
	profiles repositories.ProfileRepository
	location *time.Location
	now      func() time.Time
}

// NewUsageService creates a new usage service. Monthly windows follow the
// configured timezone, falling back to UTC when it cannot be loaded.
func NewUsageService(
	cfg *config.Config,
	logger *logger.Logger,
	ledger repositories.DocumentUsageRepository,
	profiles repositories.ProfileRepository,
) UsageService {
	loc, err := time.LoadLocation(cfg.Usage.Timezone)
	if err != nil {
		logger.WithError(err).
			WithField("timezone", cfg.Usage.Timezone).
			Warn("Unknown usage timezone, counting monthly windows in UTC")
		loc = time.UTC
	}

	return &usageService{
		logger:   logger,
		ledger:   ledger,
		profiles: profiles,
		location: loc,
		now:      time.Now,
	}
}

// GetDocumentUsage counts the tenant's usage ledger in the plan's window and
// evaluates it against the plan
func (s *usageService) GetDocumentUsage(ctx context.Context, tenant *models.Tenant) (*DocumentUsage, error) {
	plan := tenant.EffectivePlan()
	if plan.Documents.IsUnlimited() {
		usage := EvaluateDocumentUsage(plan, 0)
		return &usage, nil
	}

	since, _ := UsageWindow(plan, s.now(), s.location)
	count, err := s.ledger.CountByTenantSince(ctx, tenant.ID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	usage := EvaluateDocumentUsage(plan, int(count))
	return &usage, nil
}

// GetSeatUsage counts the tenant's members and evaluates them against the plan
func (s *usageService) GetSeatUsage(ctx context.Context, tenant *models.Tenant) (*SeatUsage, error) {
	count, err := s.profiles.CountByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	usage := EvaluateSeatUsage(tenant.EffectivePlan(), int(count))
	return &usage, nil
}

// CheckCanCreateDocument returns a *QuotaError when the plan's document cap
// is exhausted
func (s *usageService) CheckCanCreateDocument(ctx context.Context, tenant *models.Tenant) error {
	usage, err := s.GetDocumentUsage(ctx, tenant)
	if err != nil {
		return err
	}

	if usage.Blocked() {
		s.logger.WithTenant(tenant.ID).
			WithField("plan", tenant.Plan.String()).
			WithField("used", usage.Used).
			WithField("limit", usage.Limit).
			Info("Document creation blocked by plan")
		return &QuotaError{Usage: *usage}
	}

	return nil
}

// CheckCanAddMember returns ErrSeatLimitReached when another member would
// exceed the plan's seat cap
func (s *usageService) CheckCanAddMember(ctx context.Context, tenant *models.Tenant) error {
	usage, err := s.GetSeatUsage(ctx, tenant)
	if err != nil {
		return err
	}

	if !usage.CanAdd {
		return fmt.Errorf("%w: %d of %d seats used", ErrSeatLimitReached, usage.Used, usage.Limit)
	}

	return nil
}
