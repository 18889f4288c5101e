package models

import (
	"time"

	"gorm.io/gorm"
)

// Tenant represents the billing and organizational root entity
type Tenant struct {
	ID                     string         `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name                   string         `json:"name" gorm:"not null" validate:"required,min=1,max=255"`
	TaxID                  *string        `json:"tax_id,omitempty" gorm:"size:32" validate:"omitempty,max=32"`
	Plan                   PlanTier       `json:"plan" gorm:"type:varchar(32);not null;default:'free'"`
	MaxUsers               *int           `json:"max_users,omitempty" validate:"omitempty,min=0"`
	MonthlyDocumentQuota   *int           `json:"monthly_document_quota,omitempty" validate:"omitempty,min=0"`
	ProviderAPIKey         *string        `json:"-" gorm:"column:provider_api_key"`
	ProviderOrganizationID *string        `json:"provider_organization_id,omitempty" gorm:"column:provider_organization_id"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Profiles []Profile `json:"profiles,omitempty" gorm:"foreignKey:TenantID"`
}

// TableName returns the table name for Tenant
func (Tenant) TableName() string {
	return "tenants"
}

// EffectivePlan returns the tenant's plan with per-tenant overrides applied.
// MaxUsers replaces the seat cap; MonthlyDocumentQuota replaces the cap of a
// monthly-counted plan.
func (t *Tenant) EffectivePlan() Plan {
	plan := PlanFor(t.Plan)
	if t.MaxUsers != nil {
		plan.SeatLimit = *t.MaxUsers
	}
	if t.MonthlyDocumentQuota != nil && plan.Documents.Kind == CapMonthly {
		plan.Documents.Limit = *t.MonthlyDocumentQuota
	}
	return plan
}

// HasProviderCredentials reports whether the tenant carries its own
// signing provider API key
func (t *Tenant) HasProviderCredentials() bool {
	return t.ProviderAPIKey != nil && *t.ProviderAPIKey != ""
}
