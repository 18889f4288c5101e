package models

import (
	"time"
)

// Profile represents a user. The ID is the identity provider subject and
// never changes; TenantID is nil while the user is detached.
type Profile struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	DisplayName string    `json:"display_name" gorm:"not null" validate:"required,min=1,max=200"`
	Email       string    `json:"email" gorm:"index" validate:"omitempty,email"`
	TenantID    *string   `json:"tenant_id,omitempty" gorm:"type:uuid;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// TableName returns the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// HasTenant reports whether the profile belongs to a tenant
func (p *Profile) HasTenant() bool {
	return p.TenantID != nil && *p.TenantID != ""
}
