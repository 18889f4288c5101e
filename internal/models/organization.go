package models

import (
	"time"

	"gorm.io/gorm"
)

// Organization member roles
const (
	MemberRoleOwner = "owner"
	MemberRoleAdmin = "admin"
	MemberRoleUser  = "user"
)

// Organization is a company-level grouping inside a tenant, optionally linked
// to an organization at the signing provider
type Organization struct {
	ID                     string         `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID               string         `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Name                   string         `json:"name" gorm:"not null" validate:"required,min=1,max=255"`
	ProviderOrganizationID *string        `json:"provider_organization_id,omitempty" validate:"omitempty,max=100"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Members []OrganizationMember `json:"members,omitempty" gorm:"foreignKey:OrganizationID"`
}

// TableName returns the table name for Organization
func (Organization) TableName() string {
	return "organizations"
}

// OrganizationMember links a profile to an organization with a role
type OrganizationMember struct {
	OrganizationID string    `json:"organization_id" gorm:"primaryKey;type:uuid"`
	UserID         string    `json:"user_id" gorm:"primaryKey;type:uuid" validate:"required"`
	Role           string    `json:"role" gorm:"not null;default:'user'" validate:"required,oneof=owner admin user"`
	CreatedAt      time.Time `json:"created_at"`

	// Relationships
	Profile *Profile `json:"profile,omitempty" gorm:"foreignKey:UserID"`
}

// TableName returns the table name for OrganizationMember
func (OrganizationMember) TableName() string {
	return "organization_members"
}
