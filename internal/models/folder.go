package models

import (
	"time"

	"gorm.io/gorm"
)

// Folder groups documents. ParentID is nil for root folders.
type Folder struct {
	ID        string         `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID  string         `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Name      string         `json:"name" gorm:"not null" validate:"required,min=1,max=255"`
	ParentID  *string        `json:"parent_id,omitempty" gorm:"type:uuid;index"`
	Color     string         `json:"color" gorm:"size:16;default:'#6B7280'" validate:"omitempty,hexcolor"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for Folder
func (Folder) TableName() string {
	return "folders"
}
