package models

import (
	"time"
)

// DocumentUsageRecord is one entry of the append-only ledger of documents a
// tenant created at the provider. Rows are never updated or deleted, so
// removing a document does not return quota.
type DocumentUsageRecord struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID           string    `json:"tenant_id" gorm:"type:uuid;not null;index:idx_document_usage_tenant_created,priority:1"`
	ProviderDocumentID string    `json:"provider_document_id"`
	CreatedAt          time.Time `json:"created_at" gorm:"not null;index:idx_document_usage_tenant_created,priority:2"`
}

// TableName returns the table name for DocumentUsageRecord
func (DocumentUsageRecord) TableName() string {
	return "document_usage"
}
