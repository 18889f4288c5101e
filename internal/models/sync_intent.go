package models

import (
	"time"
)

// SyncIntentState tracks a cache write that did not land after a confirmed
// provider operation
type SyncIntentState string

const (
	SyncIntentPending    SyncIntentState = "pending"
	SyncIntentReconciled SyncIntentState = "reconciled"
	SyncIntentFailed     SyncIntentState = "failed"
)

// SyncIntent is an outbox row consumed by the reconciliation processor
type SyncIntent struct {
	ID                 string          `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID           string          `json:"tenant_id" gorm:"type:uuid;not null;index"`
	ProviderDocumentID string          `json:"provider_document_id" gorm:"not null;index"`
	Action             string          `json:"action" gorm:"not null"`
	IdempotencyKey     string          `json:"idempotency_key,omitempty" gorm:"index"`
	State              SyncIntentState `json:"state" gorm:"type:varchar(16);not null;default:'pending';index"`
	Attempts           int             `json:"attempts" gorm:"not null;default:0"`
	LastError          string          `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName returns the table name for SyncIntent
func (SyncIntent) TableName() string {
	return "document_sync_intents"
}
