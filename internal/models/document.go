package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DocumentStatus is the provider lifecycle status of an envelope
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusInProgress DocumentStatus = "inProgress"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusRefused    DocumentStatus = "refused"
	DocumentStatusExpired    DocumentStatus = "expired"
)

// Signer roles accepted by the provider
const (
	RoleSigner   = "signer"
	RoleApprover = "approver"
	RoleObserver = "observer"
)

// Document is the provider's view of an envelope. It is decoded from the
// provider payload for typed access; the payload itself is stored verbatim.
type Document struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Status         DocumentStatus `json:"status"`
	CreatedAt      *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time     `json:"updatedAt,omitempty"`
	ExpirationDate *time.Time     `json:"expirationDate,omitempty"`
	FlowActions    []FlowAction   `json:"flowActions"`
}

// FlowAction is one signer step in a document workflow
type FlowAction struct {
	ID             string     `json:"id,omitempty"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Identifier     string     `json:"identifier,omitempty"`
	Role           string     `json:"role,omitempty"`
	Step           int        `json:"step"`
	Authentication string     `json:"authentication,omitempty"`
	SignatureType  string     `json:"signatureType,omitempty"`
	Status         string     `json:"status,omitempty"`
	SignedAt       *time.Time `json:"signedAt,omitempty"`
}

// JSONMap is a custom type for map[string]interface{} that implements GORM interfaces
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface for GORM
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner interface for GORM
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, m)
}

// String reads a string field, returning "" when absent or not a string
func (m JSONMap) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// DocumentID returns the provider-assigned identifier carried by a provider
// document payload. Creation responses use "documentId", reads use "id".
func (m JSONMap) DocumentID() string {
	if id := m.String("id"); id != "" {
		return id
	}
	return m.String("documentId")
}

// Decode converts the payload into a typed Document
func (m JSONMap) Decode() (*Document, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CachedDocument is the tenant-scoped cache row for a provider document. The
// provider copy is authoritative; this row is a read fallback only.
type CachedDocument struct {
	ID                 string         `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID           string         `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_document_cache_tenant_doc,priority:1;index:idx_document_cache_tenant_created,priority:1"`
	ProviderDocumentID string         `json:"provider_document_id" gorm:"not null;uniqueIndex:idx_document_cache_tenant_doc,priority:2"`
	Name               string         `json:"name"`
	Status             DocumentStatus `json:"status" gorm:"type:varchar(32)"`
	Payload            JSONMap        `json:"payload" gorm:"type:jsonb;not null"`
	CreatedAt          time.Time      `json:"created_at" gorm:"index:idx_document_cache_tenant_created,priority:2"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// TableName returns the table name for CachedDocument
func (CachedDocument) TableName() string {
	return "document_cache"
}

// NewCachedDocument builds a cache row from a provider payload
func NewCachedDocument(tenantID string, payload JSONMap) *CachedDocument {
	row := &CachedDocument{
		TenantID:           tenantID,
		ProviderDocumentID: payload.DocumentID(),
		Name:               payload.String("name"),
		Status:             DocumentStatus(payload.String("status")),
		Payload:            payload,
	}
	if row.Status == "" {
		row.Status = DocumentStatusPending
	}
	return row
}

// AppendFlowAction adds a participant to the payload's flowActions list,
// starting a new list when the payload has none
func (d *CachedDocument) AppendFlowAction(participant JSONMap) {
	if d.Payload == nil {
		d.Payload = JSONMap{}
	}
	actions, _ := d.Payload["flowActions"].([]interface{})
	d.Payload["flowActions"] = append(actions, map[string]interface{}(participant))
}
