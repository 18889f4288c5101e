package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Document action verbs accepted by the proxy endpoint
const (
	ActionCreate    = "create"
	ActionList      = "list"
	ActionGet       = "get"
	ActionAddSigner = "add-signer"
	ActionDelete    = "delete"
)

// Default and maximum page sizes for the list action
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
	MaxSigners       = 50
)

// ActionRequest is one variant of the tagged action envelope
type ActionRequest interface {
	Action() string
}

// SignerInput is a signer as supplied by the caller
type SignerInput struct {
	Name       string `json:"name" validate:"required,min=1,max=200"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Identifier string `json:"identifier,omitempty" validate:"omitempty,max=100"`
}

// ProviderIdentifier returns the identifier sent to the provider, which
// defaults to the email address
func (s SignerInput) ProviderIdentifier() string {
	if s.Identifier != "" {
		return s.Identifier
	}
	return s.Email
}

// CreateDocumentRequest submits a new envelope
type CreateDocumentRequest struct {
	FileName    string        `json:"fileName" validate:"required,min=1,max=255"`
	FileContent string        `json:"fileContent" validate:"required,base64"`
	Signers     []SignerInput `json:"signers" validate:"required,min=1,max=50,dive"`
	Description string        `json:"description,omitempty" validate:"omitempty,max=1000"`

	// IdempotencyKey comes from the Idempotency-Key header, never the body
	IdempotencyKey string `json:"-" validate:"omitempty,max=255"`
}

func (CreateDocumentRequest) Action() string { return ActionCreate }

// DecodedSize returns the byte length of the base64 file content
func (r *CreateDocumentRequest) DecodedSize() int {
	size := base64.StdEncoding.DecodedLen(len(r.FileContent))
	for i := len(r.FileContent) - 1; i >= 0 && r.FileContent[i] == '='; i-- {
		size--
	}
	return size
}

// ListDocumentsRequest pages through the tenant's documents
type ListDocumentsRequest struct {
	Limit  *int `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
	Offset *int `json:"offset,omitempty" validate:"omitempty,min=0"`
}

func (ListDocumentsRequest) Action() string { return ActionList }

// Page returns the limit and offset with defaults applied
func (r *ListDocumentsRequest) Page() (limit, offset int) {
	limit, offset = DefaultListLimit, 0
	if r.Limit != nil {
		limit = *r.Limit
	}
	if r.Offset != nil {
		offset = *r.Offset
	}
	return limit, offset
}

// GetDocumentRequest reads a single document
type GetDocumentRequest struct {
	DocumentID string `json:"documentId" validate:"required,uuid"`
}

func (GetDocumentRequest) Action() string { return ActionGet }

// AddSignerRequest appends a participant to an existing document
type AddSignerRequest struct {
	DocumentID string      `json:"documentId" validate:"required,uuid"`
	Signer     SignerInput `json:"signer" validate:"required"`
	Step       *int        `json:"step,omitempty" validate:"omitempty,min=1"`
}

func (AddSignerRequest) Action() string { return ActionAddSigner }

// DeleteDocumentRequest removes a document at the provider
type DeleteDocumentRequest struct {
	DocumentID string `json:"documentId" validate:"required,uuid"`
}

func (DeleteDocumentRequest) Action() string { return ActionDelete }

// DecodeActionRequest reads the action tag from an envelope and decodes the
// matching variant. Unknown fields are rejected.
func DecodeActionRequest(body []byte) (ActionRequest, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewFieldError("body", "must be a JSON object")
	}

	var target ActionRequest
	switch envelope.Action {
	case ActionCreate:
		target = &CreateDocumentRequest{}
	case ActionList:
		target = &ListDocumentsRequest{}
	case ActionGet:
		target = &GetDocumentRequest{}
	case ActionAddSigner:
		target = &AddSignerRequest{}
	case ActionDelete:
		target = &DeleteDocumentRequest{}
	case "":
		return nil, NewFieldError("action", "this field is required")
	default:
		return nil, NewFieldError("action", fmt.Sprintf("must be one of: %s %s %s %s %s",
			ActionCreate, ActionList, ActionGet, ActionAddSigner, ActionDelete))
	}

	decoder := json.NewDecoder(bytes.NewReader(stripAction(body)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return nil, NewFieldError("body", fmt.Sprintf("invalid payload for action %s: %v", envelope.Action, err))
	}
	return target, nil
}

// stripAction removes the tag so strict decoding of the variant succeeds
func stripAction(body []byte) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}
	delete(fields, "action")
	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}
