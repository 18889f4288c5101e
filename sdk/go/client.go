// Package easydoc provides a Go client SDK for the easy-doc-signer document and management APIs
package easydoc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DocumentActionPath is the tagged-action document endpoint
const DocumentActionPath = "/functions/v1/lacuna-documents"

// Client represents the easy-doc-signer client
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	version    string
}

// ClientOption represents a client configuration option
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithToken sets the authentication token
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithVersion sets the management API version
func WithVersion(version string) ClientOption {
	return func(c *Client) {
		c.version = version
	}
}

// NewClient creates a new easy-doc-signer client
func NewClient(baseURL string, options ...ClientOption) *Client {
	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		version: "v1",
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// Signer is one participant of a document workflow
type Signer struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Identifier string `json:"identifier,omitempty"`
}

// FlowAction is one signer step as reported by the provider
type FlowAction struct {
	ID       string     `json:"id,omitempty"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Step     int        `json:"step"`
	Status   string     `json:"status,omitempty"`
	SignedAt *time.Time `json:"signedAt,omitempty"`
}

// Document is a signing envelope
type Document struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	CreatedAt   *time.Time   `json:"createdAt,omitempty"`
	FlowActions []FlowAction `json:"flowActions"`
}

// DocumentPage is one page of the tenant's documents
type DocumentPage struct {
	Items      []Document `json:"items"`
	TotalCount int        `json:"totalCount"`
}

// CreateDocumentInput describes a new document. Content is sent base64 encoded.
type CreateDocumentInput struct {
	FileName       string
	Content        []byte
	Signers        []Signer
	Description    string
	IdempotencyKey string
}

// ActionResult carries the envelope flags that accompany every document action
type ActionResult struct {
	Data      json.RawMessage `json:"data"`
	FromCache *bool           `json:"fromCache,omitempty"`
	Cached    *bool           `json:"cached,omitempty"`
	Replayed  bool            `json:"-"`
}

// ServedFromCache reports whether a read was answered from the local cache
func (r *ActionResult) ServedFromCache() bool {
	return r.FromCache != nil && *r.FromCache
}

// Plan describes one subscription tier
type Plan struct {
	Tier      string `json:"tier"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	SeatLimit int    `json:"seat_limit"`
	Documents struct {
		Kind  string `json:"kind"`
		Limit int    `json:"limit"`
	} `json:"documents"`
}

// Tenant represents the caller's tenant
type Tenant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	TaxID string `json:"tax_id,omitempty"`
	Plan  string `json:"plan"`
}

// DocumentUsage is the plan evaluation for document creation
type DocumentUsage struct {
	CapKind     string  `json:"cap_kind"`
	Used        int     `json:"used"`
	Limit       int     `json:"limit"`
	Remaining   int     `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
	NearLimit   bool    `json:"near_limit"`
	Unlimited   bool    `json:"unlimited"`
	Allowed     bool    `json:"allowed"`
	BlockReason string  `json:"block_reason,omitempty"`
}

// SeatUsage is the plan evaluation for tenant members
type SeatUsage struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
	CanAdd    bool `json:"can_add"`
}

// Usage reports the tenant's plan consumption
type Usage struct {
	Plan      Plan          `json:"plan"`
	Documents DocumentUsage `json:"documents"`
	Seats     SeatUsage     `json:"seats"`
}

// Error represents an API error response
type Error struct {
	Message   string          `json:"error"`
	Code      string          `json:"code,omitempty"`
	Status    int             `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Details   json.RawMessage `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// Document Actions

// CreateDocument uploads a document and starts its signing workflow
func (c *Client) CreateDocument(ctx context.Context, input *CreateDocumentInput) (*Document, *ActionResult, error) {
	body := map[string]interface{}{
		"action":      "create",
		"fileName":    input.FileName,
		"fileContent": base64.StdEncoding.EncodeToString(input.Content),
		"signers":     input.Signers,
	}
	if input.Description != "" {
		body["description"] = input.Description
	}

	headers := map[string]string{}
	if input.IdempotencyKey != "" {
		headers["Idempotency-Key"] = input.IdempotencyKey
	}

	var document Document
	result, err := c.action(ctx, body, headers, &document)
	if err != nil {
		return nil, nil, err
	}
	return &document, result, nil
}

// ListDocuments returns one page of the tenant's documents
func (c *Client) ListDocuments(ctx context.Context, limit, offset int) (*DocumentPage, *ActionResult, error) {
	body := map[string]interface{}{"action": "list"}
	if limit > 0 {
		body["limit"] = limit
	}
	if offset > 0 {
		body["offset"] = offset
	}

	var page DocumentPage
	result, err := c.action(ctx, body, nil, &page)
	if err != nil {
		return nil, nil, err
	}
	return &page, result, nil
}

// GetDocument retrieves one document
func (c *Client) GetDocument(ctx context.Context, documentID string) (*Document, *ActionResult, error) {
	var document Document
	result, err := c.action(ctx, map[string]interface{}{
		"action":     "get",
		"documentId": documentID,
	}, nil, &document)
	if err != nil {
		return nil, nil, err
	}
	return &document, result, nil
}

// AddSigner appends a signer to a document's workflow. A zero step lets the
// provider pick the next one.
func (c *Client) AddSigner(ctx context.Context, documentID string, signer Signer, step int) (*ActionResult, error) {
	body := map[string]interface{}{
		"action":     "add-signer",
		"documentId": documentID,
		"signer":     signer,
	}
	if step > 0 {
		body["step"] = step
	}
	return c.action(ctx, body, nil, nil)
}

// DeleteDocument removes a document
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := c.action(ctx, map[string]interface{}{
		"action":     "delete",
		"documentId": documentID,
	}, nil, nil)
	return err
}

// Management Methods

// GetPlans lists the available plans
func (c *Client) GetPlans(ctx context.Context) ([]Plan, error) {
	var result []Plan
	err := c.makeRequest(ctx, http.MethodGet, c.apiPath("/plans"), nil, nil, &result)
	return result, err
}

// GetTenant retrieves the caller's tenant
func (c *Client) GetTenant(ctx context.Context) (*Tenant, error) {
	var result Tenant
	err := c.makeRequest(ctx, http.MethodGet, c.apiPath("/tenant"), nil, nil, &result)
	return &result, err
}

// GetUsage retrieves document and seat usage for the caller's tenant
func (c *Client) GetUsage(ctx context.Context) (*Usage, error) {
	var result Usage
	err := c.makeRequest(ctx, http.MethodGet, c.apiPath("/tenant/usage"), nil, nil, &result)
	return &result, err
}

// Private helper methods

func (c *Client) apiPath(path string) string {
	return fmt.Sprintf("/api/%s%s", c.version, path)
}

func (c *Client) action(ctx context.Context, body interface{}, headers map[string]string, data interface{}) (*ActionResult, error) {
	var result ActionResult
	replayed, err := c.doRequest(ctx, http.MethodPost, DocumentActionPath, body, headers, &result)
	if err != nil {
		return nil, err
	}
	result.Replayed = replayed

	if data != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action data: %w", err)
		}
	}
	return &result, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, headers map[string]string, result interface{}) error {
	_, err := c.doRequest(ctx, method, path, body, headers, result)
	return err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, headers map[string]string, result interface{}) (bool, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr Error
		if err := json.Unmarshal(respBody, &apiErr); err != nil {
			return false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		return false, &apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return false, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return resp.Header.Get("Idempotent-Replayed") == "true", nil
}
