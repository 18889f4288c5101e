package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

var (
	ErrProviderNotConfigured = errors.New("signing provider is not configured")
	ErrProviderUnavailable   = errors.New("signing provider unavailable")
	ErrProviderTimeout       = errors.New("signing provider timed out")
)

// maxProviderResponseBytes bounds how much of a provider response is read
const maxProviderResponseBytes = 32 << 20

// ProviderError is a non-2xx answer from the signing provider
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("signing provider returned HTTP %d", e.StatusCode)
}

// ProviderCredentials authenticate calls to the signing provider
type ProviderCredentials struct {
	APIKey         string
	OrganizationID string
	// Shared is set for the service-wide key, which sees every tenant's
	// documents
	Shared bool
}

// ProviderUser identifies a participant at the provider
type ProviderUser struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Identifier string `json:"identifier"`
}

// ProviderFlowAction is one participant step sent to the provider
type ProviderFlowAction struct {
	Type string       `json:"type"`
	Step int          `json:"step,omitempty"`
	User ProviderUser `json:"user"`
}

// ProviderFile is an uploaded document file
type ProviderFile struct {
	DisplayName string `json:"displayName"`
	MimeType    string `json:"mimeType"`
	Content     string `json:"content"`
}

// ProviderCreateDocument is the provider's document creation payload
type ProviderCreateDocument struct {
	Files       []ProviderFile       `json:"files"`
	FlowActions []ProviderFlowAction `json:"flowActions"`
	Description string               `json:"description,omitempty"`
}

// NewProviderFlowAction maps a caller's signer to a provider participant at step
func NewProviderFlowAction(signer models.SignerInput, step int) ProviderFlowAction {
	return ProviderFlowAction{
		Type: "Signer",
		Step: step,
		User: ProviderUser{
			Name:       signer.Name,
			Email:      signer.Email,
			Identifier: signer.ProviderIdentifier(),
		},
	}
}

// BuildCreateDocumentPayload orders signers by their position in the request,
// starting at step 1
func BuildCreateDocumentPayload(req *models.CreateDocumentRequest) *ProviderCreateDocument {
	payload := &ProviderCreateDocument{
		Files: []ProviderFile{{
			DisplayName: req.FileName,
			MimeType:    "application/pdf",
			Content:     req.FileContent,
		}},
		FlowActions: make([]ProviderFlowAction, 0, len(req.Signers)),
		Description: req.Description,
	}

	for i, signer := range req.Signers {
		payload.FlowActions = append(payload.FlowActions, NewProviderFlowAction(signer, i+1))
	}

	return payload
}

// HTTPClientPool manages a pool of HTTP clients with connection pooling
type HTTPClientPool struct {
	clients map[string]*http.Client
	timeout time.Duration
	mutex   sync.RWMutex
}

// NewHTTPClientPool creates a new HTTP client pool whose clients give up
// after timeout
func NewHTTPClientPool(timeout time.Duration) *HTTPClientPool {
	return &HTTPClientPool{
		clients: make(map[string]*http.Client),
		timeout: timeout,
	}
}

// GetClient returns an HTTP client for the given endpoint with connection pooling
func (p *HTTPClientPool) GetClient(endpoint string) *http.Client {
	p.mutex.RLock()
	client, exists := p.clients[endpoint]
	p.mutex.RUnlock()

	if exists {
		return client
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Double-check after acquiring write lock
	if client, exists := p.clients[endpoint]; exists {
		return client
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client = &http.Client{
		Transport: transport,
		Timeout:   p.timeout,
	}

	p.clients[endpoint] = client
	return client
}

// signingProviderClient implements SigningProviderClient
type signingProviderClient struct {
	logger     *logger.Logger
	metrics    *Metrics
	baseURL    string
	timeout    time.Duration
	clientPool *HTTPClientPool
}

// NewSigningProviderClient creates a client for the configured provider base URL
func NewSigningProviderClient(cfg *config.Config, logger *logger.Logger, metrics *Metrics) SigningProviderClient {
	timeout := time.Duration(cfg.Provider.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &signingProviderClient{
		logger:     logger,
		metrics:    metrics,
		baseURL:    strings.TrimRight(cfg.Provider.BaseURL, "/"),
		timeout:    timeout,
		clientPool: NewHTTPClientPool(timeout),
	}
}

// CreateDocument submits a new envelope
func (c *signingProviderClient) CreateDocument(ctx context.Context, creds ProviderCredentials, payload *ProviderCreateDocument) (models.JSONMap, error) {
	return c.do(ctx, creds, "create", http.MethodPost, "/documents", nil, payload)
}

// ListDocuments reads one page of documents. Array responses are wrapped
// under "items".
func (c *signingProviderClient) ListDocuments(ctx context.Context, creds ProviderCredentials, limit, offset int) (models.JSONMap, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	return c.do(ctx, creds, "list", http.MethodGet, "/documents", query, nil)
}

// GetDocument reads a single document
func (c *signingProviderClient) GetDocument(ctx context.Context, creds ProviderCredentials, documentID string) (models.JSONMap, error) {
	return c.do(ctx, creds, "get", http.MethodGet, "/documents/"+url.PathEscape(documentID), nil, nil)
}

// AddParticipant appends a participant to a document's flow
func (c *signingProviderClient) AddParticipant(ctx context.Context, creds ProviderCredentials, documentID string, participant *ProviderFlowAction) (models.JSONMap, error) {
	path := "/documents/" + url.PathEscape(documentID) + "/participants"
	return c.do(ctx, creds, "add_participant", http.MethodPost, path, nil, participant)
}

// DeleteDocument removes a document at the provider
func (c *signingProviderClient) DeleteDocument(ctx context.Context, creds ProviderCredentials, documentID string) error {
	_, err := c.do(ctx, creds, "delete", http.MethodDelete, "/documents/"+url.PathEscape(documentID), nil, nil)
	return err
}

// do sends one bounded request and decodes its JSON answer. Non-2xx answers
// become *ProviderError; transport failures wrap ErrProviderUnavailable or
// ErrProviderTimeout.
func (c *signingProviderClient) do(ctx context.Context, creds ProviderCredentials, operation, method, path string, query url.Values, body interface{}) (models.JSONMap, error) {
	if creds.APIKey == "" {
		return nil, ErrProviderNotConfigured
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var requestBody io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		requestBody = bytes.NewReader(bodyBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.OrganizationID != "" {
		req.Header.Set("X-Organization-Id", creds.OrganizationID)
	}

	start := time.Now()
	resp, err := c.clientPool.GetClient(c.baseURL).Do(req)
	if err != nil {
		c.observe(operation, "error", start)
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrProviderTimeout, method, path, err)
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrProviderUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	c.observe(operation, strconv.Itoa(resp.StatusCode), start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithField("operation", operation).
			WithField("status_code", resp.StatusCode).
			Warn("Signing provider request failed")
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return decodeProviderBody(raw)
}

func (c *signingProviderClient) observe(operation, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ProviderRequestTime.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

func decodeProviderBody(raw []byte) (models.JSONMap, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.JSONMap{}, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON response: %v", ErrProviderUnavailable, err)
	}

	switch v := decoded.(type) {
	case map[string]interface{}:
		return models.JSONMap(v), nil
	case []interface{}:
		return models.JSONMap{"items": v}, nil
	default:
		return models.JSONMap{"value": v}, nil
	}
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
