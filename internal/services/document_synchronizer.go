package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

var (
	// ErrUnknownDocument is returned when a caller on the shared provider key
	// names a document its tenant has no cached row for
	ErrUnknownDocument = fmt.Errorf("document is not known to this tenant: %w", repositories.ErrNotFound)

	// ErrIdempotencyInFlight is returned while another request holds the
	// same idempotency key
	ErrIdempotencyInFlight = errors.New("a request with this idempotency key is still running")
)

// releaseTimeout bounds giving an idempotency key back after a failed create
const releaseTimeout = 2 * time.Second

// documentSynchronizer implements DocumentSynchronizer
type documentSynchronizer struct {
	cfg            *config.Config
	logger         *logger.Logger
	provider       SigningProviderClient
	documents      repositories.DocumentCacheRepository
	ledger         repositories.DocumentUsageRepository
	usage          UsageService
	validator      *models.ValidationService
	idempotency    IdempotencyStore
	reconciliation ReconciliationQueue
	metrics        *Metrics
}

// NewDocumentSynchronizer creates a new document synchronizer. idempotency
// and reconciliation may be nil, which disables those features.
func NewDocumentSynchronizer(
	cfg *config.Config,
	logger *logger.Logger,
	provider SigningProviderClient,
	documents repositories.DocumentCacheRepository,
	ledger repositories.DocumentUsageRepository,
	usage UsageService,
	validator *models.ValidationService,
	idempotency IdempotencyStore,
	reconciliation ReconciliationQueue,
	metrics *Metrics,
) DocumentSynchronizer {
	return &documentSynchronizer{
		cfg:            cfg,
		logger:         logger,
		provider:       provider,
		documents:      documents,
		ledger:         ledger,
		usage:          usage,
		validator:      validator,
		idempotency:    idempotency,
		reconciliation: reconciliation,
		metrics:        metrics,
	}
}

// ResolveProviderCredentials returns the tenant's own provider credentials
// when present, else the service-wide ones marked Shared
func ResolveProviderCredentials(cfg *config.Config, tenant *models.Tenant) (ProviderCredentials, error) {
	creds := ProviderCredentials{
		APIKey:         cfg.Provider.APIKey,
		OrganizationID: cfg.Provider.OrganizationID,
		Shared:         true,
	}

	if tenant != nil && tenant.HasProviderCredentials() {
		creds.APIKey = *tenant.ProviderAPIKey
		creds.OrganizationID = ""
		if tenant.ProviderOrganizationID != nil {
			creds.OrganizationID = *tenant.ProviderOrganizationID
		}
		creds.Shared = false
	}

	if creds.APIKey == "" {
		return ProviderCredentials{}, ErrProviderNotConfigured
	}
	return creds, nil
}

// Execute dispatches a decoded action to its handler
func (s *documentSynchronizer) Execute(ctx context.Context, caller *Caller, req models.ActionRequest) (*ActionResult, error) {
	var (
		result *ActionResult
		err    error
	)

	switch r := req.(type) {
	case *models.CreateDocumentRequest:
		result, err = s.Create(ctx, caller, r)
	case *models.ListDocumentsRequest:
		result, err = s.List(ctx, caller, r)
	case *models.GetDocumentRequest:
		result, err = s.Get(ctx, caller, r)
	case *models.AddSignerRequest:
		result, err = s.AddSigner(ctx, caller, r)
	case *models.DeleteDocumentRequest:
		result, err = s.Delete(ctx, caller, r)
	default:
		err = models.NewFieldError("action", fmt.Sprintf("unsupported action %T", req))
	}

	s.recordOutcome(req, result, err)
	return result, err
}

func (s *documentSynchronizer) recordOutcome(req models.ActionRequest, result *ActionResult, err error) {
	if s.metrics == nil || req == nil {
		return
	}

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case result.FromCache != nil && *result.FromCache:
		outcome = "cache"
	case result.Replayed:
		outcome = "replayed"
	}
	s.metrics.ActionsTotal.WithLabelValues(req.Action(), outcome).Inc()
}

// prepare resolves credentials and validates the payload. Nothing reaches the
// provider when either fails.
func (s *documentSynchronizer) prepare(caller *Caller, req interface{}) (ProviderCredentials, error) {
	creds, err := ResolveProviderCredentials(s.cfg, caller.Tenant)
	if err != nil {
		return ProviderCredentials{}, err
	}

	if err := s.validator.ValidateStruct(req); err != nil {
		return ProviderCredentials{}, err
	}

	return creds, nil
}

// Create submits a document and caches the provider's answer
func (s *documentSynchronizer) Create(ctx context.Context, caller *Caller, req *models.CreateDocumentRequest) (*ActionResult, error) {
	creds, err := s.prepare(caller, req)
	if err != nil {
		return nil, err
	}

	if limit := s.cfg.Provider.MaxFileBytes; limit > 0 && req.DecodedSize() > limit {
		return nil, models.NewFieldError("fileContent", fmt.Sprintf("must be at most %d bytes", limit))
	}

	tenantID := caller.TenantID()
	log := s.logger.WithAction(tenantID, models.ActionCreate)

	if replay := s.lookupReplay(ctx, tenantID, req.IdempotencyKey); replay != nil {
		log.WithField("idempotency_key", req.IdempotencyKey).Info("Replaying stored create response")
		return replay, nil
	}

	replay, held, err := s.claimKey(ctx, tenantID, req.IdempotencyKey)
	if err != nil {
		log.WithField("idempotency_key", req.IdempotencyKey).Info("Create with this idempotency key is still running")
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	if s.usage != nil {
		if err := s.usage.CheckCanCreateDocument(ctx, caller.Tenant); err != nil {
			var quotaErr *QuotaError
			if errors.As(err, &quotaErr) && s.metrics != nil {
				s.metrics.QuotaRejectionsTotal.WithLabelValues(string(quotaErr.Reason())).Inc()
			}
			s.releaseKey(tenantID, req.IdempotencyKey, held)
			return nil, err
		}
	}

	document, err := s.provider.CreateDocument(ctx, creds, BuildCreateDocumentPayload(req))
	if err != nil {
		log.WithError(err).Warn("Provider rejected document creation")
		s.releaseKey(tenantID, req.IdempotencyKey, held)
		return nil, err
	}

	s.recordUsage(ctx, tenantID, document.DocumentID())

	row := models.NewCachedDocument(tenantID, document)
	cached := false
	if row.ProviderDocumentID == "" {
		log.Warn("Provider response carried no document id, skipping cache insert")
	} else if err := s.documents.Insert(ctx, row); err != nil {
		log.WithError(err).
			WithField("document_id", row.ProviderDocumentID).
			Error("Failed to cache created document")
		s.cacheWriteFailed(ctx, tenantID, row.ProviderDocumentID, models.ActionCreate, req.IdempotencyKey)
	} else {
		cached = true
	}

	result := &ActionResult{
		StatusCode: http.StatusCreated,
		Data:       document,
		Cached:     &cached,
	}
	s.rememberReplay(ctx, tenantID, req.IdempotencyKey, result)

	return result, nil
}

// List reads a live page from the provider, falling back to the tenant's
// cached rows when the provider fails
func (s *documentSynchronizer) List(ctx context.Context, caller *Caller, req *models.ListDocumentsRequest) (*ActionResult, error) {
	creds, err := s.prepare(caller, req)
	if err != nil {
		return nil, err
	}

	tenantID := caller.TenantID()
	limit, offset := req.Page()

	page, err := s.provider.ListDocuments(ctx, creds, limit, offset)
	if err == nil {
		if creds.Shared {
			if page, err = s.ownedPage(ctx, tenantID, page); err != nil {
				return nil, err
			}
		}
		return &ActionResult{StatusCode: http.StatusOK, Data: page, FromCache: boolPtr(false)}, nil
	}

	s.logger.WithAction(tenantID, models.ActionList).
		WithError(err).
		Warn("Provider list failed, serving cached documents")

	rows, total, cacheErr := s.documents.ListByTenant(ctx, tenantID, limit, offset)
	if cacheErr != nil {
		return nil, &CacheError{Op: "list", Err: cacheErr}
	}

	items := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		items = append(items, map[string]interface{}(row.Payload))
	}

	s.cacheFallback(models.ActionList)
	return &ActionResult{
		StatusCode: http.StatusOK,
		Data: models.JSONMap{
			"items":      items,
			"totalCount": total,
			"limit":      limit,
			"offset":     offset,
		},
		FromCache: boolPtr(true),
	}, nil
}

// Get reads a document from the provider and refreshes its cached copy. When
// the provider fails the tenant's cached copy is served; a cache miss
// surfaces the provider error.
func (s *documentSynchronizer) Get(ctx context.Context, caller *Caller, req *models.GetDocumentRequest) (*ActionResult, error) {
	creds, err := s.prepare(caller, req)
	if err != nil {
		return nil, err
	}

	tenantID := caller.TenantID()
	log := s.logger.WithDocument(tenantID, req.DocumentID)

	cachedRow, err := s.ownedDocument(ctx, caller, creds, req.DocumentID)
	if err != nil {
		return nil, err
	}

	document, providerErr := s.provider.GetDocument(ctx, creds, req.DocumentID)
	if providerErr == nil {
		row := models.NewCachedDocument(tenantID, document)
		row.ProviderDocumentID = req.DocumentID
		if err := s.documents.Upsert(ctx, row); err != nil {
			log.WithError(err).Error("Failed to refresh cached document")
			s.cacheWriteFailed(ctx, tenantID, req.DocumentID, models.ActionGet, "")
		}
		return &ActionResult{StatusCode: http.StatusOK, Data: document, FromCache: boolPtr(false)}, nil
	}

	log.WithError(providerErr).Warn("Provider get failed, trying cached document")

	if cachedRow == nil {
		return nil, providerErr
	}

	s.cacheFallback(models.ActionGet)
	return &ActionResult{StatusCode: http.StatusOK, Data: cachedRow.Payload, FromCache: boolPtr(true)}, nil
}

// ownedDocument returns the tenant's cached row for documentID, or nil when
// there is none. On the shared provider key the row is the only proof of
// ownership, so a miss is ErrUnknownDocument. A tenant's own key is scoped by
// the provider and a miss is not an error.
func (s *documentSynchronizer) ownedDocument(ctx context.Context, caller *Caller, creds ProviderCredentials, documentID string) (*models.CachedDocument, error) {
	row, err := s.documents.GetByProviderID(ctx, caller.TenantID(), documentID)
	switch {
	case err == nil:
		return row, nil
	case !creds.Shared:
		if !errors.Is(err, repositories.ErrNotFound) {
			s.logger.WithDocument(caller.TenantID(), documentID).WithError(err).Warn("Cache read failed")
		}
		return nil, nil
	case errors.Is(err, repositories.ErrNotFound):
		s.logger.WithDocument(caller.TenantID(), documentID).Warn("Refusing document without a cached row on the shared provider key")
		return nil, ErrUnknownDocument
	default:
		return nil, &CacheError{Op: "ownership", Err: err}
	}
}

// ownedPage drops the documents of other tenants from a page read with the
// shared provider key. totalCount then counts the kept items.
func (s *documentSynchronizer) ownedPage(ctx context.Context, tenantID string, page models.JSONMap) (models.JSONMap, error) {
	items, _ := page["items"].([]interface{})

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if doc, ok := item.(map[string]interface{}); ok {
			ids = append(ids, models.JSONMap(doc).DocumentID())
		}
	}

	owned, err := s.documents.FilterOwned(ctx, tenantID, ids)
	if err != nil {
		return nil, &CacheError{Op: "list", Err: err}
	}
	keep := make(map[string]bool, len(owned))
	for _, id := range owned {
		keep[id] = true
	}

	filtered := make([]interface{}, 0, len(owned))
	for _, item := range items {
		if doc, ok := item.(map[string]interface{}); ok && keep[models.JSONMap(doc).DocumentID()] {
			filtered = append(filtered, item)
		}
	}

	result := make(models.JSONMap, len(page))
	for key, value := range page {
		result[key] = value
	}
	result["items"] = filtered
	result["totalCount"] = len(filtered)
	return result, nil
}

// AddSigner adds a participant at the provider and appends it to the cached
// copy when one exists
func (s *documentSynchronizer) AddSigner(ctx context.Context, caller *Caller, req *models.AddSignerRequest) (*ActionResult, error) {
	creds, err := s.prepare(caller, req)
	if err != nil {
		return nil, err
	}

	tenantID := caller.TenantID()
	log := s.logger.WithDocument(tenantID, req.DocumentID)

	if _, err := s.ownedDocument(ctx, caller, creds, req.DocumentID); err != nil {
		return nil, err
	}

	step := 0
	if req.Step != nil {
		step = *req.Step
	}
	participant := NewProviderFlowAction(req.Signer, step)

	response, err := s.provider.AddParticipant(ctx, creds, req.DocumentID, &participant)
	if err != nil {
		log.WithError(err).Warn("Provider rejected participant")
		return nil, err
	}

	row, err := s.documents.GetByProviderID(ctx, tenantID, req.DocumentID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		log.Debug("Document not cached, skipping participant append")
	case err != nil:
		log.WithError(err).Error("Failed to read cached document for participant append")
		s.cacheWriteFailed(ctx, tenantID, req.DocumentID, models.ActionAddSigner, "")
	default:
		row.AppendFlowAction(cachedParticipant(participant, response))
		if err := s.documents.UpdatePayload(ctx, row); err != nil {
			log.WithError(err).Error("Failed to append participant to cached document")
			s.cacheWriteFailed(ctx, tenantID, req.DocumentID, models.ActionAddSigner, "")
		}
	}

	return &ActionResult{StatusCode: http.StatusOK, Data: response}, nil
}

// cachedParticipant is the flow action entry stored in the cached payload
func cachedParticipant(participant ProviderFlowAction, response models.JSONMap) models.JSONMap {
	entry := models.JSONMap{
		"name":       participant.User.Name,
		"email":      participant.User.Email,
		"identifier": participant.User.Identifier,
		"role":       models.RoleSigner,
	}
	if participant.Step > 0 {
		entry["step"] = participant.Step
	}
	for _, key := range []string{"id", "step", "status"} {
		if value, ok := response[key]; ok {
			entry[key] = value
		}
	}
	return entry
}

// Delete removes a document at the provider, then its cached copy. The
// cached copy is never removed before the provider confirms. The usage
// ledger is left alone, so deleting does not return quota.
func (s *documentSynchronizer) Delete(ctx context.Context, caller *Caller, req *models.DeleteDocumentRequest) (*ActionResult, error) {
	creds, err := s.prepare(caller, req)
	if err != nil {
		return nil, err
	}

	tenantID := caller.TenantID()
	log := s.logger.WithDocument(tenantID, req.DocumentID)

	if _, err := s.ownedDocument(ctx, caller, creds, req.DocumentID); err != nil {
		return nil, err
	}

	if err := s.provider.DeleteDocument(ctx, creds, req.DocumentID); err != nil {
		log.WithError(err).Warn("Provider rejected document deletion")
		return nil, err
	}

	if err := s.documents.Delete(ctx, tenantID, req.DocumentID); err != nil {
		log.WithError(err).Error("Failed to delete cached document")
		s.cacheWriteFailed(ctx, tenantID, req.DocumentID, models.ActionDelete, "")
	}

	return &ActionResult{
		StatusCode: http.StatusOK,
		Data:       models.JSONMap{"success": true, "documentId": req.DocumentID},
	}, nil
}

func (s *documentSynchronizer) cacheFallback(action string) {
	if s.metrics != nil {
		s.metrics.CacheFallbacksTotal.WithLabelValues(action).Inc()
	}
}

// cacheWriteFailed records a cache step that did not land after the provider
// confirmed the operation
func (s *documentSynchronizer) cacheWriteFailed(ctx context.Context, tenantID, documentID, action, idempotencyKey string) {
	if s.metrics != nil {
		s.metrics.CacheWriteFailures.WithLabelValues(action).Inc()
	}
	if s.reconciliation == nil {
		return
	}

	intent := &models.SyncIntent{
		TenantID:           tenantID,
		ProviderDocumentID: documentID,
		Action:             action,
		IdempotencyKey:     idempotencyKey,
		State:              models.SyncIntentPending,
	}
	if err := s.reconciliation.Enqueue(ctx, intent); err != nil {
		s.logger.WithDocument(tenantID, documentID).
			WithError(err).
			Error("Failed to enqueue cache reconciliation")
	}
}

// recordUsage appends a confirmed creation to the usage ledger. A failed
// write is logged and counted; the provider already holds the document.
func (s *documentSynchronizer) recordUsage(ctx context.Context, tenantID, documentID string) {
	record := &models.DocumentUsageRecord{TenantID: tenantID, ProviderDocumentID: documentID}
	if err := s.ledger.Record(ctx, record); err != nil {
		s.logger.WithDocument(tenantID, documentID).WithError(err).Error("Failed to record document usage")
		if s.metrics != nil {
			s.metrics.UsageWriteFailures.Inc()
		}
	}
}

// claimKey reserves an idempotency key for this request. A response stored
// meanwhile comes back for replay; a key held by a running request is
// ErrIdempotencyInFlight. held reports whether this request owns the key.
func (s *documentSynchronizer) claimKey(ctx context.Context, tenantID, key string) (replay *ActionResult, held bool, err error) {
	if key == "" || s.idempotency == nil {
		return nil, false, nil
	}

	claimed, err := s.idempotency.Claim(ctx, tenantID, key, s.claimTTL())
	if err != nil {
		s.logger.WithTenant(tenantID).WithError(err).Warn("Idempotency claim failed")
		return nil, false, nil
	}
	if claimed {
		return nil, true, nil
	}

	if replay := s.lookupReplay(ctx, tenantID, key); replay != nil {
		return replay, false, nil
	}
	return nil, false, ErrIdempotencyInFlight
}

// releaseKey gives a held key back so the client can retry. It runs on its
// own context because the request context may already be done.
func (s *documentSynchronizer) releaseKey(tenantID, key string, held bool) {
	if !held {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := s.idempotency.Release(ctx, tenantID, key); err != nil {
		s.logger.WithTenant(tenantID).WithError(err).Warn("Failed to release idempotency key")
	}
}

func (s *documentSynchronizer) claimTTL() time.Duration {
	if s.cfg.Idempotency.ClaimTTL > 0 {
		return time.Duration(s.cfg.Idempotency.ClaimTTL) * time.Second
	}
	return 2 * time.Minute
}

func (s *documentSynchronizer) lookupReplay(ctx context.Context, tenantID, key string) *ActionResult {
	if key == "" || s.idempotency == nil {
		return nil
	}

	stored, err := s.idempotency.Lookup(ctx, tenantID, key)
	if err != nil {
		s.logger.WithTenant(tenantID).WithError(err).Warn("Idempotency lookup failed")
		return nil
	}
	if stored == nil {
		return nil
	}

	if s.metrics != nil {
		s.metrics.IdempotentReplays.Inc()
	}
	cached := stored.Cached
	return &ActionResult{
		StatusCode: stored.StatusCode,
		Data:       stored.Data,
		Cached:     &cached,
		Replayed:   true,
	}
}

func (s *documentSynchronizer) rememberReplay(ctx context.Context, tenantID, key string, result *ActionResult) {
	if key == "" || s.idempotency == nil {
		return
	}

	data, err := json.Marshal(result.Data)
	if err != nil {
		s.logger.WithTenant(tenantID).WithError(err).Warn("Failed to encode response for idempotent replay")
		return
	}

	stored := &StoredResponse{
		StatusCode: result.StatusCode,
		Data:       data,
		Cached:     result.Cached != nil && *result.Cached,
	}

	ttl := time.Duration(s.cfg.Idempotency.TTL) * time.Second
	if err := s.idempotency.Remember(ctx, tenantID, key, stored, ttl); err != nil {
		s.logger.WithTenant(tenantID).WithError(err).Warn("Failed to store idempotent response")
	}
}

func boolPtr(v bool) *bool {
	return &v
}
