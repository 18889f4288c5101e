package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/middleware"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/services"
)

// DocumentActionPath is the tagged-action document endpoint
const DocumentActionPath = "/functions/v1/lacuna-documents"

// IdempotencyKeyHeader carries the client's key for create requests
const IdempotencyKeyHeader = "Idempotency-Key"

// DocumentActionHandler serves the tagged-action document endpoint
type DocumentActionHandler struct {
	cfg          *config.Config
	logger       *logger.Logger
	synchronizer services.DocumentSynchronizer
	errorHandler *services.ErrorHandler
}

// ActionResponse is the JSON body of a successful document action. Read
// actions report fromCache, create reports cached.
type ActionResponse struct {
	Data      interface{} `json:"data"`
	FromCache *bool       `json:"fromCache,omitempty"`
	Cached    *bool       `json:"cached,omitempty"`
}

// NewDocumentActionHandler creates a new document action handler
func NewDocumentActionHandler(
	cfg *config.Config,
	logger *logger.Logger,
	synchronizer services.DocumentSynchronizer,
	errorHandler *services.ErrorHandler,
) *DocumentActionHandler {
	return &DocumentActionHandler{
		cfg:          cfg,
		logger:       logger,
		synchronizer: synchronizer,
		errorHandler: errorHandler,
	}
}

// RegisterRoutes mounts the action endpoint behind auth
func (h *DocumentActionHandler) RegisterRoutes(router *mux.Router, auth *middleware.AuthenticationMiddleware) {
	router.Handle(DocumentActionPath, auth.RequireCaller()(http.HandlerFunc(h.HandleAction))).Methods(http.MethodPost)
}

// HandleAction decodes one action envelope and executes it for the caller
func (h *DocumentActionHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := middleware.GetCallerFromContext(ctx)
	if caller == nil {
		writeErrorResponse(w, r, h.logger, h.errorHandler, services.ErrMissingToken, nil)
		return
	}

	if _, err := services.ResolveProviderCredentials(h.cfg, caller.Tenant); err != nil {
		writeErrorResponse(w, r, h.logger, h.errorHandler, err, map[string]interface{}{"tenant_id": caller.TenantID()})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.bodyLimit()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONResponse(w, h.logger, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:     "Request body too large",
				Status:    http.StatusRequestEntityTooLarge,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		writeBadRequest(w, h.logger, "Failed to read request body", err)
		return
	}

	req, err := models.DecodeActionRequest(body)
	if err != nil {
		writeErrorResponse(w, r, h.logger, h.errorHandler, err, map[string]interface{}{"tenant_id": caller.TenantID()})
		return
	}

	if create, ok := req.(*models.CreateDocumentRequest); ok {
		create.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}

	result, err := h.synchronizer.Execute(ctx, caller, req)
	if err != nil {
		writeErrorResponse(w, r, h.logger, h.errorHandler, err, map[string]interface{}{
			"tenant_id": caller.TenantID(),
			"action":    req.Action(),
		})
		return
	}

	if result.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}

	writeJSONResponse(w, h.logger, result.StatusCode, ActionResponse{
		Data:      result.Data,
		FromCache: result.FromCache,
		Cached:    result.Cached,
	})
}

// bodyLimit allows the configured file size after base64 expansion plus
// room for the rest of the envelope
func (h *DocumentActionHandler) bodyLimit() int64 {
	limit := int64(h.cfg.Provider.MaxFileBytes)
	if limit <= 0 {
		return 32 << 20
	}
	return limit/3*4 + 4 + maxRequestBody
}
