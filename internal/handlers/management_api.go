package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/middleware"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/services"
)

// ManagementAPIHandler serves the tenant-scoped REST API
type ManagementAPIHandler struct {
	logger       *logger.Logger
	tenantSvc    services.TenantService
	usageSvc     services.UsageService
	folderSvc    services.FolderService
	orgSvc       services.OrganizationService
	errorHandler *services.ErrorHandler
}

// NewManagementAPIHandler creates a new management API handler
func NewManagementAPIHandler(
	logger *logger.Logger,
	tenantSvc services.TenantService,
	usageSvc services.UsageService,
	folderSvc services.FolderService,
	orgSvc services.OrganizationService,
	errorHandler *services.ErrorHandler,
) *ManagementAPIHandler {
	return &ManagementAPIHandler{
		logger:       logger,
		tenantSvc:    tenantSvc,
		usageSvc:     usageSvc,
		folderSvc:    folderSvc,
		orgSvc:       orgSvc,
		errorHandler: errorHandler,
	}
}

// UsageResponse reports the evaluator's view of the caller's tenant
type UsageResponse struct {
	Plan      models.Plan             `json:"plan"`
	Documents *services.DocumentUsage `json:"documents"`
	Seats     *services.SeatUsage     `json:"seats"`
}

type updateTenantRequest struct {
	Name  string  `json:"name"`
	TaxID *string `json:"tax_id"`
}

type addMemberRequest struct {
	ProfileID string `json:"profile_id"`
}

// RegisterRoutes registers the v1 routes. The plan catalogue and the API
// description are public, everything else requires a caller.
func (h *ManagementAPIHandler) RegisterRoutes(router *mux.Router, auth *middleware.AuthenticationMiddleware) {
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/plans", h.ListPlans).Methods(http.MethodGet)
	v1.HandleFunc("/openapi.json", h.GetOpenAPISpec).Methods(http.MethodGet)

	api := v1.NewRoute().Subrouter()
	api.Use(auth.RequireCaller())

	// Tenant
	api.HandleFunc("/tenant", h.GetTenant).Methods(http.MethodGet)
	api.HandleFunc("/tenant", h.UpdateTenant).Methods(http.MethodPut)
	api.HandleFunc("/tenant/usage", h.GetUsage).Methods(http.MethodGet)

	// Members
	api.HandleFunc("/tenant/members", h.ListMembers).Methods(http.MethodGet)
	api.HandleFunc("/tenant/members", h.AddMember).Methods(http.MethodPost)
	api.HandleFunc("/tenant/members/{id}", h.RemoveMember).Methods(http.MethodDelete)

	// Folders
	api.HandleFunc("/folders", h.ListFolders).Methods(http.MethodGet)
	api.HandleFunc("/folders", h.CreateFolder).Methods(http.MethodPost)
	api.HandleFunc("/folders/{id}", h.GetFolder).Methods(http.MethodGet)
	api.HandleFunc("/folders/{id}", h.UpdateFolder).Methods(http.MethodPut)
	api.HandleFunc("/folders/{id}", h.DeleteFolder).Methods(http.MethodDelete)

	// Organizations
	api.HandleFunc("/organizations", h.ListOrganizations).Methods(http.MethodGet)
	api.HandleFunc("/organizations", h.CreateOrganization).Methods(http.MethodPost)
	api.HandleFunc("/organizations/{id}", h.GetOrganization).Methods(http.MethodGet)
	api.HandleFunc("/organizations/{id}", h.UpdateOrganization).Methods(http.MethodPut)
	api.HandleFunc("/organizations/{id}", h.DeleteOrganization).Methods(http.MethodDelete)
	api.HandleFunc("/organizations/{id}/members", h.AddOrganizationMember).Methods(http.MethodPost)
	api.HandleFunc("/organizations/{id}/members/{userId}", h.RemoveOrganizationMember).Methods(http.MethodDelete)
}

// Plans

func (h *ManagementAPIHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, h.logger, http.StatusOK, models.AllPlans())
}

// Tenant Handlers

func (h *ManagementAPIHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	tenant, err := h.tenantSvc.GetTenant(r.Context(), caller)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, tenant)
}

func (h *ManagementAPIHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	var req updateTenantRequest
	if !h.decode(w, r, &req) {
		return
	}

	tenant, err := h.tenantSvc.UpdateTenant(r.Context(), caller, req.Name, req.TaxID)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, tenant)
}

func (h *ManagementAPIHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCallerFromContext(ctx)

	documents, err := h.usageSvc.GetDocumentUsage(ctx, caller.Tenant)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	seats, err := h.usageSvc.GetSeatUsage(ctx, caller.Tenant)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, UsageResponse{
		Plan:      models.PlanFor(caller.Tenant.Plan),
		Documents: documents,
		Seats:     seats,
	})
}

// Member Handlers

func (h *ManagementAPIHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	members, err := h.tenantSvc.ListMembers(r.Context(), caller)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, members)
}

func (h *ManagementAPIHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	var req addMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ProfileID == "" {
		h.fail(w, r, caller, models.NewFieldError("profile_id", "this field is required"))
		return
	}

	profile, err := h.tenantSvc.AddMember(r.Context(), caller, req.ProfileID)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusCreated, profile)
}

func (h *ManagementAPIHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	if err := h.tenantSvc.RemoveMember(r.Context(), caller, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, caller, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Folder Handlers

func (h *ManagementAPIHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	folders, err := h.folderSvc.ListFolders(r.Context(), caller)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, folders)
}

func (h *ManagementAPIHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	folder, err := h.folderSvc.GetFolder(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, folder)
}

func (h *ManagementAPIHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	var folder models.Folder
	if !h.decode(w, r, &folder) {
		return
	}

	created, err := h.folderSvc.CreateFolder(r.Context(), caller, &folder)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusCreated, created)
}

func (h *ManagementAPIHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	var folder models.Folder
	if !h.decode(w, r, &folder) {
		return
	}
	folder.ID = mux.Vars(r)["id"]

	updated, err := h.folderSvc.UpdateFolder(r.Context(), caller, &folder)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, updated)
}

func (h *ManagementAPIHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	if err := h.folderSvc.DeleteFolder(r.Context(), caller, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, caller, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Organization Handlers

func (h *ManagementAPIHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	orgs, err := h.orgSvc.ListOrganizations(r.Context(), caller)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, orgs)
}

func (h *ManagementAPIHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	org, err := h.orgSvc.GetOrganization(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, org)
}

func (h *ManagementAPIHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	var org models.Organization
	if !h.decode(w, r, &org) {
		return
	}

	created, err := h.orgSvc.CreateOrganization(r.Context(), caller, &org)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusCreated, created)
}

func (h *ManagementAPIHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	var org models.Organization
	if !h.decode(w, r, &org) {
		return
	}
	org.ID = mux.Vars(r)["id"]

	updated, err := h.orgSvc.UpdateOrganization(r.Context(), caller, &org)
	if err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, updated)
}

func (h *ManagementAPIHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	if err := h.orgSvc.DeleteOrganization(r.Context(), caller, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, caller, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ManagementAPIHandler) AddOrganizationMember(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())

	var member models.OrganizationMember
	if !h.decode(w, r, &member) {
		return
	}

	if err := h.orgSvc.AddMember(r.Context(), caller, mux.Vars(r)["id"], &member); err != nil {
		h.fail(w, r, caller, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusCreated, member)
}

func (h *ManagementAPIHandler) RemoveOrganizationMember(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())
	vars := mux.Vars(r)

	if err := h.orgSvc.RemoveMember(r.Context(), caller, vars["id"], vars["userId"]); err != nil {
		h.fail(w, r, caller, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helper methods

func (h *ManagementAPIHandler) decode(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(target); err != nil {
		writeBadRequest(w, h.logger, "Invalid request body", err)
		return false
	}
	return true
}

func (h *ManagementAPIHandler) fail(w http.ResponseWriter, r *http.Request, caller *services.Caller, err error) {
	context := map[string]interface{}{}
	if caller != nil {
		context["tenant_id"] = caller.TenantID()
		context["user_id"] = caller.Identity.UserID
	}
	writeErrorResponse(w, r, h.logger, h.errorHandler, err, context)
}
