package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskbridge/intake-backend/v1/middleware"
	"github.com/taskbridge/intake-backend/v1/models"
	"github.com/taskbridge/intake-backend/v1/services"
	"github.com/taskbridge/intake-backend/v1/utils"
	"gorm.io/gorm"
)

// V1Handler handles all V1 API routes
type V1Handler struct {
	submissions *services.SubmissionService
	adminAuth   *middleware.AdminAuthMiddleware
}

// NewV1Handler creates a new V1 handler
func NewV1Handler(submissions *services.SubmissionService, adminAuth *middleware.AdminAuthMiddleware) *V1Handler {
	return &V1Handler{submissions: submissions, adminAuth: adminAuth}
}

// SetupV1Routes registers all V1 API routes on the mux
func (h *V1Handler) SetupV1Routes(mux *http.ServeMux) {
	mux.Handle("/api/v1/submissions", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleSubmissions)))
	mux.Handle("/api/v1/submissions/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleSubmissions)))
}

// handleSubmissions dispatches on the path below /api/v1/submissions
func (h *V1Handler) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/submissions"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "":
		if r.Method != http.MethodGet {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.listMine(w, r)

	case len(parts) == 1 && (parts[0] == string(models.KindRequester) || parts[0] == string(models.KindProvider)):
		if r.Method != http.MethodPost {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.submit(w, r, models.SubmitterKind(parts[0]))

	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.getByGroup(w, r, parts[0])
		case http.MethodPatch:
			h.update(w, r, parts[0])
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}

	case len(parts) == 2 && parts[1] == "cancel":
		if r.Method != http.MethodPost {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.cancel(w, r, parts[0])

	case len(parts) == 2 && (parts[1] == "approve" || parts[1] == "decline"):
		if r.Method != http.MethodPost {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.adminAuth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.decide(w, r, parts[0], parts[1])
		})).ServeHTTP(w, r)

	default:
		utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
	}
}

func (h *V1Handler) submit(w http.ResponseWriter, r *http.Request, kind models.SubmitterKind) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	result, err := h.submissions.Submit(r.Context(), kind, payload)
	if err != nil {
		middleware.LogAudit(r, "SUBMISSIONS", "", "failure")
		h.respondError(w, err)
		return
	}

	middleware.LogAudit(r, "SUBMISSIONS", result.GroupID, "success")
	utils.RespondWithJSON(w, http.StatusCreated, result)
}

func (h *V1Handler) cancel(w http.ResponseWriter, r *http.Request, groupID string) {
	var req models.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	result, err := h.submissions.Cancel(r.Context(), groupID, &req)
	if err != nil {
		middleware.LogAudit(r, "SUBMISSIONS", groupID, "failure")
		h.respondError(w, err)
		return
	}

	middleware.LogAudit(r, "SUBMISSIONS", groupID, "success")
	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *V1Handler) decide(w http.ResponseWriter, r *http.Request, groupID, action string) {
	var req models.DecisionRequest
	if r.Body != nil {
		// Body is optional for approve
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var (
		entry *models.LedgerEntry
		err   error
	)
	switch action {
	case "approve":
		entry, err = h.submissions.Approve(r.Context(), groupID)
	case "decline":
		if strings.TrimSpace(req.Reason) == "" {
			utils.RespondWithFieldError(w, http.StatusBadRequest, "A decline reason is required", []string{"reason"})
			return
		}
		entry, err = h.submissions.Decline(r.Context(), groupID, req.Reason)
	}
	if err != nil {
		middleware.LogAudit(r, "SUBMISSIONS", groupID, "failure")
		h.respondError(w, err)
		return
	}

	middleware.LogAudit(r, "SUBMISSIONS", groupID, "success")
	utils.RespondWithJSON(w, http.StatusOK, entry)
}

func (h *V1Handler) getByGroup(w http.ResponseWriter, r *http.Request, groupID string) {
	view, err := h.submissions.GetByGroup(r.Context(), groupID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

func (h *V1Handler) listMine(w http.ResponseWriter, r *http.Request) {
	anchor := r.URL.Query().Get("anchor")
	if anchor == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "An identity anchor (account id or email) is required")
		return
	}
	scope := models.ListScope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = models.ScopeCurrent
	}

	views, err := h.submissions.ListMine(r.Context(), anchor, scope)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, views)
}

func (h *V1Handler) update(w http.ResponseWriter, r *http.Request, groupID string) {
	var edits map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if err := h.submissions.Update(r.Context(), groupID, edits); err != nil {
		middleware.LogAudit(r, "SUBMISSIONS", groupID, "failure")
		h.respondError(w, err)
		return
	}

	middleware.LogAudit(r, "SUBMISSIONS", groupID, "success")
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"groupId": groupID, "status": "updated"})
}

// respondError maps pipeline errors to HTTP status codes
func (h *V1Handler) respondError(w http.ResponseWriter, err error) {
	var (
		validationErr *models.ValidationError
		conflictErr   *models.ConflictError
		identityErr   *models.IdentityUnresolvedError
		transitionErr *models.InvalidTransitionError
		storageErr    *models.StorageError
		partialErr    *models.PartialWriteError
	)

	switch {
	case errors.As(err, &validationErr):
		utils.RespondWithFieldError(w, http.StatusBadRequest, validationErr.Error(), validationErr.Fields)
	case errors.As(err, &identityErr):
		utils.RespondWithError(w, http.StatusBadRequest, identityErr.Error())
	case errors.As(err, &conflictErr):
		utils.RespondWithError(w, http.StatusConflict, conflictErr.Error())
	case errors.As(err, &transitionErr):
		utils.RespondWithError(w, http.StatusConflict, transitionErr.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Submission not found")
	case errors.As(err, &storageErr):
		utils.RespondWithError(w, http.StatusBadGateway, storageErr.Error())
	case errors.As(err, &partialErr):
		utils.RespondWithError(w, http.StatusInternalServerError, partialErr.Error())
	default:
		slog.Error("Unhandled pipeline error", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
