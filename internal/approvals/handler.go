package approvals

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aquaflow/aquaflow/internal/cashbox"
	"github.com/aquaflow/aquaflow/internal/platform/httpx"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

// Handler exposes the approval workflow endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches approval routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.submit)
	r.Get("/", h.listPending)
	r.Get("/{movementID}", h.get)
	r.Post("/{movementID}/approve", h.approve)
	r.Post("/{movementID}/reject", h.reject)
}

type submitRequest struct {
	TenantID      int64  `json:"tenant_id" validate:"required,gt=0"`
	SubmitterID   int64  `json:"submitter_id" validate:"required,gt=0"`
	SubmitterName string `json:"submitter_name" validate:"omitempty,max=55"`
	Kind          string `json:"kind" validate:"required,oneof=income expense"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	SubmittedAt   string `json:"submitted_at" validate:"omitempty"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var submitted time.Time
	if req.SubmittedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.SubmittedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "submitted_at must be RFC3339")
			return
		}
		submitted = parsed
	}
	m, err := h.service.Submit(r.Context(), SubmitInput{
		TenantID:      req.TenantID,
		SubmitterID:   req.SubmitterID,
		SubmitterName: req.SubmitterName,
		Kind:          cashbox.MovementKind(req.Kind),
		Amount:        req.Amount,
		SubmittedAt:   submitted,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movementResponse(m))
}

type decisionRequest struct {
	ApproverRole string `json:"approver_role" validate:"required,oneof=owner manager"`
	ApproverID   int64  `json:"approver_id" validate:"required,gt=0"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, approver, ok := h.decisionParams(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Approve(r.Context(), id, approver, time.Now().UTC())
	if err != nil {
		h.logger.Warn("approve movement", slog.String("id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entry == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"status": "noop"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":   "approved",
		"entry_id": entry.ID,
		"balance":  entry.Balance,
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, approver, ok := h.decisionParams(w, r)
	if !ok {
		return
	}
	if err := h.service.Reject(r.Context(), id, approver, time.Now().UTC()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "rejected"})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "movementID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid movement id")
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movementResponse(m))
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id required")
		return
	}
	movements, err := h.service.ListPending(r.Context(), tenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(movements))
	for _, m := range movements {
		out = append(out, movementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": out})
}

func (h *Handler) decisionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, Approver, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "movementID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid movement id")
		return uuid.Nil, Approver{}, false
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return uuid.Nil, Approver{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return uuid.Nil, Approver{}, false
	}
	return id, Approver{Role: tenants.ActorRole(req.ApproverRole), ID: req.ApproverID}, true
}

func movementResponse(m PendingMovement) map[string]any {
	resp := map[string]any{
		"id":             m.ID,
		"tenant_id":      m.TenantID,
		"submitter_id":   m.SubmitterID,
		"submitter_name": m.SubmitterName,
		"kind":           m.Kind,
		"amount":         m.Amount,
		"status":         m.Status,
		"created_at":     m.CreatedAt,
	}
	if m.ResolvedAt != nil {
		resp["resolved_at"] = m.ResolvedAt
	}
	if m.EntryID != nil {
		resp["entry_id"] = m.EntryID
	}
	return resp
}
