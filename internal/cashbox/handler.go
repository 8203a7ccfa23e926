package cashbox

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/aquaflow/aquaflow/internal/platform/httpx"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

// Handler exposes cash ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	balances  singleflight.Group
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches cash ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.append)
	r.Get("/balance", h.balance)
	r.Get("/entries", h.list)
}

type appendRequest struct {
	TenantID   int64  `json:"tenant_id" validate:"required,gt=0"`
	ActorRole  string `json:"actor_role" validate:"required,oneof=owner manager"`
	ActorID    int64  `json:"actor_id" validate:"required,gt=0"`
	ActorName  string `json:"actor_name" validate:"omitempty,max=55"`
	Kind       string `json:"kind" validate:"required,oneof=income expense"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	OccurredAt string `json:"occurred_at" validate:"omitempty"`
}

// append is the owner/manager-direct path: the movement materializes
// immediately without staging. Courier submissions go through /approvals.
func (h *Handler) append(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var occurred time.Time
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "occurred_at must be RFC3339")
			return
		}
		occurred = parsed
	}
	entry, err := h.service.Append(r.Context(), AppendInput{
		TenantID:   req.TenantID,
		ActorRole:  tenants.ActorRole(req.ActorRole),
		ActorID:    req.ActorID,
		ActorName:  req.ActorName,
		Kind:       MovementKind(req.Kind),
		Amount:     req.Amount,
		OccurredAt: occurred,
	})
	if err != nil {
		h.logger.Warn("cash append", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entryResponse(entry))
}

// balance collapses concurrent reads of the same partition into one query.
func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := h.partitionParams(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("%d:%d", tenantID, actorID)
	value, err, _ := h.balances.Do(key, func() (any, error) {
		return h.service.LatestBalance(r.Context(), tenantID, actorID)
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"actor_id":  actorID,
		"balance":   value,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := h.partitionParams(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListEntries(r.Context(), tenantID, actorID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) partitionParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id required")
		return 0, 0, false
	}
	actorID, err := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err != nil || actorID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "actor_id required")
		return 0, 0, false
	}
	return tenantID, actorID, true
}

func entryResponse(e Entry) map[string]any {
	return map[string]any{
		"id":            e.ID,
		"tenant_id":     e.TenantID,
		"actor_role":    e.ActorRole,
		"actor_id":      e.ActorID,
		"kind":          e.Kind,
		"income":        e.Income,
		"expense":       e.Expense,
		"balance":       e.Balance,
		"message":       e.Message,
		"occurred_date": e.OccurredDate.Format("2006-01-02"),
		"created_at":    e.CreatedAt,
	}
}
