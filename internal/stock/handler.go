package stock

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquaflow/aquaflow/internal/platform/httpx"
)

// Handler exposes stock ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches stock ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.record)
	r.Get("/balance", h.balance)
	r.Get("/movements", h.list)
}

type movementRequest struct {
	TenantID    int64  `json:"tenant_id" validate:"required,gt=0"`
	CourierID   int64  `json:"courier_id" validate:"required,gt=0"`
	CourierName string `json:"courier_name" validate:"omitempty,max=55"`
	Operation   string `json:"operation" validate:"required,oneof=received-from-owner sold-to-client empty-returned adjustment"`
	UnitsIn     int64  `json:"units_in" validate:"gte=0"`
	UnitsOut    int64  `json:"units_out" validate:"gte=0"`
	Note        string `json:"note" validate:"omitempty,max=255"`
	OccurredAt  string `json:"occurred_at" validate:"omitempty"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
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
	entry, err := h.service.RecordMovement(r.Context(), MovementInput{
		TenantID:       req.TenantID,
		CourierID:      req.CourierID,
		CourierName:    req.CourierName,
		Operation:      Operation(req.Operation),
		UnitsIn:        req.UnitsIn,
		UnitsOut:       req.UnitsOut,
		Note:           req.Note,
		OccurredAt:     occurred,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.Warn("stock movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entryResponse(entry))
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	tenantID, courierID, ok := h.partitionParams(w, r)
	if !ok {
		return
	}
	balance, err := h.service.LatestBalance(r.Context(), tenantID, courierID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tenant_id":  tenantID,
		"courier_id": courierID,
		"balance":    balance,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, courierID, ok := h.partitionParams(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListEntries(r.Context(), tenantID, courierID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": out})
}

func (h *Handler) partitionParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id required")
		return 0, 0, false
	}
	courierID, err := strconv.ParseInt(r.URL.Query().Get("courier_id"), 10, 64)
	if err != nil || courierID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "courier_id required")
		return 0, 0, false
	}
	return tenantID, courierID, true
}

func entryResponse(e Entry) map[string]any {
	return map[string]any{
		"id":            e.ID,
		"tenant_id":     e.TenantID,
		"courier_id":    e.CourierID,
		"operation":     e.Operation,
		"units_in":      e.UnitsIn,
		"units_out":     e.UnitsOut,
		"balance":       e.Balance,
		"note":          e.Note,
		"occurred_date": e.OccurredDate.Format("2006-01-02"),
		"created_at":    e.CreatedAt,
	}
}
