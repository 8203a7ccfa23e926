package orders

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquaflow/aquaflow/internal/platform/httpx"
)

// Handler exposes order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{orderID}", h.get)
	r.Post("/{orderID}/deliver", h.deliver)
	r.Post("/{orderID}/cancel", h.cancel)
}

type createRequest struct {
	TenantID   int64  `json:"tenant_id" validate:"required,gt=0"`
	ClientName string `json:"client_name" validate:"omitempty,max=55"`
	Address    string `json:"address" validate:"omitempty,max=255"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	out, err := h.service.Create(r.Context(), CreateInput{
		TenantID:   req.TenantID,
		ClientName: req.ClientName,
		Address:    req.Address,
		Quantity:   req.Quantity,
	})
	if err != nil {
		h.logger.Warn("create order", slog.Int64("tenant", req.TenantID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := orderResponse(out.Order)
	resp["period"] = out.Period
	resp["counter"] = out.Counter
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderResponse(o))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.ListByTenant(r.Context(), tenantID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, o := range list {
		out = append(out, orderResponse(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	if err := h.service.Deliver(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": StatusDelivered})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": StatusCancelled})
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return 0, false
	}
	return id, true
}

func orderResponse(o Order) map[string]any {
	return map[string]any{
		"id":         o.ID,
		"tenant_id":  o.TenantID,
		"number":     o.Number,
		"quantity":   o.Quantity,
		"unit_price": o.UnitPrice,
		"amount":     o.Amount,
		"status":     o.Status,
		"created_at": o.CreatedAt,
	}
}
