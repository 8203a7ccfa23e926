package tenants

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquaflow/aquaflow/internal/platform/httpx"
	"github.com/aquaflow/aquaflow/internal/pricing"
)

// Handler exposes tenant configuration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches tenant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{tenantID}", h.get)
	r.Put("/{tenantID}/tiers", h.configureTiers)
	r.Delete("/{tenantID}", h.remove)
}

type tierPayload struct {
	Start     int64  `json:"start"`
	End       *int64 `json:"end"`
	UnitPrice int64  `json:"unit_price"`
}

type createRequest struct {
	Name          string        `json:"name" validate:"required,max=120"`
	City          string        `json:"city"`
	Region        string        `json:"region"`
	Phone         string        `json:"phone" validate:"omitempty,max=15"`
	BillingPeriod string        `json:"billing_period" validate:"omitempty,oneof=monthly yearly"`
	Tiers         []tierPayload `json:"tiers"`
	Pin           string        `json:"pin" validate:"omitempty,min=4,max=10"`
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
	t, err := h.service.Create(r.Context(), CreateInput{
		Name:          req.Name,
		City:          req.City,
		Region:        req.Region,
		Phone:         req.Phone,
		BillingPeriod: pricing.Period(req.BillingPeriod),
		Tiers:         toTierSet(req.Tiers),
		Pin:           req.Pin,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":             t.ID,
		"name":           t.Name,
		"billing_period": t.BillingPeriod,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant id")
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":             t.ID,
		"name":           t.Name,
		"city":           t.City,
		"region":         t.Region,
		"phone":          t.Phone,
		"billing_period": t.BillingPeriod,
		"tiers":          t.Tiers,
		"created_at":     t.CreatedAt,
	})
}

type tiersRequest struct {
	BillingPeriod string        `json:"billing_period" validate:"required,oneof=monthly yearly"`
	Tiers         []tierPayload `json:"tiers" validate:"required,min=1"`
}

func (h *Handler) configureTiers(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant id")
		return
	}
	var req tiersRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ConfigureTiers(r.Context(), id, pricing.Period(req.BillingPeriod), toTierSet(req.Tiers)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func toTierSet(payload []tierPayload) pricing.TierSet {
	set := make(pricing.TierSet, 0, len(payload))
	for _, t := range payload {
		set = append(set, pricing.Tier{Start: t.Start, End: t.End, UnitPrice: t.UnitPrice})
	}
	return set
}
