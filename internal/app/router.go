package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquaflow/aquaflow/internal/approvals"
	"github.com/aquaflow/aquaflow/internal/cashbox"
	"github.com/aquaflow/aquaflow/internal/observability"
	"github.com/aquaflow/aquaflow/internal/orders"
	"github.com/aquaflow/aquaflow/internal/stock"
	"github.com/aquaflow/aquaflow/internal/tenants"
	"github.com/aquaflow/aquaflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Pool    *pgxpool.Pool
	Metrics *observability.Metrics

	TenantsHandler   *tenants.Handler
	CashboxHandler   *cashbox.Handler
	ApprovalsHandler *approvals.Handler
	StockHandler     *stock.Handler
	OrdersHandler    *orders.Handler
	JobsHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", params.Metrics.Handler())

	r.Route("/tenants", params.TenantsHandler.MountRoutes)
	r.Route("/cashbox", params.CashboxHandler.MountRoutes)
	r.Route("/approvals", params.ApprovalsHandler.MountRoutes)
	r.Route("/stock", params.StockHandler.MountRoutes)
	r.Route("/orders", params.OrdersHandler.MountRoutes)
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
