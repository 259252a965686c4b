package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-retail/backoffice/internal/auth"
	"github.com/meridian-retail/backoffice/internal/catalog"
	"github.com/meridian-retail/backoffice/internal/discrepancy"
	"github.com/meridian-retail/backoffice/internal/ledger"
	"github.com/meridian-retail/backoffice/internal/orders"
	"github.com/meridian-retail/backoffice/jobs"
)

// RouterConfig carries every module handler the HTTP surface mounts.
type RouterConfig struct {
	Logger      *slog.Logger
	Config      *Config
	AuthService *auth.Service
	Auth        *auth.Handler
	Catalog     *catalog.Handler
	Ledger      *ledger.Handler
	Orders      *orders.Handler
	Discrepancy *discrepancy.Handler
	Jobs        *jobs.Handler
}

// NewRouter assembles the HTTP routing tree. Everything except login and
// health requires a valid session token.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: cfg.Logger, Config: cfg.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", cfg.Auth.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.AuthService, cfg.Logger))
			r.Route("/catalog", cfg.Catalog.MountRoutes)
			r.Route("/inventory", cfg.Ledger.MountRoutes)
			r.Route("/orders", cfg.Orders.MountRoutes)
			r.Route("/discrepancies", cfg.Discrepancy.MountRoutes)
			if cfg.Jobs != nil {
				r.Route("/jobs", cfg.Jobs.MountRoutes)
			}
		})
	})

	return r
}
