package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ogurasousui/masters-service/internal/adapters/http/middleware"
	"github.com/ogurasousui/masters-service/internal/adapters/http/respond"
	"github.com/ogurasousui/masters-service/internal/core/scope"
	"github.com/ogurasousui/masters-service/internal/platform/obs"
	"github.com/prometheus/client_golang/prometheus"
)

const maxBodyBytes = 1 << 20

// RouterConfig はルーター構築時の依存とミドルウェア設定です。
type RouterConfig struct {
	Auth        *middleware.Authenticator
	Limiter     *middleware.RateLimiter
	Metrics     *obs.Metrics
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Logger      *slog.Logger
	// Ready はストレージの疎通確認です。nil の場合は常に正常とみなします。
	Ready func(context.Context) error
}

// NewRouter は /api/v1 配下のルーティングを構築します。
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(cfg.Metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	health := healthHandler(cfg.Ready)
	r.Get("/health", health)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", obs.Handler(cfg.Gatherer))
	}

	admins := middleware.RequireRoles(scope.RoleGlobalAdmin, scope.RoleTenantAdmin)
	workers := middleware.RequireRoles(scope.RoleSelfWorker)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health)

		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Limit)
			}
			r.Use(middleware.MaxBodyBytes(maxBodyBytes))
			r.Use(cfg.Auth.Authenticate)

			r.Route("/master-handover", func(r chi.Router) {
				r.Use(admins)
				r.Get("/summary", h.HandoverSummary)
				r.Get("/{id}", h.HandoverDetails)
				r.Post("/approve/{orderId}", h.ApproveHandover)
				r.Post("/reject/{orderId}", h.RejectHandover)
			})

			r.Route("/masters", func(r chi.Router) {
				r.With(admins).Get("/", h.ListMasters)
				r.With(admins).Post("/", h.CreateMaster)
				r.With(admins).Get("/schedules", h.AllSchedules)
				r.With(admins).Get("/city/{city}", h.MastersByCity)
				r.With(workers).Get("/profile", h.Profile)
				r.With(admins).Get("/{id}", h.GetMaster)
				r.With(admins).Put("/{id}/status", h.UpdateMasterStatus)
				r.With(admins).Delete("/{id}", h.DeleteMaster)
				r.Get("/{id}/schedule", h.Schedule)
				r.Put("/{id}/schedule", h.ReplaceSchedule)
				r.Get("/{id}/orders", h.OrderStats)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func healthHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				respond.Error(w, http.StatusServiceUnavailable, "storage unavailable")
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
