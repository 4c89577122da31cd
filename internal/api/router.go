package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fibratrack/fibratrack-backend/internal/api/handlers"
	custommiddleware "github.com/fibratrack/fibratrack-backend/internal/api/middleware"
	"github.com/fibratrack/fibratrack-backend/internal/config"
	"github.com/fibratrack/fibratrack-backend/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	systemService *service.SystemService,
	reconcileService *service.ReconcileService,
	recalcService *service.RecalcService,
	importService *service.ImportService,
	catalogService *service.CatalogService,
	scheduler service.JobScheduler,
	clock service.Clock,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/distributions", func(r chi.Router) {
			distributionHandler := handlers.NewDistributionHandler(importService)
			r.Post("/import", distributionHandler.Import)
		})

		r.Route("/securities/{ticker}", func(r chi.Router) {
			securityHandler := handlers.NewSecurityHandler(catalogService)
			r.Get("/", securityHandler.Get)
			r.Put("/price", securityHandler.UpdatePrice)
		})

		reconcileHandler := handlers.NewReconcileHandler(reconcileService)
		r.Post("/reconcile", reconcileHandler.Reconcile)

		r.Route("/portfolio/{userID}", func(r chi.Router) {
			r.Use(custommiddleware.ValidateUserIDMiddleware)
			portfolioHandler := handlers.NewPortfolioHandler(recalcService, importService, scheduler, clock)
			r.Get("/metrics", portfolioHandler.Metrics)
			r.Post("/recalc", portfolioHandler.Recalc)
			r.Put("/trades", portfolioHandler.ReplaceTrades)
		})
	})

	return r
}
