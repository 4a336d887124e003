package http

import (
	"net/http"

	"github.com/atinyakov/linkvault/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves
// the vault API.
//
// Routes:
//
//	POST   /api/upload        → vaultHandler.Upload
//	GET    /api/content/{id}  → vaultHandler.Content
//	GET    /api/download/{id} → vaultHandler.Download
//	DELETE /api/delete/{id}   → vaultHandler.Delete
//	GET    /api/my-links      → vaultHandler.MyLinks (requires a resolved identity)
//	GET    /metrics           → metricsHandler, when non-nil
//
// Middleware chain (applied in order):
//  1. Recoverer                     turns panics into 500s
//  2. WithRequestLogging(logger)    logs incoming requests
//  3. Identity(resolver, logger)    resolves the bearer token, if any
func NewRouter(
	vaultHandler *VaultHandler,
	resolver middleware.Resolver,
	metricsHandler http.Handler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity(resolver, logger))

		r.Post("/upload", vaultHandler.Upload)
		r.Get("/content/{id}", vaultHandler.Content)
		r.Get("/download/{id}", vaultHandler.Download)
		r.Delete("/delete/{id}", vaultHandler.Delete)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity)
			r.Get("/my-links", vaultHandler.MyLinks)
		})
	})

	return r
}
