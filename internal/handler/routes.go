package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"go-wiki-engine/internal/middleware"
	"go-wiki-engine/internal/session"
)

// NewRouter creates and configures a new chi router. Authorization is
// not a routing concern here: every page operation is checked per
// (capability, locale, path) inside the service, so the router only
// establishes identity.
func NewRouter(
	pageHandler *PageHandler,
	authHandler *AuthHandler,
	sessions session.Manager,
	identity func(http.Handler) http.Handler,
	errorMiddleware func(middleware.AppHandler) http.Handler,
) *chi.Mux {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Use(sessions.LoadAndSave)
	r.Use(identity)

	// Authentication routes
	r.Get("/auth/login", authHandler.handleLogin)
	r.Get("/auth/callback", authHandler.handleCallback)
	r.Get("/auth/logout", authHandler.handleLogout)

	// Page read path
	r.Method(http.MethodGet, "/p/{locale}/*", errorMiddleware(pageHandler.viewHandler))

	// Page lifecycle API
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/pages", errorMiddleware(pageHandler.createHandler))
		r.Method(http.MethodPut, "/pages/{id}", errorMiddleware(pageHandler.updateHandler))
		r.Method(http.MethodPost, "/pages/{id}/convert", errorMiddleware(pageHandler.convertHandler))
		r.Method(http.MethodPost, "/pages/{id}/move", errorMiddleware(pageHandler.moveHandler))
		r.Method(http.MethodDelete, "/pages/{id}", errorMiddleware(pageHandler.deleteHandler))

		r.Method(http.MethodPost, "/tree/move", errorMiddleware(pageHandler.batchMoveHandler))
		r.Method(http.MethodPost, "/tree/delete", errorMiddleware(pageHandler.batchDeleteHandler))
		r.Method(http.MethodPost, "/locales/migrate", errorMiddleware(pageHandler.migrateLocaleHandler))
	})

	return r
}
