// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the user endpoints (typically under "/users").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ViewUsers))
		pr.Get("/", h.List)
		pr.Get("/{id}", h.Get)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ManageUsers))
		pr.Post("/", h.Create)
		pr.Patch("/{id}", h.Update)
		pr.Put("/{id}/role", h.SetRole)
		pr.Put("/{id}/password", h.SetPassword)
		pr.Delete("/{id}", h.Delete)
	})

	return r
}
