// internal/app/features/departments/routes.go
package departments

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the department endpoints (typically under "/departments").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.List)
		pr.Get("/{id}", h.Get)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ManageDepartments))
		pr.Post("/", h.Create)
		pr.Patch("/{id}", h.Update)
		pr.Delete("/{id}", h.Delete)
	})

	return r
}
