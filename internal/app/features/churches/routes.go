// internal/app/features/churches/routes.go
package churches

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the church endpoints (typically under "/churches").
// Only superadmins hold ManageChurches.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ManageChurches))

		pr.Get("/", h.List)
		pr.Post("/", h.Create)
		pr.Get("/{id}", h.Get)
		pr.Patch("/{id}", h.Update)
		pr.Delete("/{id}", h.Delete)
	})

	return r
}
