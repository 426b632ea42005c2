// internal/app/features/branches/routes.go
package branches

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the branch endpoints (typically under "/branches").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Anyone in the church may read branches.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.List)
		pr.Get("/{id}", h.Get)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ManageBranches))
		pr.Post("/", h.Create)
		pr.Patch("/{id}", h.Update)
		pr.Delete("/{id}", h.Delete)
	})

	return r
}
