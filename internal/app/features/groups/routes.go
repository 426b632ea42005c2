// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts group CRUD and the roster (typically under "/groups").
// Per-group checks happen in the handlers through GroupAccess; the
// statistics, activity and goal routers mount their own subtrees.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ViewGroups))
		pr.Get("/", h.List)
		pr.Get("/{id}", h.Get)
		pr.Get("/{id}/members", h.Roster)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ManageGroups))
		pr.Post("/", h.Create)
		pr.Patch("/{id}", h.Update)
		pr.Delete("/{id}", h.Delete)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ManageRoster))
		pr.Post("/{id}/members", h.AddMember)
		pr.Put("/{id}/members/{userID}/role", h.SetMemberRole)
		pr.Post("/{id}/members/{userID}/deactivate", h.DeactivateMember)
		pr.Delete("/{id}/members/{userID}", h.RemoveMember)
	})

	return r
}
