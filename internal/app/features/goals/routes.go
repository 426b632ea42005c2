// internal/app/features/goals/routes.go
package goals

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the goal endpoints of one group (typically under
// "/groups/{id}/goals").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{goalID}", h.Get)
	r.Patch("/{goalID}", h.Update)
	r.Put("/{goalID}/status", h.SetStatus)
	r.Delete("/{goalID}", h.Delete)

	return r
}
