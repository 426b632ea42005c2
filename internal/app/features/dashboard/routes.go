// internal/app/features/dashboard/routes.go
package dashboard

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes wires the dashboard under whatever mount point the top-level
// router chooses (e.g., "/dashboard"). The handler picks the view from
// the caller's role.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ViewDashboard))
		pr.Get("/", h.ServeDashboard)
	})

	return r
}
