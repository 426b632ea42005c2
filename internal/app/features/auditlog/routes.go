// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log under the path where this router is mounted
// (typically "/audit" from bootstrap). Admins see their church's events;
// superadmins see every church's.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(authz.Require(authz.ViewAuditLog))

		pr.Get("/", h.ServeList)
		pr.Get("/categories", h.ServeCategories)
	})

	return r
}
