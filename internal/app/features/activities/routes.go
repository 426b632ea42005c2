// internal/app/features/activities/routes.go
package activities

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the activity endpoints of one group (typically under
// "/groups/{id}/activities"). Capabilities are checked per group by the
// handlers.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/feed", h.FeedLink)
	r.Get("/{activityID}", h.Get)
	r.Patch("/{activityID}", h.Update)
	r.Delete("/{activityID}", h.Delete)
	r.Post("/{activityID}/complete", h.Complete)
	r.Post("/{activityID}/cancel", h.Cancel)
	r.Post("/{activityID}/restore", h.Restore)
	r.Put("/{activityID}/attendance", h.MarkAttendance)
	r.Delete("/{activityID}/attendance/{userID}", h.ClearAttendance)

	return r
}

// FeedRoutes mounts the public calendar feed (typically under "/calendar").
func FeedRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{token}", h.Feed)
	return r
}
