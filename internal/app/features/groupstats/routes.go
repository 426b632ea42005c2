// internal/app/features/groupstats/routes.go
package groupstats

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the statistics of one group (typically under
// "/groups/{id}/stats"). Capability checks run per group in the handlers.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/attendance", h.Attendance)
	r.Get("/attendance.csv", h.AttendanceCSV)
	r.Get("/members", h.Members)
	r.Get("/members/{userID}", h.Member)
	r.Get("/health", h.Health)

	return r
}
