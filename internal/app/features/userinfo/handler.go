// internal/app/features/userinfo/handler.go
package userinfo

import (
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
)

// Handler serves user information for authenticated sessions.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

type meResponse struct {
	*auth.SessionUser
	Capabilities []string `json:"capabilities"`
}

// ServeMe handles GET /auth/me: the signed-in user and the capabilities
// their role grants.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Unauthorized(w, "")
		return
	}
	caps := []string{}
	for _, c := range authz.Capabilities(u.Role) {
		caps = append(caps, c.String())
	}
	apierrors.WriteData(w, meResponse{SessionUser: u, Capabilities: caps})
}
