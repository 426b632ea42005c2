// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// HandleLogout handles POST /auth/logout. It expires the session cookie.
// Bearer tokens stay valid until they expire; clients drop them.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, uid, ok := authz.UserCtx(r); ok {
		churchID, hasChurch := u.Church()
		if hasChurch {
			h.AuditLog.Logout(r.Context(), r, uid, &churchID)
		} else {
			h.AuditLog.Logout(r.Context(), r, uid, nil)
		}
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}
	apierrors.WriteData(w, map[string]bool{"signed_out": true})
}
