// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"time"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/metrics"
	"github.com/dalemusser/flockhub/internal/app/system/ratelimit"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *apierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter
	Metrics    *metrics.Metrics
}

func NewHandler(
	users *userstore.Store,
	sessionMgr *auth.SessionManager,
	errLog *apierrors.ErrorLogger,
	audit *auditlog.Logger,
	limiter *ratelimit.LoginLimiter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:      users,
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		AuditLog:   audit,
		Limiter:    limiter,
		Metrics:    m,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,emailaddr"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User      *auth.SessionUser `json:"user"`
	Token     string            `json:"token,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// errBadCredentials is the single message for unknown emails and wrong
// passwords so the response does not reveal which accounts exist.
const errBadCredentials = "invalid email or password"

// HandleLogin handles POST /auth/login.
//
// On success the session cookie is set and, when bearer tokens are
// enabled, a JWT is returned for API clients:
//
//	{ "success": true, "data": { "user": {...}, "token": "...", "expires_at": "..." } }
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, req.Email); !ok {
			h.Metrics.ObserveLogin("limited")
			h.AuditLog.LoginFailed(r.Context(), r, audit.EventLoginFailedRateLimit, nil, nil, req.Email, reason)
			apierrors.TooManyRequests(w, reason)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Authenticate(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, userstore.ErrUnknownEmail):
		h.fail(r, audit.EventLoginFailedUserNotFound, nil, req.Email, "unknown email")
		apierrors.Unauthorized(w, errBadCredentials)
		return
	case errors.Is(err, userstore.ErrWrongPassword):
		h.fail(r, audit.EventLoginFailedWrongPassword, &u, req.Email, "wrong password")
		apierrors.Unauthorized(w, errBadCredentials)
		return
	case errors.Is(err, auth.ErrUserInactive):
		h.fail(r, audit.EventLoginFailedUserDisabled, &u, req.Email, "account disabled")
		apierrors.Forbidden(w, "this account is disabled")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "login: authenticate failed", err, "")
		return
	}

	su := auth.FromUser(&u)
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.ErrLog.LogServerError(w, r, "login: save session failed", err, "")
		return
	}

	resp := loginResponse{User: su}
	if ti := h.SessionMgr.Tokens(); ti != nil {
		tok, exp, err := ti.Issue(su)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "login: issue token failed", err, "")
			return
		}
		resp.Token = tok
		resp.ExpiresAt = &exp
	}

	if err := h.Users.TouchLogin(ctx, u.ID); err != nil {
		h.Log.Warn("login: record last login failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(req.Email)
	}
	h.Metrics.ObserveLogin("success")
	h.AuditLog.LoginSuccess(r.Context(), r, u.ID, u.ChurchID, authMethod(u), u.Email)

	apierrors.WriteData(w, resp)
}

func (h *Handler) fail(r *http.Request, event string, u *models.User, email, reason string) {
	h.Metrics.ObserveLogin("failed")
	if u == nil {
		h.AuditLog.LoginFailed(r.Context(), r, event, nil, nil, email, reason)
		return
	}
	id := u.ID
	h.AuditLog.LoginFailed(r.Context(), r, event, &id, u.ChurchID, email, reason)
}

func authMethod(u models.User) string {
	if u.AuthMethod == "" {
		return models.AuthPassword
	}
	return u.AuthMethod
}
