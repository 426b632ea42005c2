// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/metrics"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateCookie = "flockhub_oauth_state"
	stateTTL    = 10 * time.Minute
	userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Handler handles Google OAuth authentication.
type Handler struct {
	Users      *userstore.Store
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Metrics    *metrics.Metrics

	// OAuth configuration
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://flockhub.example.org/auth/google/callback"

	// Endpoint and UserInfoURL default to Google's; tests point them at
	// an httptest server.
	Endpoint    oauth2.Endpoint
	UserInfoURL string

	state  *securecookie.SecureCookie
	secure bool
}

// NewHandler creates a new Google OAuth handler. stateKey signs the
// short-lived state cookie that ties the callback to this browser.
func NewHandler(
	users *userstore.Store,
	sessionMgr *auth.SessionManager,
	audit *auditlog.Logger,
	m *metrics.Metrics,
	clientID, clientSecret, baseURL, stateKey string,
	secure bool,
	logger *zap.Logger,
) *Handler {
	sc := securecookie.New([]byte(stateKey), nil)
	sc.MaxAge(int(stateTTL.Seconds()))
	return &Handler{
		Users:        users,
		Log:          logger,
		SessionMgr:   sessionMgr,
		AuditLog:     audit,
		Metrics:      m,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		Endpoint:     google.Endpoint,
		UserInfoURL:  userInfoURL,
		state:        sc,
		secure:       secure,
	}
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: h.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// oauthState is what the state cookie carries between the redirect to
// Google and the callback.
type oauthState struct {
	Nonce     string `json:"n"`
	ReturnURL string `json:"r"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Redirects to Google's consent screen.                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.redirectWithError(w, r, "", "google_not_configured")
		return
	}

	nonce, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		h.redirectWithError(w, r, "", "internal")
		return
	}
	st := oauthState{Nonce: nonce, ReturnURL: query.Get(r, "return")}

	encoded, err := h.state.Encode(stateCookie, st)
	if err != nil {
		h.Log.Error("failed to encode OAuth state", zap.Error(err))
		h.redirectWithError(w, r, "", "internal")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    encoded,
		Path:     "/auth/google",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	dest := h.oauth2Config().AuthCodeURL(nonce)
	h.Log.Debug("initiating Google OAuth flow", zap.String("return_url", st.ReturnURL))
	http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Exchanges the code, fetches the Google profile and signs the user in.        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	st, ok := h.readState(w, r)
	if !ok {
		h.redirectWithError(w, r, "", "invalid_state")
		return
	}

	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		h.redirectWithError(w, r, st.ReturnURL, "google_denied")
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		h.redirectWithError(w, r, st.ReturnURL, "invalid_code")
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectWithError(w, r, st.ReturnURL, "token_exchange")
		return
	}

	gu, err := h.fetchUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.redirectWithError(w, r, st.ReturnURL, "user_info")
		return
	}
	if !gu.EmailVerified {
		h.redirectWithError(w, r, st.ReturnURL, "email_unverified")
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByEmail(lookupCtx, gu.Email)
	if errors.Is(err, userstore.ErrNotFound) {
		h.Log.Info("Google OAuth: user not found", zap.String("email", gu.Email))
		h.Metrics.ObserveLogin("failed")
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserNotFound, nil, nil, gu.Email, "no account")
		h.redirectWithError(w, r, st.ReturnURL, "no_account")
		return
	}
	if err != nil {
		h.Log.Error("failed to look up user", zap.Error(err))
		h.redirectWithError(w, r, st.ReturnURL, "internal")
		return
	}
	if u.Status != models.StatusActive {
		h.Metrics.ObserveLogin("failed")
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserDisabled, &u.ID, u.ChurchID, gu.Email, "account disabled")
		h.redirectWithError(w, r, st.ReturnURL, "account_disabled")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, auth.FromUser(&u)); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		h.redirectWithError(w, r, st.ReturnURL, "session")
		return
	}
	if err := h.Users.TouchLogin(lookupCtx, u.ID); err != nil {
		h.Log.Warn("record last login failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}

	h.Metrics.ObserveLogin("success")
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.ChurchID, models.AuthGoogle, u.Email)
	h.Log.Info("user logged in via Google OAuth", zap.String("user_id", u.ID.Hex()))

	http.Redirect(w, r, urlutil.SafeReturn(st.ReturnURL, "", "/"), http.StatusSeeOther)
}

// readState decodes the state cookie, checks it against ?state= and
// expires it so it cannot be replayed.
func (h *Handler) readState(w http.ResponseWriter, r *http.Request) (oauthState, bool) {
	var st oauthState
	c, err := r.Cookie(stateCookie)
	if err != nil {
		h.Log.Warn("missing OAuth state cookie")
		return st, false
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/google", MaxAge: -1})

	if err := h.state.Decode(stateCookie, c.Value, &st); err != nil {
		h.Log.Warn("invalid or expired OAuth state", zap.Error(err))
		return st, false
	}
	if st.Nonce == "" || st.Nonce != query.Get(r, "state") {
		h.Log.Warn("OAuth state mismatch")
		return st, false
	}
	return st, true
}

func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, returnURL, code string) {
	dest := urlutil.SafeReturn(returnURL, "", "/")
	sep := "?"
	if u, err := url.Parse(dest); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	http.Redirect(w, r, dest+sep+"login_error="+url.QueryEscape(code), http.StatusSeeOther)
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *Handler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := h.oauth2Config().Client(ctx, token)

	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
