// Package auth manages signed-in state: the cookie session used by browsers
// and bearer tokens used by API clients. Both resolve to a SessionUser
// stored in the request context.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	isAuthKey   = "is_authenticated"
	userIDKey   = "user_id"
	userNameKey = "user_name"
	emailKey    = "user_email"
	roleKey     = "user_role"
	churchKey   = "church_id"
	branchKey   = "branch_id"
)

// SessionUser is what we cache in the session (or token) and inject into
// r.Context().
type SessionUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	ChurchID string `json:"church_id,omitempty"`
	BranchID string `json:"branch_id,omitempty"`
}

// IsSuperAdmin reports whether u is a platform superadmin.
func (u *SessionUser) IsSuperAdmin() bool { return u.Role == models.RoleSuperAdmin }

// UserID parses u.ID. ok is false for a malformed id.
func (u *SessionUser) UserID() (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(u.ID)
	return id, err == nil
}

// Church parses u.ChurchID. ok is false when the user has no church.
func (u *SessionUser) Church() (primitive.ObjectID, bool) {
	if u.ChurchID == "" {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(u.ChurchID)
	return id, err == nil
}

// FromUser builds the cached view of a stored user.
func FromUser(u *models.User) *SessionUser {
	su := &SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role,
	}
	if u.ChurchID != nil {
		su.ChurchID = u.ChurchID.Hex()
	}
	if u.BranchID != nil {
		su.BranchID = u.BranchID.Hex()
	}
	return su
}

// UserFetcher reloads a signed-in user on each request so disabled
// accounts and role changes take effect immediately. It returns
// ErrUserInactive for users that may no longer sign in.
type UserFetcher interface {
	FetchSessionUser(ctx context.Context, id primitive.ObjectID) (*SessionUser, error)
}

// ErrUserInactive is returned by a UserFetcher for disabled or deleted users.
var ErrUserInactive = errors.New("user is not active")

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser returns r carrying u, bypassing sessions. For tests.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// SessionManager owns the cookie store and, optionally, the bearer token
// issuer and a user fetcher.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	tokens  *TokenIssuer
	fetcher UserFetcher
	log     *zap.Logger
}

// NewSessionManager creates the cookie store. Cookies are Secure and
// SameSite=None when secure is true (production over HTTPS), Lax otherwise.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "flockhub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetTokenIssuer enables "Authorization: Bearer" authentication.
func (sm *SessionManager) SetTokenIssuer(ti *TokenIssuer) { sm.tokens = ti }

// SetUserFetcher enables per-request reloading of the signed-in user.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// Tokens returns the bearer token issuer, or nil.
func (sm *SessionManager) Tokens() *TokenIssuer { return sm.tokens }

// SignIn stores u in the session cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u *SessionUser) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userNameKey] = u.Name
	sess.Values[emailKey] = u.Email
	sess.Values[roleKey] = u.Role
	sess.Values[churchKey] = u.ChurchID
	sess.Values[branchKey] = u.BranchID
	return sess.Save(r, w)
}

// SignOut expires the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadSessionUser injects the signed-in user into the context. A valid
// bearer token takes precedence over the cookie. Requests with neither pass
// through anonymously.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := sm.fromBearer(r)
		if u == nil {
			u = sm.fromCookie(r)
		}
		if u != nil && sm.fetcher != nil {
			u = sm.refresh(r, u)
		}
		if u != nil {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

func (sm *SessionManager) fromBearer(r *http.Request) *SessionUser {
	if sm.tokens == nil {
		return nil
	}
	h := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(h, "Bearer ")
	if !found || raw == "" {
		return nil
	}
	u, err := sm.tokens.Verify(raw)
	if err != nil {
		sm.log.Debug("bearer token rejected", zap.Error(err))
		return nil
	}
	return u
}

func (sm *SessionManager) fromCookie(r *http.Request) *SessionUser {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return nil
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return nil
	}
	return &SessionUser{
		ID:       getString(sess, userIDKey),
		Name:     getString(sess, userNameKey),
		Email:    getString(sess, emailKey),
		Role:     getString(sess, roleKey),
		ChurchID: getString(sess, churchKey),
		BranchID: getString(sess, branchKey),
	}
}

func (sm *SessionManager) refresh(r *http.Request, u *SessionUser) *SessionUser {
	id, ok := u.UserID()
	if !ok {
		return nil
	}
	fresh, err := sm.fetcher.FetchSessionUser(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrUserInactive) {
			sm.log.Warn("reload session user failed", zap.String("user_id", u.ID), zap.Error(err))
		}
		return nil
	}
	return fresh
}

// RequireSignedIn answers 401 with a JSON error when no user is present.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="flockhub"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "authentication required",
	})
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
