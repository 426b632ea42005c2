package authz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNoChurch means the request has no church to operate on: a
	// superadmin did not pass ?church=, or the user is not bound to one.
	ErrNoChurch = errors.New("no church selected")
	// ErrBadChurch means ?church= is not a valid id.
	ErrBadChurch = errors.New("invalid church id")
)

// UserCtx returns the current user with parsed ids. ok is false when no
// user is signed in or the session holds a malformed id.
func UserCtx(r *http.Request) (u *auth.SessionUser, userID primitive.ObjectID, ok bool) {
	u, found := auth.CurrentUser(r)
	if !found {
		return nil, primitive.NilObjectID, false
	}
	userID, ok = u.UserID()
	if !ok {
		return nil, primitive.NilObjectID, false
	}
	return u, userID, true
}

// ChurchScope resolves the tenant of the request. Superadmins choose one
// with ?church=<id>; everyone else is pinned to their own church and the
// parameter is ignored.
func ChurchScope(r *http.Request) (primitive.ObjectID, error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, ErrNoChurch
	}
	if u.IsSuperAdmin() {
		raw := query.Get(r, "church")
		if raw == "" {
			return primitive.NilObjectID, ErrNoChurch
		}
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return primitive.NilObjectID, ErrBadChurch
		}
		return id, nil
	}
	id, ok := u.Church()
	if !ok {
		return primitive.NilObjectID, ErrNoChurch
	}
	return id, nil
}

// LeaderChecker answers whether a user leads a group (as leader or
// assistant leader, with an active membership).
type LeaderChecker interface {
	IsGroupLeader(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error)
}

// CanOnGroup reports whether u may exercise c on groupID. Church-wide
// roles only need the capability; leaders must also lead the group.
// The caller has already checked the group belongs to u's church.
func CanOnGroup(ctx context.Context, u *auth.SessionUser, c Capability, groupID primitive.ObjectID, lc LeaderChecker) (bool, error) {
	if !Can(u, c) {
		return false, nil
	}
	if churchWide(u.Role) {
		return true, nil
	}
	uid, ok := u.UserID()
	if !ok {
		return false, nil
	}
	return lc.IsGroupLeader(ctx, groupID, uid)
}

// Require is middleware answering 401 without a user and 403 when the user
// lacks c.
func Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := auth.CurrentUser(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !Can(u, c) {
				writeJSONError(w, http.StatusForbidden, "you do not have permission to "+c.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
