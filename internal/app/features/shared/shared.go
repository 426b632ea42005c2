// Package shared holds the request plumbing common to the JSON features:
// resolving the church of the request, parsing ids and paging, and
// loading a group the caller may act on.
package shared

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/app/system/churchutil"
	"github.com/dalemusser/flockhub/internal/app/system/paging"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Church resolves the church of the request, answering 400 or 401 when
// there is none.
func Church(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := authz.ChurchScope(r)
	if err == nil {
		return id, true
	}
	if _, signedIn := auth.CurrentUser(r); !signedIn {
		apierrors.Unauthorized(w, "")
		return primitive.NilObjectID, false
	}
	apierrors.BadRequest(w, err.Error())
	return primitive.NilObjectID, false
}

// ID parses the path parameter name, answering 400 when it is malformed.
func ID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := churchutil.PathID(r, name)
	if err != nil {
		apierrors.BadRequest(w, "invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

// QueryID parses an optional id query parameter, answering 400 when it is
// malformed.
func QueryID(w http.ResponseWriter, r *http.Request, name string) (*primitive.ObjectID, bool) {
	id, err := churchutil.QueryID(r, name)
	if err != nil {
		apierrors.BadRequest(w, "invalid "+name)
		return nil, false
	}
	return id, true
}

// Paging parses ?before=, ?after= and ?limit=, answering 400 on a bad limit.
func Paging(w http.ResponseWriter, r *http.Request) (paging.Params, bool) {
	p, err := paging.ParseParams(r)
	if err != nil {
		apierrors.BadRequest(w, err.Error())
		return paging.Params{}, false
	}
	return p, true
}

// Actor returns the signed-in user and their id, answering 401 without one.
func Actor(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, primitive.ObjectID, bool) {
	u, id, ok := authz.UserCtx(r)
	if !ok {
		apierrors.Unauthorized(w, "")
		return nil, primitive.NilObjectID, false
	}
	return u, id, true
}

// GroupAccess loads groups and decides group-level capabilities.
type GroupAccess struct {
	Groups  *groupstore.Store
	Leaders authz.LeaderChecker
	Members interface {
		IsActiveMember(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error)
	}
	ErrLog *apierrors.ErrorLogger
}

// Load resolves the church and the {id} group of the request and checks
// the caller holds c on it. Members, who only hold ViewGroups, may see
// groups they belong to. It writes the error response itself and returns
// false when the handler should stop.
func (ga *GroupAccess) Load(w http.ResponseWriter, r *http.Request, c authz.Capability) (models.Group, bool) {
	u, uid, ok := Actor(w, r)
	if !ok {
		return models.Group{}, false
	}
	churchID, ok := Church(w, r)
	if !ok {
		return models.Group{}, false
	}
	groupID, ok := ID(w, r, "id")
	if !ok {
		return models.Group{}, false
	}

	g, err := ga.Groups.Get(r.Context(), churchID, groupID)
	if errors.Is(err, groupstore.ErrNotFound) {
		apierrors.NotFound(w, "group not found")
		return models.Group{}, false
	}
	if err != nil {
		ga.ErrLog.LogServerError(w, r, "load group failed", err, "")
		return models.Group{}, false
	}

	allowed, err := authz.CanOnGroup(r.Context(), u, c, g.ID, ga.Leaders)
	if err == nil && !allowed && c == authz.ViewGroups && u.Role == models.RoleMember && ga.Members != nil {
		allowed, err = ga.Members.IsActiveMember(r.Context(), g.ID, uid)
	}
	if err != nil {
		ga.ErrLog.LogServerError(w, r, "group permission check failed", err, "")
		return models.Group{}, false
	}
	if !allowed {
		apierrors.Forbidden(w, "you do not have permission to "+c.String()+" on this group")
		return models.Group{}, false
	}
	return g, true
}
