// internal/app/features/groups/roster.go
package groups

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	membershipstore "github.com/dalemusser/flockhub/internal/app/store/memberships"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type addMemberRequest struct {
	UserID string `json:"user_id" validate:"required,objectid"`
	Role   string `json:"role" validate:"omitempty,grouprole"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,grouprole"`
}

// rosterEntry is a membership with the member's name and email.
type rosterEntry struct {
	models.GroupMembership
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// rosterError maps membership store errors onto responses. It reports
// false when err is nil.
func (h *Handler) rosterError(w http.ResponseWriter, r *http.Request, op string, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, membershipstore.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, membershipstore.ErrDuplicateMembership),
		errors.Is(err, membershipstore.ErrLeaderExists):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, membershipstore.ErrUserNotFound),
		errors.Is(err, membershipstore.ErrChurchMismatch):
		apierrors.BadRequest(w, "user_id does not name a user of this church")
	case errors.Is(err, membershipstore.ErrBadRole):
		apierrors.BadRequest(w, err.Error())
	case errors.Is(err, membershipstore.ErrGroupNotFound):
		apierrors.NotFound(w, err.Error())
	default:
		h.ErrLog.LogServerError(w, r, op+" failed", err, "")
	}
	return true
}

// canAppointLeader reports whether the caller may hand out the leader
// role. Leaders manage their roster but do not appoint leaders.
func canAppointLeader(r *http.Request, role models.GroupRole) bool {
	if role != models.GroupRoleLeader {
		return true
	}
	u, _, _ := authz.UserCtx(r)
	return authz.Can(u, authz.ManageGroups)
}

// Roster handles GET /groups/{id}/members?all=true. Only active members
// are listed unless all is set.
func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ViewGroups)
	if !ok {
		return
	}
	rows, err := h.Memberships.ListByGroup(ctx, g.ID, query.Get(r, "all") != "true")
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load roster failed", err, "")
		return
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, m := range rows {
		ids[i] = m.UserID
	}
	users, err := h.Users.GetMany(ctx, ids)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load roster users failed", err, "")
		return
	}
	out := make([]rosterEntry, len(rows))
	for i, m := range rows {
		u := users[m.UserID]
		out[i] = rosterEntry{GroupMembership: m, FullName: u.FullName, Email: u.Email}
	}
	apierrors.WriteData(w, out)
}

// AddMember handles POST /groups/{id}/members. A former member is
// reactivated with a fresh join date.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req addMemberRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}
	role := models.GroupRole(req.Role)
	if role == "" {
		role = models.GroupRoleMember
	}
	if !canAppointLeader(r, role) {
		apierrors.Forbidden(w, "only church staff may appoint group leaders")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ManageRoster)
	if !ok {
		return
	}
	userID, _ := primitive.ObjectIDFromHex(req.UserID)
	m, err := h.Memberships.Add(ctx, g.ChurchID, g.ID, userID, role)
	if h.rosterError(w, r, "add member", err) {
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &g.ChurchID, audit.EventMemberAdded, g.ID,
		map[string]string{"user_id": userID.Hex(), "role": string(role)})
	apierrors.WriteCreated(w, m)
}

// SetMemberRole handles PUT /groups/{id}/members/{userID}/role.
func (h *Handler) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	userID, ok := shared.ID(w, r, "userID")
	if !ok {
		return
	}
	var req roleRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}
	role := models.GroupRole(req.Role)
	if !canAppointLeader(r, role) {
		apierrors.Forbidden(w, "only church staff may appoint group leaders")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ManageRoster)
	if !ok {
		return
	}
	m, err := h.Memberships.SetRole(ctx, g.ID, userID, role)
	if h.rosterError(w, r, "set member role", err) {
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &g.ChurchID, audit.EventMemberRole, g.ID,
		map[string]string{"user_id": userID.Hex(), "role": string(role)})
	apierrors.WriteData(w, m)
}

// DeactivateMember handles POST /groups/{id}/members/{userID}/deactivate.
// The membership is kept, marked as left, so history stays intact.
func (h *Handler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	h.leave(w, r, false)
}

// RemoveMember handles DELETE /groups/{id}/members/{userID}, deleting the
// membership outright.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.leave(w, r, true)
}

func (h *Handler) leave(w http.ResponseWriter, r *http.Request, remove bool) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	userID, ok := shared.ID(w, r, "userID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ManageRoster)
	if !ok {
		return
	}
	var err error
	if remove {
		err = h.Memberships.Remove(ctx, g.ID, userID)
	} else {
		err = h.Memberships.Deactivate(ctx, g.ID, userID)
	}
	if h.rosterError(w, r, "remove member", err) {
		return
	}
	mode := "deactivated"
	if remove {
		mode = "removed"
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &g.ChurchID, audit.EventMemberRemoved, g.ID,
		map[string]string{"user_id": userID.Hex(), "mode": mode})
	apierrors.WriteData(w, map[string]string{"user_id": userID.Hex(), "status": mode})
}
