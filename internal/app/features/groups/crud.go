// internal/app/features/groups/crud.go
package groups

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/app/system/churchutil"
	"github.com/dalemusser/flockhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type createRequest struct {
	Name         string `json:"name" validate:"notblank,max=200"`
	Description  string `json:"description" validate:"max=5000"`
	Category     string `json:"category" validate:"max=100"`
	MeetingDay   string `json:"meeting_day" validate:"omitempty,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	BranchID     string `json:"branch_id" validate:"objectid"`
	DepartmentID string `json:"department_id" validate:"objectid"`
	// LeaderID, when set, puts that user on the new roster as leader.
	LeaderID string `json:"leader_id" validate:"objectid"`
}

type updateRequest struct {
	Name         *string `json:"name" validate:"omitempty,notblank,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=5000"`
	Category     *string `json:"category" validate:"omitempty,max=100"`
	MeetingDay   *string `json:"meeting_day" validate:"omitempty,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	BranchID     *string `json:"branch_id" validate:"omitempty,objectid"`
	DepartmentID *string `json:"department_id" validate:"omitempty,objectid"`
	Status       *string `json:"status" validate:"omitempty,oneof=active disabled"`
}

// groupView is a group with its active roster size.
type groupView struct {
	models.Group
	MemberCount int64 `json:"member_count"`
}

// List handles GET /groups?status=&branch=&department=&q=&after=&before=&limit=.
// Leaders see the groups they lead, members the groups they belong to.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	u, uid, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	status := query.Get(r, "status")
	if err := inputval.Var("status", status, "omitempty,oneof=active disabled"); err != nil {
		apierrors.Invalid(w, err)
		return
	}
	branchID, ok := shared.QueryID(w, r, "branch")
	if !ok {
		return
	}
	deptID, ok := shared.QueryID(w, r, "department")
	if !ok {
		return
	}
	p, ok := shared.Paging(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	f := groupstore.ListFilter{
		Status:       status,
		BranchID:     branchID,
		DepartmentID: deptID,
		Search:       query.Get(r, "q"),
	}
	if !authz.Can(u, authz.ManageGroups) {
		ids, err := h.Memberships.GroupIDsForUser(ctx, uid, u.Role != models.RoleMember)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load user groups failed", err, "")
			return
		}
		f.IDs = append([]primitive.ObjectID{}, ids...)
	}

	rows, res, err := h.Groups.List(ctx, churchID, f, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list groups failed", err, "")
		return
	}

	ids := make([]primitive.ObjectID, len(rows))
	for i, g := range rows {
		ids[i] = g.ID
	}
	counts, err := churchutil.ActiveMemberCounts(ctx, h.DB, ids)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count group members failed", err, "")
		return
	}
	views := make([]groupView, len(rows))
	for i, g := range rows {
		views[i] = groupView{Group: g, MemberCount: counts[g.ID]}
	}
	apierrors.WriteData(w, shared.NewList(views, res,
		func(v groupView) string { return v.NameCI },
		func(v groupView) primitive.ObjectID { return v.ID }))
}

// Create handles POST /groups.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	branchID, deptID := optionalID(req.BranchID), optionalID(req.DepartmentID)
	if !h.checkRefs(ctx, w, r, churchID, branchID, deptID) {
		return
	}
	leaderID := optionalID(req.LeaderID)
	if leaderID != nil {
		_, err := h.Users.Get(ctx, churchID, *leaderID)
		if errors.Is(err, userstore.ErrNotFound) {
			apierrors.BadRequest(w, "leader_id does not name a user of this church")
			return
		}
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load leader failed", err, "")
			return
		}
	}

	g, err := h.Groups.Create(ctx, models.Group{
		ChurchID:     churchID,
		BranchID:     branchID,
		DepartmentID: deptID,
		Name:         req.Name,
		Description:  htmlsanitize.Sanitize(req.Description),
		Category:     req.Category,
		MeetingDay:   req.MeetingDay,
	})
	if errors.Is(err, groupstore.ErrDuplicateGroupName) {
		apierrors.Conflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create group failed", err, "")
		return
	}

	view := groupView{Group: g}
	if leaderID != nil {
		if _, err := h.Memberships.Add(ctx, churchID, g.ID, *leaderID, models.GroupRoleLeader); err != nil {
			// The group stands; the caller can retry the roster add.
			h.Log.Warn("add leader to new group failed",
				zap.String("group_id", g.ID.Hex()), zap.String("user_id", leaderID.Hex()), zap.Error(err))
		} else {
			view.MemberCount = 1
		}
	}

	h.AuditLog.Admin(r.Context(), r, actorID, &churchID, audit.EventGroupCreated, g.ID, map[string]string{"name": g.Name})
	apierrors.WriteCreated(w, view)
}

// Get handles GET /groups/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ViewGroups)
	if !ok {
		return
	}
	n, err := h.Memberships.CountActiveByGroup(ctx, g.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count group members failed", err, "")
		return
	}
	apierrors.WriteData(w, groupView{Group: g, MemberCount: n})
}

// Update handles PATCH /groups/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ManageGroups)
	if !ok {
		return
	}
	upd := groupstore.Update{
		Name:       req.Name,
		Category:   req.Category,
		MeetingDay: req.MeetingDay,
		Status:     req.Status,
	}
	if req.Description != nil {
		d := htmlsanitize.Sanitize(*req.Description)
		upd.Description = &d
	}
	if req.BranchID != nil {
		upd.BranchID = optionalID(*req.BranchID)
	}
	if req.DepartmentID != nil {
		upd.DepartmentID = optionalID(*req.DepartmentID)
	}
	if !h.checkRefs(ctx, w, r, g.ChurchID, upd.BranchID, upd.DepartmentID) {
		return
	}

	out, err := h.Groups.Update(ctx, g.ChurchID, g.ID, upd)
	switch {
	case errors.Is(err, groupstore.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, groupstore.ErrDuplicateGroupName):
		apierrors.Conflict(w, err.Error())
	case err != nil:
		h.ErrLog.LogServerError(w, r, "update group failed", err, "")
	default:
		h.AuditLog.Admin(r.Context(), r, actorID, &g.ChurchID, audit.EventGroupUpdated, g.ID, nil)
		apierrors.WriteData(w, out)
	}
}

// Delete handles DELETE /groups/{id}, removing the roster, activities,
// goals and health snapshot with the group.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ManageGroups)
	if !ok {
		return
	}
	found, err := h.Cascade.Group(ctx, g.ChurchID, g.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete group failed", err, "")
		return
	}
	if !found {
		apierrors.NotFound(w, groupstore.ErrNotFound.Error())
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &g.ChurchID, audit.EventGroupDeleted, g.ID, map[string]string{"name": g.Name})
	apierrors.WriteData(w, map[string]string{"deleted": g.ID.Hex()})
}
