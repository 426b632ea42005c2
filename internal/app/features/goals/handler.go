// internal/app/features/goals/handler.go
package goals

import (
	"context"
	"errors"
	"net/http"
	"time"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	goalstore "github.com/dalemusser/flockhub/internal/app/store/goals"
	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/flockhub/internal/app/store/memberships"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves a group's goals.
type Handler struct {
	Goals    *goalstore.Store
	Access   *shared.GroupAccess
	Log      *zap.Logger
	ErrLog   *apierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	members := membershipstore.New(db)
	return &Handler{
		Goals: goalstore.New(db),
		Access: &shared.GroupAccess{
			Groups:  groupstore.New(db),
			Leaders: members,
			Members: members,
			ErrLog:  errLog,
		},
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

type createRequest struct {
	Title       string     `json:"title" validate:"notblank,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Status      string     `json:"status" validate:"omitempty,goalstatus"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	TargetDate  *time.Time `json:"target_date"`
}

type updateRequest struct {
	Title           *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description     *string    `json:"description" validate:"omitempty,max=5000"`
	Priority        *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	TargetDate      *time.Time `json:"target_date"`
	ClearTargetDate bool       `json:"clear_target_date"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,goalstatus"`
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, goalstore.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, goalstore.ErrBadStatus), errors.Is(err, goalstore.ErrBadPriority):
		apierrors.BadRequest(w, err.Error())
	default:
		h.ErrLog.LogServerError(w, r, op+" failed", err, "")
	}
	return true
}

// load resolves {id} and {goalID}; a goal of another group is not found.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, c authz.Capability) (models.Group, models.Goal, bool) {
	g, ok := h.Access.Load(w, r, c)
	if !ok {
		return models.Group{}, models.Goal{}, false
	}
	id, ok := shared.ID(w, r, "goalID")
	if !ok {
		return models.Group{}, models.Goal{}, false
	}
	goal, err := h.Goals.Get(r.Context(), g.ChurchID, id)
	if err == nil && goal.GroupID != g.ID {
		err = goalstore.ErrNotFound
	}
	if h.storeError(w, r, "load goal", err) {
		return models.Group{}, models.Goal{}, false
	}
	return g, goal, true
}

// List handles GET /groups/{id}/goals?status=. Goals are ordered by target
// date, undated goals last.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	status := query.Get(r, "status")
	if err := inputval.Var("status", status, "omitempty,goalstatus"); err != nil {
		apierrors.Invalid(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ViewGroups)
	if !ok {
		return
	}
	rows, err := h.Goals.ListByGroup(ctx, g.ID, models.GoalStatus(status))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list goals failed", err, "")
		return
	}
	apierrors.WriteData(w, rows)
}

// Create handles POST /groups/{id}/goals.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ManageGoals)
	if !ok {
		return
	}
	goal := models.Goal{
		ChurchID:    g.ChurchID,
		GroupID:     g.ID,
		Title:       req.Title,
		Description: htmlsanitize.Sanitize(req.Description),
		Status:      models.GoalStatus(req.Status),
		Priority:    req.Priority,
	}
	if req.TargetDate != nil {
		t := req.TargetDate.UTC()
		goal.TargetDate = &t
	}
	out, err := h.Goals.Create(ctx, goal)
	if h.storeError(w, r, "create goal", err) {
		return
	}
	apierrors.WriteCreated(w, out)
}

// Get handles GET /groups/{id}/goals/{goalID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, goal, ok := h.load(w, r.WithContext(ctx), authz.ViewGroups)
	if !ok {
		return
	}
	apierrors.WriteData(w, goal)
}

// Update handles PATCH /groups/{id}/goals/{goalID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}
	if req.ClearTargetDate && req.TargetDate != nil {
		apierrors.BadRequest(w, "target_date and clear_target_date are exclusive")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, goal, ok := h.load(w, r.WithContext(ctx), authz.ManageGoals)
	if !ok {
		return
	}
	upd := goalstore.Update{
		Title:       req.Title,
		Priority:    req.Priority,
		TargetDate:  req.TargetDate,
		ClearTarget: req.ClearTargetDate,
	}
	if req.Description != nil {
		d := htmlsanitize.Sanitize(*req.Description)
		upd.Description = &d
	}
	out, err := h.Goals.Update(ctx, g.ChurchID, goal.ID, upd)
	if h.storeError(w, r, "update goal", err) {
		return
	}
	apierrors.WriteData(w, out)
}

// SetStatus handles PUT /groups/{id}/goals/{goalID}/status. Any status may
// follow any other; completing stamps completed_at.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, goal, ok := h.load(w, r.WithContext(ctx), authz.ManageGoals)
	if !ok {
		return
	}
	out, err := h.Goals.SetStatus(ctx, g.ChurchID, goal.ID, models.GoalStatus(req.Status))
	if h.storeError(w, r, "set goal status", err) {
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &g.ChurchID, audit.EventGoalStatus, goal.ID,
		map[string]string{"from": string(goal.Status), "to": string(out.Status)})
	apierrors.WriteData(w, out)
}

// Delete handles DELETE /groups/{id}/goals/{goalID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, goal, ok := h.load(w, r.WithContext(ctx), authz.ManageGoals)
	if !ok {
		return
	}
	n, err := h.Goals.Delete(ctx, g.ChurchID, goal.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete goal failed", err, "")
		return
	}
	if n == 0 {
		apierrors.NotFound(w, goalstore.ErrNotFound.Error())
		return
	}
	apierrors.WriteData(w, map[string]string{"deleted": goal.ID.Hex()})
}
