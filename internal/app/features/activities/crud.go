// internal/app/features/activities/crud.go
package activities

import (
	"context"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	activitystore "github.com/dalemusser/flockhub/internal/app/store/activities"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/app/system/churchutil"
	"github.com/dalemusser/flockhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxListLimit = 200

type createRequest struct {
	Title        string    `json:"title" validate:"notblank,max=200"`
	Type         string    `json:"type" validate:"omitempty,oneof=meeting service event outreach training"`
	Date         time.Time `json:"date" validate:"required"`
	DurationMins int       `json:"duration_mins" validate:"min=0,max=1440"`
	Location     string    `json:"location" validate:"max=300"`
	Description  string    `json:"description" validate:"max=5000"`
	// PlannedParticipants defaults to the group's active roster.
	PlannedParticipants []string `json:"planned_participants" validate:"omitempty,dive,objectid"`
}

type updateRequest struct {
	Title               *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Type                *string    `json:"type" validate:"omitempty,oneof=meeting service event outreach training"`
	Date                *time.Time `json:"date"`
	DurationMins        *int       `json:"duration_mins" validate:"omitempty,min=0,max=1440"`
	Location            *string    `json:"location" validate:"omitempty,max=300"`
	Description         *string    `json:"description" validate:"omitempty,max=5000"`
	PlannedParticipants *[]string  `json:"planned_participants" validate:"omitempty,dive,objectid"`
}

// List handles GET /groups/{id}/activities?start=&end=&include_cancelled=&limit=.
// Activities come newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ViewGroups)
	if !ok {
		return
	}
	start, end, ok := timeRange(w, r)
	if !ok {
		return
	}
	limit := int64(maxListLimit)
	if s := query.Get(r, "limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			apierrors.BadRequest(w, "limit must be a positive integer")
			return
		}
		if n < maxListLimit {
			limit = int64(n)
		}
	}

	rows, err := h.Activities.ListByGroup(ctx, g.ID, activitystore.ListFilter{
		Start:            start,
		End:              end,
		IncludeCancelled: query.Get(r, "include_cancelled") == "true",
		Limit:            limit,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list activities failed", err, "")
		return
	}
	apierrors.WriteData(w, rows)
}

// timeRange parses ?start= and ?end= as RFC 3339 timestamps.
func timeRange(w http.ResponseWriter, r *http.Request) (start, end *time.Time, ok bool) {
	parse := func(name string) (*time.Time, bool) {
		s := query.Get(r, name)
		if s == "" {
			return nil, true
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			apierrors.BadRequest(w, name+" must be an RFC 3339 timestamp")
			return nil, false
		}
		return &t, true
	}
	if start, ok = parse("start"); !ok {
		return nil, nil, false
	}
	if end, ok = parse("end"); !ok {
		return nil, nil, false
	}
	if start != nil && end != nil && end.Before(*start) {
		apierrors.BadRequest(w, "end is before start")
		return nil, nil, false
	}
	return start, end, true
}

func parseIDs(w http.ResponseWriter, hexes []string) ([]primitive.ObjectID, bool) {
	ids, err := churchutil.ParseIDs(hexes)
	if err != nil {
		apierrors.BadRequest(w, "planned_participants: "+err.Error())
		return nil, false
	}
	return ids, true
}

// Create handles POST /groups/{id}/activities.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
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

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ManageActivities)
	if !ok {
		return
	}

	var planned []primitive.ObjectID
	if req.PlannedParticipants != nil {
		if planned, ok = parseIDs(w, req.PlannedParticipants); !ok {
			return
		}
	} else {
		roster, err := h.Memberships.ListByGroup(ctx, g.ID, true)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load roster failed", err, "")
			return
		}
		for _, m := range roster {
			planned = append(planned, m.UserID)
		}
	}

	a, err := h.Activities.Create(ctx, models.Activity{
		ChurchID:            g.ChurchID,
		GroupID:             g.ID,
		Title:               req.Title,
		Type:                req.Type,
		Date:                req.Date,
		DurationMins:        req.DurationMins,
		Location:            req.Location,
		Description:         htmlsanitize.Sanitize(req.Description),
		PlannedParticipants: planned,
		CreatedBy:           actorID,
	})
	if h.storeError(w, r, "create activity", err) {
		return
	}
	apierrors.WriteCreated(w, a)
}

// Get handles GET /groups/{id}/activities/{activityID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, a, ok := h.load(w, r.WithContext(ctx), authz.ViewGroups)
	if !ok {
		return
	}
	apierrors.WriteData(w, a)
}

// Update handles PATCH /groups/{id}/activities/{activityID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, a, ok := h.load(w, r.WithContext(ctx), authz.ManageActivities)
	if !ok {
		return
	}
	upd := activitystore.Update{
		Title:        req.Title,
		Type:         req.Type,
		Date:         req.Date,
		DurationMins: req.DurationMins,
		Location:     req.Location,
	}
	if req.Description != nil {
		d := htmlsanitize.Sanitize(*req.Description)
		upd.Description = &d
	}
	if req.PlannedParticipants != nil {
		ids, ok := parseIDs(w, *req.PlannedParticipants)
		if !ok {
			return
		}
		upd.PlannedParticipants = &ids
	}

	out, err := h.Activities.Update(ctx, g.ChurchID, a.ID, upd)
	if h.storeError(w, r, "update activity", err) {
		return
	}
	apierrors.WriteData(w, out)
}

// Delete handles DELETE /groups/{id}/activities/{activityID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, a, ok := h.load(w, r.WithContext(ctx), authz.ManageActivities)
	if !ok {
		return
	}
	n, err := h.Activities.Delete(ctx, g.ChurchID, a.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete activity failed", err, "")
		return
	}
	if n == 0 {
		apierrors.NotFound(w, activitystore.ErrNotFound.Error())
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &g.ChurchID, audit.EventActivityDeleted, a.ID,
		map[string]string{"group_id": g.ID.Hex(), "title": a.Title})
	apierrors.WriteData(w, map[string]string{"deleted": a.ID.Hex()})
}

// Complete handles POST /groups/{id}/activities/{activityID}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, func(ctx context.Context, churchID, id primitive.ObjectID) (models.Activity, error) {
		return h.Activities.SetCompleted(ctx, churchID, id, true)
	})
}

// Cancel handles POST /groups/{id}/activities/{activityID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, func(ctx context.Context, churchID, id primitive.ObjectID) (models.Activity, error) {
		return h.Activities.SetCancelled(ctx, churchID, id, true)
	})
}

// Restore handles POST /groups/{id}/activities/{activityID}/restore,
// undoing a cancellation.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, func(ctx context.Context, churchID, id primitive.ObjectID) (models.Activity, error) {
		return h.Activities.SetCancelled(ctx, churchID, id, false)
	})
}

func (h *Handler) setFlag(w http.ResponseWriter, r *http.Request, set func(context.Context, primitive.ObjectID, primitive.ObjectID) (models.Activity, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, a, ok := h.load(w, r.WithContext(ctx), authz.ManageActivities)
	if !ok {
		return
	}
	out, err := set(ctx, g.ChurchID, a.ID)
	if h.storeError(w, r, "update activity", err) {
		return
	}
	apierrors.WriteData(w, out)
}
