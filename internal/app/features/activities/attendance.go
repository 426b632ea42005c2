// internal/app/features/activities/attendance.go
package activities

import (
	"context"
	"net/http"
	"strconv"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type attendanceRecord struct {
	UserID string `json:"user_id" validate:"required,objectid"`
	Status string `json:"status" validate:"required,attendance"`
	Notes  string `json:"notes" validate:"max=1000"`
}

type attendanceRequest struct {
	Records []attendanceRecord `json:"records" validate:"required,min=1,max=200,dive"`
}

// MarkAttendance handles PUT /groups/{id}/activities/{activityID}/attendance.
// Each record replaces any earlier one for the same member. Members must
// be planned for the activity or on the group's active roster.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req attendanceRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, a, ok := h.load(w, r.WithContext(ctx), authz.MarkAttendance)
	if !ok {
		return
	}
	if a.Cancelled {
		apierrors.Conflict(w, "activity is cancelled")
		return
	}

	recs := make([]models.AttendanceRecord, len(req.Records))
	for i, in := range req.Records {
		uid, _ := primitive.ObjectIDFromHex(in.UserID)
		if !a.IsPlanned(uid) {
			member, err := h.Memberships.IsActiveMember(ctx, g.ID, uid)
			if err != nil {
				h.ErrLog.LogServerError(w, r, "check membership failed", err, "")
				return
			}
			if !member {
				apierrors.BadRequest(w, "records["+strconv.Itoa(i)+"].user_id is not a member of this group")
				return
			}
		}
		recs[i] = models.AttendanceRecord{
			UserID:   uid,
			Status:   models.AttendanceStatus(in.Status),
			MarkedBy: actorID,
			Notes:    htmlsanitize.PlainText(in.Notes),
		}
	}

	out := a
	for _, rec := range recs {
		var err error
		out, err = h.Activities.MarkAttendance(ctx, g.ChurchID, a.ID, rec)
		if h.storeError(w, r, "mark attendance", err) {
			return
		}
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &g.ChurchID, audit.EventAttendanceMarked, a.ID,
		map[string]string{"group_id": g.ID.Hex(), "records": strconv.Itoa(len(recs))})
	apierrors.WriteData(w, out)
}

// ClearAttendance handles DELETE /groups/{id}/activities/{activityID}/attendance/{userID}.
// The member stays planned and shows as unmarked.
func (h *Handler) ClearAttendance(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.ID(w, r, "userID")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, a, ok := h.load(w, r.WithContext(ctx), authz.MarkAttendance)
	if !ok {
		return
	}
	if _, found := a.RecordFor(userID); !found {
		apierrors.NotFound(w, "no attendance recorded for this member")
		return
	}
	out, err := h.Activities.ClearAttendance(ctx, g.ChurchID, a.ID, userID)
	if h.storeError(w, r, "clear attendance", err) {
		return
	}
	apierrors.WriteData(w, out)
}

