// internal/app/features/groupstats/handler.go
//
// Package groupstats serves the analytics of one group: attendance
// summaries, per-member engagement and the group health score.
package groupstats

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/flockhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/analytics"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/app/system/groupdata"
	"github.com/dalemusser/flockhub/internal/app/system/metrics"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// maxDays bounds the ?days= look-back of the members and health endpoints.
const maxDays = 365

type Handler struct {
	Data    *groupdata.Loader
	Users   *userstore.Store
	Access  *shared.GroupAccess
	Weights analytics.HealthWeights
	Metrics *metrics.Metrics
	Log     *zap.Logger
	ErrLog  *apierrors.ErrorLogger

	// Now is the clock used for engagement and health; tests pin it.
	Now func() time.Time
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, weights analytics.HealthWeights, m *metrics.Metrics, logger *zap.Logger) *Handler {
	members := membershipstore.New(db)
	return &Handler{
		Data:  groupdata.NewLoader(db),
		Users: userstore.New(db),
		Access: &shared.GroupAccess{
			Groups:  groupstore.New(db),
			Leaders: members,
			Members: members,
			ErrLog:  errLog,
		},
		Weights: weights,
		Metrics: m,
		Log:     logger,
		ErrLog:  errLog,
		Now:     time.Now,
	}
}

// parseDays reads ?days= in [1, maxDays], falling back to def.
func parseDays(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	s := query.Get(r, "days")
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxDays {
		apierrors.BadRequest(w, "days must be a number between 1 and "+strconv.Itoa(maxDays))
		return 0, false
	}
	return n, true
}

// parseLimit reads ?limit= for attendance summaries. Values above the
// maximum are clamped; values below one are rejected.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	s := query.Get(r, "limit")
	if s == "" {
		return analytics.DefaultSummaryLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		apierrors.BadRequest(w, "limit must be a number")
		return 0, false
	}
	n, err = analytics.ClampLimit(n)
	if err != nil {
		apierrors.BadRequest(w, err.Error())
		return 0, false
	}
	return n, true
}

// parseRange reads the optional RFC 3339 ?start= and ?end= bounds.
func parseRange(w http.ResponseWriter, r *http.Request) (start, end *time.Time, ok bool) {
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start", &start}, {"end", &end}} {
		s := query.Get(r, p.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			apierrors.BadRequest(w, p.name+" must be an RFC 3339 timestamp")
			return nil, nil, false
		}
		*p.dst = &t
	}
	if start != nil && end != nil && end.Before(*start) {
		apierrors.BadRequest(w, "end is before start")
		return nil, nil, false
	}
	return start, end, true
}

// attendance loads the window and summarizes it.
func (h *Handler) attendance(w http.ResponseWriter, r *http.Request, g models.Group, q analytics.SummaryQuery) (analytics.AttendanceReport, bool) {
	acts, err := h.Data.History(r.Context(), g.ID, q.Start, q.End)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load attendance history", err, "")
		return analytics.AttendanceReport{}, false
	}
	rep, err := analytics.SummarizeAttendance(acts, q)
	if errors.Is(err, analytics.ErrInvalidLimit) {
		apierrors.BadRequest(w, err.Error())
		return analytics.AttendanceReport{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "summarize attendance", err, "")
		return analytics.AttendanceReport{}, false
	}
	return rep, true
}

// Attendance handles GET /groups/{id}/stats/attendance?start=&end=&limit=.
func (h *Handler) Attendance(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "group attendance stats")
	defer cancel()
	r = r.WithContext(ctx)

	g, ok := h.Access.Load(w, r, authz.ViewGroupStats)
	if !ok {
		return
	}
	rep, ok := h.attendance(w, r, g, analytics.SummaryQuery{Start: start, End: end, Limit: limit})
	if !ok {
		return
	}
	h.Metrics.ObserveStats("attendance")
	apierrors.WriteData(w, rep)
}

type membersReport struct {
	GroupID           primitive.ObjectID           `json:"group_id"`
	WindowDays        int                          `json:"window_days"`
	AverageEngagement float64                      `json:"average_engagement"`
	Members           []analytics.MemberEngagement `json:"members"`
}

// names fills FullName from the users collection. Missing users keep an
// empty name.
func (h *Handler) names(r *http.Request, reps []analytics.MemberEngagement) {
	ids := make([]primitive.ObjectID, 0, len(reps))
	for _, rep := range reps {
		ids = append(ids, rep.UserID)
	}
	users, err := h.Users.GetMany(r.Context(), ids)
	if err != nil {
		h.Log.Warn("load member names", zap.Error(err))
		return
	}
	for i := range reps {
		reps[i].FullName = users[reps[i].UserID].FullName
	}
}

// Members handles GET /groups/{id}/stats/members?days=. days is the
// recent-activity window of the engagement score (default 30).
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDays(w, r, int(analytics.DefaultRecentWindow/(24*time.Hour)))
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "group member stats")
	defer cancel()
	r = r.WithContext(ctx)

	g, ok := h.Access.Load(w, r, authz.ViewGroupStats)
	if !ok {
		return
	}
	members, err := h.Data.Members(ctx, g.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load roster", err, "")
		return
	}
	acts, err := h.Data.History(ctx, g.ID, nil, nil)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load history", err, "")
		return
	}

	reps := analytics.GroupEngagement(members, acts, h.Now(), time.Duration(days)*24*time.Hour)
	h.names(r, reps)
	h.Metrics.ObserveStats("members")
	apierrors.WriteData(w, membersReport{
		GroupID:           g.ID,
		WindowDays:        days,
		AverageEngagement: analytics.AverageEngagement(reps),
		Members:           reps,
	})
}

type memberReport struct {
	analytics.MemberEngagement
	Email   string                 `json:"email,omitempty"`
	History []analytics.Invitation `json:"history"`
}

// Member handles GET /groups/{id}/stats/members/{userID}. It includes the
// member's invitation history, oldest first.
func (h *Handler) Member(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "group member report")
	defer cancel()
	r = r.WithContext(ctx)

	g, ok := h.Access.Load(w, r, authz.ViewGroupStats)
	if !ok {
		return
	}
	uid, ok := shared.ID(w, r, "userID")
	if !ok {
		return
	}
	members, err := h.Data.Members(ctx, g.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load roster", err, "")
		return
	}
	var m *models.GroupMembership
	for i := range members {
		if members[i].UserID == uid {
			m = &members[i]
			break
		}
	}
	if m == nil {
		apierrors.NotFound(w, "user is not on this group's roster")
		return
	}
	acts, err := h.Data.History(ctx, g.ID, nil, nil)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load history", err, "")
		return
	}

	rep := memberReport{
		MemberEngagement: analytics.EngagementForMember(*m, acts, h.Now(), analytics.DefaultRecentWindow),
		History:          analytics.Invitations(uid, acts, h.Now()),
	}
	if rep.History == nil {
		rep.History = []analytics.Invitation{}
	}
	if u, err := h.Users.Get(ctx, g.ChurchID, uid); err == nil {
		rep.FullName = u.FullName
		rep.Email = u.Email
	}
	h.Metrics.ObserveStats("member")
	apierrors.WriteData(w, rep)
}

// Health handles GET /groups/{id}/stats/health?days=.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDays(w, r, analytics.DefaultPeriodDays)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "group health")
	defer cancel()
	r = r.WithContext(ctx)

	g, ok := h.Access.Load(w, r, authz.ViewGroupStats)
	if !ok {
		return
	}
	rep, err := h.Data.Health(ctx, g.ID, h.Weights, h.Now(), days)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "compute group health", err, "")
		return
	}
	h.Metrics.ObserveStats("health")
	h.Metrics.ObserveHealthScore(rep.Score.Score)
	apierrors.WriteData(w, rep)
}
