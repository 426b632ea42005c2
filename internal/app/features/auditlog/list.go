// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// positive parses an optional positive integer query parameter.
func positive(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	s := query.Get(r, name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		apierrors.BadRequest(w, name+" must be a positive number")
		return 0, false
	}
	return n, true
}

// date parses an optional YYYY-MM-DD query parameter.
func date(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	s := query.Get(r, name)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		apierrors.BadRequest(w, name+" must be a date (YYYY-MM-DD)")
		return nil, false
	}
	return &t, true
}

// ServeList handles GET /audit?category=&event_type=&user=&start_date=&end_date=&page=&limit=.
// Superadmins without ?church= see every church's events, including
// platform-level ones.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, _, ok := shared.Actor(w, r)
	if !ok {
		return
	}

	category := query.Get(r, "category")
	if category != "" && eventTypesForCategory(category) == nil {
		apierrors.BadRequest(w, "unknown category")
		return
	}
	page, ok := positive(w, r, "page", 1)
	if !ok {
		return
	}
	size, ok := positive(w, r, "limit", defaultPageSize)
	if !ok {
		return
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	userID, ok := shared.QueryID(w, r, "user")
	if !ok {
		return
	}

	filter := audit.QueryFilter{
		Category:  category,
		EventType: query.Get(r, "event_type"),
		UserID:    userID,
		Limit:     int64(size),
		Offset:    int64((page - 1) * size),
	}
	if filter.Start, ok = date(w, r, "start_date"); !ok {
		return
	}
	end, ok := date(w, r, "end_date")
	if !ok {
		return
	}
	if end != nil {
		endOfDay := end.Add(24*time.Hour - time.Nanosecond)
		filter.End = &endOfDay
	}
	if !u.IsSuperAdmin() || query.Get(r, "church") != "" {
		churchID, ok := shared.Church(w, r)
		if !ok {
			return
		}
		filter.ChurchID = &churchID
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events", err, "")
		return
	}
	total, err := h.Events.Count(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count audit events", err, "")
		return
	}

	ids := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			ids[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			ids[*e.UserID] = struct{}{}
		}
	}
	lookup := make([]primitive.ObjectID, 0, len(ids))
	for id := range ids {
		lookup = append(lookup, id)
	}
	names := make(map[primitive.ObjectID]string, len(lookup))
	if users, err := h.Users.GetMany(ctx, lookup); err != nil {
		h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
	} else {
		for id, u := range users {
			names[id] = u.FullName
		}
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:        e.ID,
			CreatedAt: e.CreatedAt,
			ChurchID:  e.ChurchID,
			Category:  e.Category,
			EventType: e.EventType,
			ActorID:   e.ActorID,
			UserID:    e.UserID,
			TargetID:  e.TargetID,
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		}
		if e.ActorID != nil {
			item.ActorName = names[*e.ActorID]
		}
		if e.UserID != nil {
			item.TargetName = names[*e.UserID]
		}
		items = append(items, item)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	if totalPages < 1 {
		totalPages = 1
	}
	apierrors.WriteData(w, listData{
		Items:      items,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: totalPages,
	})
}

// ServeCategories handles GET /audit/categories, the filter options.
func (h *Handler) ServeCategories(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteData(w, allCategories())
}
