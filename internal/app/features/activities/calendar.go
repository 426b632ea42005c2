// internal/app/features/activities/calendar.go
package activities

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	activitystore "github.com/dalemusser/flockhub/internal/app/store/activities"
	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/emersion/go-ical"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	feedName        = "flockhub_feed"
	feedTTL         = 365 * 24 * time.Hour
	feedHistory     = 90 * 24 * time.Hour
	feedLimit       = 500
	defaultDuration = 60 * time.Minute
)

// feedClaims is what a calendar feed token carries.
type feedClaims struct {
	Church string `json:"c"`
	Group  string `json:"g"`
}

type feedLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FeedLink handles GET /groups/{id}/activities/feed, returning a signed
// iCalendar subscription URL for the group. Anyone holding the URL can
// read the schedule until it expires.
func (h *Handler) FeedLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.Access.Load(w, r.WithContext(ctx), authz.ViewGroups)
	if !ok {
		return
	}
	tok, err := h.feed.Encode(feedName, feedClaims{Church: g.ChurchID.Hex(), Group: g.ID.Hex()})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "encode feed token failed", err, "")
		return
	}
	apierrors.WriteData(w, feedLink{
		URL:       strings.TrimRight(h.BaseURL, "/") + "/calendar/" + tok + ".ics",
		ExpiresAt: time.Now().UTC().Add(feedTTL),
	})
}

// Feed handles GET /calendar/{token}.ics. It needs no session; the token
// names the group.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimSuffix(chi.URLParam(r, "token"), ".ics")
	var claims feedClaims
	if err := h.feed.Decode(feedName, tok, &claims); err != nil {
		h.Log.Debug("rejected calendar feed token", zap.Error(err))
		apierrors.NotFound(w, "calendar not found")
		return
	}
	churchID, err1 := primitive.ObjectIDFromHex(claims.Church)
	groupID, err2 := primitive.ObjectIDFromHex(claims.Group)
	if err1 != nil || err2 != nil {
		apierrors.NotFound(w, "calendar not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, err := h.Groups.Get(ctx, churchID, groupID)
	if errors.Is(err, groupstore.ErrNotFound) {
		apierrors.NotFound(w, "calendar not found")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load group failed", err, "")
		return
	}
	since := time.Now().UTC().Add(-feedHistory)
	acts, err := h.Activities.ListByGroup(ctx, g.ID, activitystore.ListFilter{
		Start:            &since,
		IncludeCancelled: true,
		Limit:            feedLimit,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list activities failed", err, "")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="group.ics"`)
	if err := ical.NewEncoder(w).Encode(buildCalendar(g, acts, time.Now().UTC())); err != nil {
		h.Log.Warn("encode calendar failed", zap.String("group_id", g.ID.Hex()), zap.Error(err))
	}
}

// buildCalendar renders a group's activities as VEVENTs. Cancelled
// activities stay in the feed with STATUS:CANCELLED so subscribers drop them.
func buildCalendar(g models.Group, acts []models.Activity, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//flockhub//group calendar//EN")
	cal.Props.SetText("X-WR-CALNAME", g.Name)

	for _, a := range acts {
		dur := time.Duration(a.DurationMins) * time.Minute
		if dur <= 0 {
			dur = defaultDuration
		}
		ev := ical.NewComponent(ical.CompEvent)
		ev.Props.SetText(ical.PropUID, a.ID.Hex()+"@flockhub")
		ev.Props.SetText(ical.PropSummary, a.Title)
		ev.Props.SetDateTime(ical.PropDateTimeStamp, now)
		ev.Props.SetDateTime(ical.PropDateTimeStart, a.Date.UTC())
		ev.Props.SetDateTime(ical.PropDateTimeEnd, a.Date.UTC().Add(dur))
		ev.Props.SetText(ical.PropCategories, a.Type)
		if a.Location != "" {
			ev.Props.SetText(ical.PropLocation, a.Location)
		}
		if a.Description != "" {
			ev.Props.SetText(ical.PropDescription, a.Description)
		}
		switch {
		case a.Cancelled:
			ev.Props.SetText(ical.PropStatus, "CANCELLED")
		default:
			ev.Props.SetText(ical.PropStatus, "CONFIRMED")
		}
		cal.Children = append(cal.Children, ev)
	}
	return cal
}
