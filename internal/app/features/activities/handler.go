// internal/app/features/activities/handler.go
package activities

import (
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	activitystore "github.com/dalemusser/flockhub/internal/app/store/activities"
	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/flockhub/internal/app/store/memberships"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves a group's activities, attendance marking and the
// calendar feed.
type Handler struct {
	Activities  *activitystore.Store
	Groups      *groupstore.Store
	Memberships *membershipstore.Store
	Access      *shared.GroupAccess
	Log         *zap.Logger
	ErrLog      *apierrors.ErrorLogger
	AuditLog    *auditlog.Logger

	// BaseURL prefixes feed links, e.g. "https://flock.example.org".
	BaseURL string
	feed    *securecookie.SecureCookie
}

// NewHandler builds the handler. feedKey signs calendar feed tokens; it
// must be at least 32 bytes.
func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, feedKey, baseURL string, logger *zap.Logger) *Handler {
	groups := groupstore.New(db)
	members := membershipstore.New(db)
	sc := securecookie.New([]byte(feedKey), nil)
	sc.MaxAge(int(feedTTL.Seconds()))
	return &Handler{
		Activities:  activitystore.New(db),
		Groups:      groups,
		Memberships: members,
		Access: &shared.GroupAccess{
			Groups:  groups,
			Leaders: members,
			Members: members,
			ErrLog:  errLog,
		},
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
		BaseURL:  baseURL,
		feed:     sc,
	}
}

// load resolves {id} and {activityID}, checking the caller holds c on the
// group. An activity of another group is not found.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, c authz.Capability) (models.Group, models.Activity, bool) {
	g, ok := h.Access.Load(w, r, c)
	if !ok {
		return models.Group{}, models.Activity{}, false
	}
	id, ok := shared.ID(w, r, "activityID")
	if !ok {
		return models.Group{}, models.Activity{}, false
	}
	a, err := h.Activities.Get(r.Context(), g.ChurchID, id)
	if err == nil && a.GroupID != g.ID {
		err = activitystore.ErrNotFound
	}
	if h.storeError(w, r, "load activity", err) {
		return models.Group{}, models.Activity{}, false
	}
	return g, a, true
}

// storeError maps activity store errors onto responses. It reports false
// when err is nil.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, activitystore.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, activitystore.ErrCancelled),
		errors.Is(err, activitystore.ErrCompleteCancel):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, activitystore.ErrBadStatus),
		errors.Is(err, activitystore.ErrBadType),
		errors.Is(err, activitystore.ErrNoDate):
		apierrors.BadRequest(w, err.Error())
	default:
		h.ErrLog.LogServerError(w, r, op+" failed", err, "")
	}
	return true
}
