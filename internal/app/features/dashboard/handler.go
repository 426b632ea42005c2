// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"
	"time"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	churchstore "github.com/dalemusser/flockhub/internal/app/store/churches"
	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/flockhub/internal/app/store/memberships"
	snapshotstore "github.com/dalemusser/flockhub/internal/app/store/snapshots"
	"github.com/dalemusser/flockhub/internal/app/system/authz"
	"github.com/dalemusser/flockhub/internal/app/system/churchutil"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// recentWindow is how far back "recent activities" are counted.
const recentWindow = 30 * 24 * time.Hour

type Handler struct {
	DB          *mongo.Database
	Churches    *churchstore.Store
	Groups      *groupstore.Store
	Memberships *membershipstore.Store
	Snapshots   *snapshotstore.Store
	Log         *zap.Logger
	ErrLog      *apierrors.ErrorLogger

	Now func() time.Time
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:          db,
		Churches:    churchstore.New(db),
		Groups:      groupstore.New(db),
		Memberships: membershipstore.New(db),
		Snapshots:   snapshotstore.New(db),
		Log:         logger,
		ErrLog:      errLog,
		Now:         time.Now,
	}
}

// groupHealth is one group's line on a dashboard. Score is nil until the
// snapshot worker has scored the group.
type groupHealth struct {
	GroupID       primitive.ObjectID `json:"group_id"`
	Name          string             `json:"name"`
	ActiveMembers int64              `json:"active_members"`
	Score         *int               `json:"score"`
	ComputedAt    *time.Time         `json:"computed_at,omitempty"`
}

// ServeDashboard handles GET /dashboard, dispatching on the caller's role.
// Superadmins get the platform view unless they pass ?church=.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	u, uid, ok := authz.UserCtx(r)
	if !ok {
		apierrors.Unauthorized(w, "")
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "dashboard")
	defer cancel()
	r = r.WithContext(ctx)

	if u.IsSuperAdmin() && query.Get(r, "church") == "" {
		h.ServePlatform(w, r)
		return
	}
	switch u.Role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RolePastor:
		h.ServeChurch(w, r)
	case models.RoleLeader:
		h.ServeLeader(w, r, uid)
	default:
		apierrors.Forbidden(w, "")
	}
}

// health joins groups with their latest snapshots and active member
// counts, keeping the order of groups.
func (h *Handler) health(r *http.Request, groups []models.Group, snaps []models.GroupHealthSnapshot) ([]groupHealth, error) {
	ids := make([]primitive.ObjectID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	counts, err := churchutil.ActiveMemberCounts(r.Context(), h.DB, ids)
	if err != nil {
		return nil, err
	}
	bySnap := make(map[primitive.ObjectID]models.GroupHealthSnapshot, len(snaps))
	for _, s := range snaps {
		bySnap[s.GroupID] = s
	}

	out := make([]groupHealth, 0, len(groups))
	for _, g := range groups {
		gh := groupHealth{GroupID: g.ID, Name: g.Name, ActiveMembers: counts[g.ID]}
		if s, ok := bySnap[g.ID]; ok {
			score, at := s.Score, s.ComputedAt
			gh.Score, gh.ComputedAt = &score, &at
		}
		out = append(out, gh)
	}
	return out, nil
}
