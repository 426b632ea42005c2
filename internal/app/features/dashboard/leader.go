// internal/app/features/dashboard/leader.go
package dashboard

import (
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type leaderData struct {
	Groups []groupHealth `json:"groups"`
}

// ServeLeader reports the groups the caller leads.
func (h *Handler) ServeLeader(w http.ResponseWriter, r *http.Request, uid primitive.ObjectID) {
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	ids, err := h.Memberships.GroupIDsForUser(ctx, uid, true)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list led groups", err, "")
		return
	}
	led := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		led[id] = true
	}
	all, err := h.Groups.ListActive(ctx, &churchID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list groups", err, "")
		return
	}
	var groups []models.Group
	for _, g := range all {
		if led[g.ID] {
			groups = append(groups, g)
		}
	}
	snaps, err := h.Snapshots.ListByChurch(ctx, churchID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list health snapshots", err, "")
		return
	}
	rows, err := h.health(r, groups, snaps)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count members", err, "")
		return
	}

	h.Log.Debug("leader dashboard served", zap.String("user", uid.Hex()))
	apierrors.WriteData(w, leaderData{Groups: rows})
}
