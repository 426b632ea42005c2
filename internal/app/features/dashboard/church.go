// internal/app/features/dashboard/church.go
package dashboard

import (
	"net/http"
	"sort"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	metricsstore "github.com/dalemusser/flockhub/internal/app/store/metrics"
	snapshotstore "github.com/dalemusser/flockhub/internal/app/store/snapshots"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// attentionScore is the health score below which a group is listed under
// needs_attention.
const attentionScore = 50

type churchData struct {
	ChurchID       primitive.ObjectID          `json:"church_id"`
	Counts         metricsstore.Counts         `json:"counts"`
	Health         snapshotstore.ChurchAverage `json:"health"`
	Groups         []groupHealth               `json:"groups"`
	NeedsAttention []groupHealth               `json:"needs_attention"`
}

// ServeChurch reports a church's counts and the latest health of its
// active groups, healthiest first; unscored groups come last.
func (h *Handler) ServeChurch(w http.ResponseWriter, r *http.Request) {
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	avg, err := h.Snapshots.AverageByChurch(ctx, churchID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "average group health", err, "")
		return
	}
	groups, err := h.Groups.ListActive(ctx, &churchID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list groups", err, "")
		return
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
	sortByScore(rows)

	data := churchData{
		ChurchID:       churchID,
		Counts:         metricsstore.FetchDashboardCounts(ctx, h.DB, &churchID, h.Now().Add(-recentWindow)),
		Health:         avg,
		Groups:         rows,
		NeedsAttention: []groupHealth{},
	}
	for _, g := range rows {
		if g.Score != nil && *g.Score < attentionScore {
			data.NeedsAttention = append(data.NeedsAttention, g)
		}
	}

	h.Log.Debug("church dashboard served", zap.String("church", churchID.Hex()))
	apierrors.WriteData(w, data)
}

func sortByScore(rows []groupHealth) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Score, rows[j].Score
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a > *b
	})
}
