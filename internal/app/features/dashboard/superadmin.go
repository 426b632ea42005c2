// internal/app/features/dashboard/superadmin.go
package dashboard

import (
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	metricsstore "github.com/dalemusser/flockhub/internal/app/store/metrics"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

type platformData struct {
	Churches       int64               `json:"churches"`
	ActiveChurches int64               `json:"active_churches"`
	Counts         metricsstore.Counts `json:"counts"`
}

// ServePlatform reports totals over every church.
func (h *Handler) ServePlatform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var data platformData
	var err error
	if data.Churches, err = h.Churches.Count(ctx, bson.M{}); err != nil {
		h.ErrLog.LogServerError(w, r, "count churches", err, "")
		return
	}
	if data.ActiveChurches, err = h.Churches.Count(ctx, bson.M{"status": models.StatusActive}); err != nil {
		h.ErrLog.LogServerError(w, r, "count churches", err, "")
		return
	}
	data.Counts = metricsstore.FetchDashboardCounts(ctx, h.DB, nil, h.Now().Add(-recentWindow))

	h.Log.Debug("platform dashboard served")
	apierrors.WriteData(w, data)
}
