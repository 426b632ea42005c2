package metricsstore

import (
	"context"
	"time"

	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of totals shown on the dashboard.
type Counts struct {
	Branches          int64 `json:"branches"`
	Departments       int64 `json:"departments"`
	Groups            int64 `json:"groups"`
	ActiveGroups      int64 `json:"active_groups"`
	Users             int64 `json:"users"`
	Leaders           int64 `json:"leaders"`
	Members           int64 `json:"members"`
	ActiveMemberships int64 `json:"active_memberships"`
	RecentActivities  int64 `json:"recent_activities"`
	OpenGoals         int64 `json:"open_goals"`
}

// FetchDashboardCounts returns the counts for one church, or for every
// church when churchID is nil. Activities count from since onwards.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchDashboardCounts(ctx context.Context, db *mongo.Database, churchID *primitive.ObjectID, since time.Time) Counts {
	var out Counts

	scoped := func(extra bson.M) bson.M {
		f := bson.M{}
		if churchID != nil {
			f["church_id"] = *churchID
		}
		for k, v := range extra {
			f[k] = v
		}
		return f
	}
	count := func(dst *int64, coll string, extra bson.M) {
		if n, err := db.Collection(coll).CountDocuments(ctx, scoped(extra)); err == nil {
			*dst = n
		}
	}

	count(&out.Branches, "branches", nil)
	count(&out.Departments, "departments", nil)
	count(&out.Groups, "groups", nil)
	count(&out.ActiveGroups, "groups", bson.M{"status": models.StatusActive})
	count(&out.Users, "users", bson.M{"role": bson.M{"$ne": models.RoleSuperAdmin}})
	count(&out.Leaders, "users", bson.M{"role": models.RoleLeader})
	count(&out.Members, "users", bson.M{"role": models.RoleMember})
	count(&out.ActiveMemberships, "group_memberships", bson.M{"active": true})
	count(&out.RecentActivities, "activities", bson.M{"cancelled": false, "date": bson.M{"$gte": since.UTC()}})
	count(&out.OpenGoals, "goals", bson.M{"status": bson.M{"$in": bson.A{models.GoalPlanned, models.GoalInProgress}}})

	return out
}
