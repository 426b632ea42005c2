// Package groupdata loads what the analytics engine needs for one group
// and runs it. The stats endpoints, the health snapshot worker and
// flockctl share it.
package groupdata

import (
	"context"
	"fmt"
	"time"

	activitystore "github.com/dalemusser/flockhub/internal/app/store/activities"
	goalstore "github.com/dalemusser/flockhub/internal/app/store/goals"
	membershipstore "github.com/dalemusser/flockhub/internal/app/store/memberships"
	"github.com/dalemusser/flockhub/internal/app/system/analytics"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MaxHistory bounds how many of a group's most recent activities are
// loaded for engagement and health.
const MaxHistory = 500

// Data is one group's roster, activity history and goals. Cancelled
// activities are not loaded.
type Data struct {
	Members    []models.GroupMembership
	Activities []models.Activity
	Goals      []models.Goal
}

type Loader struct {
	Memberships *membershipstore.Store
	Activities  *activitystore.Store
	Goals       *goalstore.Store
}

func NewLoader(db *mongo.Database) *Loader {
	return &Loader{
		Memberships: membershipstore.New(db),
		Activities:  activitystore.New(db),
		Goals:       goalstore.New(db),
	}
}

// Members loads the full roster, former members included.
func (l *Loader) Members(ctx context.Context, groupID primitive.ObjectID) ([]models.GroupMembership, error) {
	ms, err := l.Memberships.ListByGroup(ctx, groupID, false)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return ms, nil
}

// History loads up to MaxHistory of the group's most recent activities
// within [start, end]; nil bounds are open. Cancelled activities are
// included so summaries can report them; the scorers skip them.
func (l *Loader) History(ctx context.Context, groupID primitive.ObjectID, start, end *time.Time) ([]models.Activity, error) {
	as, err := l.Activities.ListByGroup(ctx, groupID, activitystore.ListFilter{
		Start:            start,
		End:              end,
		IncludeCancelled: true,
		Limit:            MaxHistory,
	})
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	return as, nil
}

// Load fetches roster, history and goals of a group.
func (l *Loader) Load(ctx context.Context, groupID primitive.ObjectID) (Data, error) {
	var d Data
	var err error
	if d.Members, err = l.Members(ctx, groupID); err != nil {
		return Data{}, err
	}
	if d.Activities, err = l.History(ctx, groupID, nil, nil); err != nil {
		return Data{}, err
	}
	if d.Goals, err = l.Goals.ListByGroup(ctx, groupID, ""); err != nil {
		return Data{}, fmt.Errorf("load goals: %w", err)
	}
	return d, nil
}

// Health loads a group and scores it with w over periodDays ending at now.
func (l *Loader) Health(ctx context.Context, groupID primitive.ObjectID, w analytics.HealthWeights, now time.Time, periodDays int) (analytics.GroupHealthReport, error) {
	d, err := l.Load(ctx, groupID)
	if err != nil {
		return analytics.GroupHealthReport{}, err
	}
	return w.GroupHealth(d.Members, d.Activities, d.Goals, now, periodDays), nil
}

// Snapshot converts a health report into the stored snapshot of g.
func Snapshot(g models.Group, rep analytics.GroupHealthReport, now time.Time) models.GroupHealthSnapshot {
	return models.GroupHealthSnapshot{
		ChurchID:           g.ChurchID,
		GroupID:            g.ID,
		Score:              rep.Score.Score,
		AttendanceRate:     rep.Inputs.AttendanceRate,
		AverageEngagement:  rep.Inputs.AverageEngagement,
		GoalCompletionRate: rep.Inputs.GoalCompletionRate,
		ActivityFrequency:  rep.Inputs.ActivityFrequency,
		MemberGrowthRate:   rep.Inputs.MemberGrowthRate,
		RetentionRate:      rep.RetentionRate,
		PeriodDays:         rep.PeriodDays,
		ComputedAt:         now,
	}
}
