package groupdata_test

import (
	"testing"
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/analytics"
	"github.com/dalemusser/flockhub/internal/app/system/groupdata"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLoader_Health(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	loader := groupdata.NewLoader(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	group := fixtures.CreateGroup(ctx, "Youth", church.ID)
	a := fixtures.CreateMember(ctx, "A", "a@example.com", church.ID)
	b := fixtures.CreateMember(ctx, "B", "b@example.com", church.ID)
	fixtures.CreateGroupMembership(ctx, a.ID, group.ID, church.ID, models.GroupRoleLeader)
	fixtures.CreateGroupMembership(ctx, b.ID, group.ID, church.ID, models.GroupRoleMember)

	now := time.Now().UTC()
	planned := []primitive.ObjectID{a.ID, b.ID}
	for i := 1; i <= 4; i++ {
		fixtures.CreateActivity(ctx, group.ID, church.ID, now.AddDate(0, 0, -7*i), planned,
			models.AttendancePresent, models.AttendancePresent)
	}
	fixtures.CreateGoal(ctx, group.ID, church.ID, "Grow", models.GoalCompleted)

	d, err := loader.Load(ctx, group.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(d.Members) != 2 || len(d.Activities) != 4 || len(d.Goals) != 1 {
		t.Fatalf("loaded %d members, %d activities, %d goals", len(d.Members), len(d.Activities), len(d.Goals))
	}

	rep, err := loader.Health(ctx, group.ID, analytics.DefaultHealthWeights(), now, analytics.DefaultPeriodDays)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if rep.Inputs.AttendanceRate != 100 || rep.Inputs.GoalCompletionRate != 100 {
		t.Errorf("inputs = %+v", rep.Inputs)
	}
	if rep.ActiveMembers != 2 {
		t.Errorf("ActiveMembers = %d, want 2", rep.ActiveMembers)
	}

	snap := groupdata.Snapshot(group, rep, now)
	if snap.GroupID != group.ID || snap.ChurchID != church.ID || snap.Score != rep.Score.Score {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLoader_EmptyGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	loader := groupdata.NewLoader(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rep, err := loader.Health(ctx, primitive.NewObjectID(), analytics.DefaultHealthWeights(), time.Now(), 30)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if rep.Score.Score != 0 || rep.RetentionRate != 100 {
		t.Errorf("empty group report = %+v", rep)
	}
}
