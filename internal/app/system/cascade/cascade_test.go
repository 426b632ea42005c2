package cascade_test

import (
	"testing"
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/cascade"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func count(t *testing.T, db *mongo.Database, coll string, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("count %s: %v", coll, err)
	}
	return n
}

func TestChurch_RemovesEverythingScoped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	doomed := fx.CreateChurch(ctx, "Doomed")
	kept := fx.CreateChurch(ctx, "Kept")
	for _, c := range []models.Church{doomed, kept} {
		fx.CreateBranch(ctx, "Main", c.ID)
		g := fx.CreateGroup(ctx, "Youth", c.ID)
		m := fx.CreateMember(ctx, "Member "+c.Name, c.Name+"@test.org", c.ID)
		fx.CreateGroupMembership(ctx, m.ID, g.ID, c.ID, models.GroupRoleMember)
		fx.CreateActivity(ctx, g.ID, c.ID, time.Now().UTC(), nil)
		fx.CreateGoal(ctx, g.ID, c.ID, "Grow", models.GoalPlanned)
	}

	ok, err := cascade.New(db, zap.NewNop()).Church(ctx, doomed.ID)
	if err != nil {
		t.Fatalf("Church: %v", err)
	}
	if !ok {
		t.Fatal("Church reported nothing deleted")
	}

	for _, coll := range []string{"branches", "groups", "users", "group_memberships", "activities", "goals"} {
		if n := count(t, db, coll, bson.M{"church_id": doomed.ID}); n != 0 {
			t.Errorf("%s left for deleted church: %d", coll, n)
		}
		if n := count(t, db, coll, bson.M{"church_id": kept.ID}); n == 0 {
			t.Errorf("%s of other church were removed", coll)
		}
	}
	if n := count(t, db, "churches", bson.M{}); n != 1 {
		t.Errorf("churches = %d, want 1", n)
	}

	ok, err = cascade.New(db, zap.NewNop()).Church(ctx, doomed.ID)
	if err != nil || ok {
		t.Errorf("second delete = %v, %v; want false, nil", ok, err)
	}
}

func TestGroup_RemovesDependents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	g := fx.CreateGroup(ctx, "Youth", church.ID)
	other := fx.CreateGroup(ctx, "Choir", church.ID)
	m := fx.CreateMember(ctx, "Ada", "ada@test.org", church.ID)
	for _, grp := range []models.Group{g, other} {
		fx.CreateGroupMembership(ctx, m.ID, grp.ID, church.ID, models.GroupRoleMember)
		fx.CreateActivity(ctx, grp.ID, church.ID, time.Now().UTC(), nil)
		fx.CreateGoal(ctx, grp.ID, church.ID, "Grow", models.GoalPlanned)
	}

	d := cascade.New(db, zap.NewNop())
	if ok, err := d.Group(ctx, church.ID, g.ID); err != nil || !ok {
		t.Fatalf("Group = %v, %v", ok, err)
	}
	for _, coll := range []string{"group_memberships", "activities", "goals"} {
		if n := count(t, db, coll, bson.M{"group_id": g.ID}); n != 0 {
			t.Errorf("%s left for deleted group: %d", coll, n)
		}
		if n := count(t, db, coll, bson.M{"group_id": other.ID}); n != 1 {
			t.Errorf("%s of other group = %d, want 1", coll, n)
		}
	}

	// wrong church: nothing happens
	if ok, err := d.Group(ctx, fx.CreateChurch(ctx, "Elsewhere").ID, other.ID); err != nil || ok {
		t.Errorf("cross-church Group = %v, %v; want false, nil", ok, err)
	}
}

func TestUser_RemovesMemberships(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	g := fx.CreateGroup(ctx, "Youth", church.ID)
	m := fx.CreateMember(ctx, "Ada", "ada@test.org", church.ID)
	fx.CreateGroupMembership(ctx, m.ID, g.ID, church.ID, models.GroupRoleMember)

	if ok, err := cascade.New(db, zap.NewNop()).User(ctx, church.ID, m.ID); err != nil || !ok {
		t.Fatalf("User = %v, %v", ok, err)
	}
	if n := count(t, db, "group_memberships", bson.M{"user_id": m.ID}); n != 0 {
		t.Errorf("memberships left: %d", n)
	}
}
