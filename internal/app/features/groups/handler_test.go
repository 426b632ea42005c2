package groups_test

import (
	"net/http"
	"testing"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/groups"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func router(t *testing.T, db *mongo.Database) chi.Router {
	t.Helper()
	logger := zap.NewNop()
	h := groups.NewHandler(db, apierrors.NewErrorLogger(logger), nil, logger)
	return groups.Routes(h, testutil.SessionManager(t))
}

func do(r chi.Router, req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type groupPage struct {
	Items []struct {
		models.Group
		MemberCount int64 `json:"member_count"`
	} `json:"items"`
}

func TestGroups_CreateWithLeaderAndSanitizedDescription(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	leader := fx.CreateLeader(ctx, "Lydia Leader", "lydia@example.org", church.ID)
	pastor := testutil.ChurchUser(models.RolePastor, church.ID)
	r := router(t, db)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/", map[string]string{
		"name":        "Tuesday Bible Study",
		"description": `<p>Romans</p><script>alert(1)</script>`,
		"meeting_day": "tuesday",
		"leader_id":   leader.ID.Hex(),
	})
	rec := do(r, testutil.WithUser(req, pastor))
	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertNotContains(t, "<script>")
	var g struct {
		models.Group
		MemberCount int64 `json:"member_count"`
	}
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &g)
	if g.MemberCount != 1 {
		t.Errorf("member_count = %d, want 1", g.MemberCount)
	}
	var m models.GroupMembership
	if err := db.Collection("group_memberships").FindOne(ctx, bson.M{"group_id": g.ID}).Decode(&m); err != nil {
		t.Fatalf("leader membership: %v", err)
	}
	if m.UserID != leader.ID || m.Role != models.GroupRoleLeader {
		t.Errorf("membership = %+v", m)
	}

	req = testutil.NewJSONRequest(t, http.MethodPost, "/", map[string]string{"name": "tuesday bible study"})
	do(r, testutil.WithUser(req, pastor)).AssertStatus(t, http.StatusConflict)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/", map[string]string{"name": "Other", "meeting_day": "someday"})
	do(r, testutil.WithUser(req, pastor)).AssertStatus(t, http.StatusBadRequest)

	leaderUser := testutil.SessionUserFor(leader)
	req = testutil.NewJSONRequest(t, http.MethodPost, "/", map[string]string{"name": "Mine"})
	do(r, testutil.WithUser(req, leaderUser)).AssertStatus(t, http.StatusForbidden)
}

func TestGroups_ListScopedByRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	alpha := fx.CreateGroup(ctx, "Alpha", church.ID)
	beta := fx.CreateGroup(ctx, "Beta", church.ID)
	gamma := fx.CreateGroup(ctx, "Gamma", church.ID)
	leader := fx.CreateLeader(ctx, "Lydia Leader", "lydia@example.org", church.ID)
	member := fx.CreateMember(ctx, "Mark Member", "mark@example.org", church.ID)
	fx.CreateGroupMembership(ctx, leader.ID, alpha.ID, church.ID, models.GroupRoleLeader)
	fx.CreateGroupMembership(ctx, member.ID, alpha.ID, church.ID, models.GroupRoleMember)
	fx.CreateGroupMembership(ctx, member.ID, beta.ID, church.ID, models.GroupRoleMember)
	r := router(t, db)

	tests := []struct {
		name string
		user *models.User
		want []string
	}{
		{"admin sees all", nil, []string{"Alpha", "Beta", "Gamma"}},
		{"leader sees led groups", &leader, []string{"Alpha"}},
		{"member sees own groups", &member, []string{"Alpha", "Beta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			su := testutil.ChurchUser(models.RoleAdmin, church.ID)
			if tt.user != nil {
				su = testutil.SessionUserFor(*tt.user)
			}
			rec := do(r, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/"), su))
			rec.AssertStatus(t, http.StatusOK)
			var page groupPage
			testutil.DecodeEnvelope(t, rec.ResponseRecorder, &page)
			if len(page.Items) != len(tt.want) {
				t.Fatalf("got %d groups, want %v", len(page.Items), tt.want)
			}
			for i, name := range tt.want {
				if page.Items[i].Name != name {
					t.Errorf("item %d = %s, want %s", i, page.Items[i].Name, name)
				}
			}
			if page.Items[0].Name == "Alpha" && page.Items[0].MemberCount != 2 {
				t.Errorf("Alpha member_count = %d, want 2", page.Items[0].MemberCount)
			}
		})
	}

	// members open their own groups only
	mu := testutil.SessionUserFor(member)
	do(r, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/"+beta.ID.Hex()), mu)).AssertStatus(t, http.StatusOK)
	do(r, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/"+gamma.ID.Hex()), mu)).AssertStatus(t, http.StatusForbidden)
}

func TestGroups_RosterLifecycle(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	other := fx.CreateChurch(ctx, "Hope")
	g := fx.CreateGroup(ctx, "Alpha", church.ID)
	leader := fx.CreateLeader(ctx, "Lydia Leader", "lydia@example.org", church.ID)
	second := fx.CreateLeader(ctx, "Silas Leader", "silas@example.org", church.ID)
	member := fx.CreateMember(ctx, "Mark Member", "mark@example.org", church.ID)
	stranger := fx.CreateMember(ctx, "Dan Elsewhere", "dan@example.org", other.ID)
	fx.CreateGroupMembership(ctx, leader.ID, g.ID, church.ID, models.GroupRoleLeader)
	lead := testutil.SessionUserFor(leader)
	admin := testutil.ChurchUser(models.RoleAdmin, church.ID)
	r := router(t, db)
	base := "/" + g.ID.Hex() + "/members"

	add := func(u *models.User, role string) *http.Request {
		return testutil.NewJSONRequest(t, http.MethodPost, base, map[string]string{"user_id": u.ID.Hex(), "role": role})
	}

	do(r, testutil.WithUser(add(&member, ""), lead)).AssertStatus(t, http.StatusCreated)
	do(r, testutil.WithUser(add(&member, ""), lead)).AssertStatus(t, http.StatusConflict)
	do(r, testutil.WithUser(add(&stranger, ""), lead)).AssertStatus(t, http.StatusBadRequest)

	// leaders cannot appoint leaders; staff hit the one-leader rule
	do(r, testutil.WithUser(add(&second, "leader"), lead)).AssertStatus(t, http.StatusForbidden)
	do(r, testutil.WithUser(add(&second, "leader"), admin)).AssertStatus(t, http.StatusConflict)
	do(r, testutil.WithUser(add(&second, "assistant-leader"), lead)).AssertStatus(t, http.StatusCreated)

	req := testutil.NewJSONRequest(t, http.MethodPut, base+"/"+member.ID.Hex()+"/role", map[string]string{"role": "assistant-leader"})
	do(r, testutil.WithUser(req, lead)).AssertStatus(t, http.StatusOK)

	do(r, testutil.WithUser(testutil.NewRequest(http.MethodPost, base+"/"+member.ID.Hex()+"/deactivate"), lead)).AssertStatus(t, http.StatusOK)

	rec := do(r, testutil.WithUser(testutil.NewRequest(http.MethodGet, base), lead))
	rec.AssertStatus(t, http.StatusOK)
	var roster []struct {
		models.GroupMembership
		FullName string `json:"full_name"`
	}
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &roster)
	if len(roster) != 2 {
		t.Fatalf("active roster = %d, want 2", len(roster))
	}
	if roster[0].FullName == "" {
		t.Errorf("roster entries carry no names")
	}

	rec = do(r, testutil.WithUser(testutil.NewRequest(http.MethodGet, base+"?all=true"), lead))
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &roster)
	if len(roster) != 3 {
		t.Fatalf("full roster = %d, want 3", len(roster))
	}

	// rejoining reactivates the same document
	do(r, testutil.WithUser(add(&member, ""), lead)).AssertStatus(t, http.StatusCreated)
	n, _ := db.Collection("group_memberships").CountDocuments(ctx, bson.M{"group_id": g.ID, "user_id": member.ID})
	if n != 1 {
		t.Errorf("%d membership documents after rejoin, want 1", n)
	}

	do(r, testutil.WithUser(testutil.NewRequest(http.MethodDelete, base+"/"+member.ID.Hex()), lead)).AssertStatus(t, http.StatusOK)
	do(r, testutil.WithUser(testutil.NewRequest(http.MethodDelete, base+"/"+member.ID.Hex()), lead)).AssertStatus(t, http.StatusNotFound)
}

func TestGroups_LeaderOfAnotherGroupForbidden(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	alpha := fx.CreateGroup(ctx, "Alpha", church.ID)
	beta := fx.CreateGroup(ctx, "Beta", church.ID)
	leader := fx.CreateLeader(ctx, "Lydia Leader", "lydia@example.org", church.ID)
	member := fx.CreateMember(ctx, "Mark Member", "mark@example.org", church.ID)
	fx.CreateGroupMembership(ctx, leader.ID, alpha.ID, church.ID, models.GroupRoleLeader)
	r := router(t, db)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/"+beta.ID.Hex()+"/members", map[string]string{"user_id": member.ID.Hex()})
	rec := do(r, testutil.WithUser(req, testutil.SessionUserFor(leader)))
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "manage_roster")
}

func TestGroups_UpdateAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	other := fx.CreateChurch(ctx, "Hope")
	foreignBranch := fx.CreateBranch(ctx, "Hope North", other.ID)
	g := fx.CreateGroup(ctx, "Alpha", church.ID)
	m := fx.CreateMember(ctx, "Mark Member", "mark@example.org", church.ID)
	fx.CreateGroupMembership(ctx, m.ID, g.ID, church.ID, models.GroupRoleMember)
	fx.CreateGoal(ctx, g.ID, church.ID, "Grow", models.GoalPlanned)
	admin := testutil.ChurchUser(models.RoleAdmin, church.ID)
	r := router(t, db)

	req := testutil.NewJSONRequest(t, http.MethodPatch, "/"+g.ID.Hex(), map[string]string{"status": "disabled", "category": "youth"})
	rec := do(r, testutil.WithUser(req, admin))
	rec.AssertStatus(t, http.StatusOK)
	var out models.Group
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &out)
	if out.Status != models.StatusDisabled || out.Category != "youth" {
		t.Errorf("updated = %+v", out)
	}

	req = testutil.NewJSONRequest(t, http.MethodPatch, "/"+g.ID.Hex(), map[string]string{"branch_id": foreignBranch.ID.Hex()})
	do(r, testutil.WithUser(req, admin)).AssertStatus(t, http.StatusBadRequest)

	do(r, testutil.WithUser(testutil.NewRequest(http.MethodDelete, "/"+g.ID.Hex()), admin)).AssertStatus(t, http.StatusOK)
	for _, coll := range []string{"group_memberships", "goals"} {
		n, err := db.Collection(coll).CountDocuments(ctx, bson.M{"group_id": g.ID})
		if err != nil {
			t.Fatalf("count %s: %v", coll, err)
		}
		if n != 0 {
			t.Errorf("%d %s survived group delete", n, coll)
		}
	}
	do(r, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/"+g.ID.Hex()), admin)).AssertStatus(t, http.StatusNotFound)
}
