package auditlog_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/flockhub/internal/app/features/auditlog"
	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type page struct {
	Items []struct {
		EventType  string `json:"event_type"`
		ActorName  string `json:"actor_name"`
		TargetName string `json:"target_name"`
	} `json:"items"`
	Page       int   `json:"page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func setup(t *testing.T) (http.Handler, models.Church, *auth.SessionUser) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	grace := fx.CreateChurch(ctx, "Grace")
	hope := fx.CreateChurch(ctx, "Hope")
	admin := fx.CreateUser(ctx, "Ada Admin", "ada@example.org", models.RoleAdmin, &grace.ID)
	member := fx.CreateMember(ctx, "Mark Member", "mark@example.org", grace.ID)

	store := audit.New(db)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{CreatedAt: base, ChurchID: &grace.ID, Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: &admin.ID, ActorID: &admin.ID, Success: true},
		{CreatedAt: base.Add(time.Hour), ChurchID: &grace.ID, Category: audit.CategoryAdmin, EventType: audit.EventUserCreated, UserID: &member.ID, ActorID: &admin.ID, Success: true},
		{CreatedAt: base.AddDate(0, 0, 2), ChurchID: &grace.ID, Category: audit.CategoryAdmin, EventType: audit.EventGroupCreated, ActorID: &admin.ID, Success: true},
		{CreatedAt: base, ChurchID: &hope.ID, Category: audit.CategoryAdmin, EventType: audit.EventGroupDeleted, Success: true},
		{CreatedAt: base, Category: audit.CategoryAdmin, EventType: audit.EventChurchCreated, Success: true},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("log event: %v", err)
		}
	}

	logger := zap.NewNop()
	h := auditlog.NewHandler(db, apierrors.NewErrorLogger(logger), logger)
	r := chi.NewRouter()
	r.Mount("/audit", auditlog.Routes(h, testutil.SessionManager(t)))
	return r, grace, testutil.SessionUserFor(admin)
}

func get(t *testing.T, r http.Handler, target string, u *auth.SessionUser) *testutil.ResponseRecorder {
	t.Helper()
	req := testutil.NewRequest(http.MethodGet, target)
	if u != nil {
		req = testutil.WithUser(req, u)
	}
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestServeList_ChurchScoped(t *testing.T) {
	r, _, admin := setup(t)

	rec := get(t, r, "/audit", admin)
	rec.AssertStatus(t, http.StatusOK)
	var p page
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &p)
	if p.Total != 3 || len(p.Items) != 3 {
		t.Fatalf("total = %d items = %d, want 3 church events", p.Total, len(p.Items))
	}
	// newest first
	if p.Items[0].EventType != audit.EventGroupCreated {
		t.Errorf("first event = %s", p.Items[0].EventType)
	}
	if p.Items[1].ActorName != "Ada Admin" || p.Items[1].TargetName != "Mark Member" {
		t.Errorf("names = %q -> %q", p.Items[1].ActorName, p.Items[1].TargetName)
	}
}

func TestServeList_Filters(t *testing.T) {
	r, _, admin := setup(t)

	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{"category", "?category=auth", 1},
		{"event type", "?event_type=user_created", 1},
		{"start date", "?start_date=2026-03-11", 1},
		{"end date is inclusive", "?end_date=2026-03-10", 2},
		{"affected user", "?user=" + admin.ID, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, r, "/audit"+tt.query, admin)
			rec.AssertStatus(t, http.StatusOK)
			var p page
			testutil.DecodeEnvelope(t, rec.ResponseRecorder, &p)
			if p.Total != tt.want {
				t.Errorf("total = %d, want %d", p.Total, tt.want)
			}
		})
	}

	for _, q := range []string{"?category=security", "?page=0", "?limit=x", "?start_date=March", "?user=zz"} {
		get(t, r, "/audit"+q, admin).AssertStatus(t, http.StatusBadRequest)
	}
}

func TestServeList_Paging(t *testing.T) {
	r, _, admin := setup(t)

	rec := get(t, r, "/audit?limit=2&page=2", admin)
	rec.AssertStatus(t, http.StatusOK)
	var p page
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &p)
	if p.Page != 2 || p.TotalPages != 2 || len(p.Items) != 1 {
		t.Errorf("page = %+v", p)
	}
}

func TestServeList_Superadmin(t *testing.T) {
	r, grace, _ := setup(t)

	rec := get(t, r, "/audit", testutil.SuperAdminUser())
	var p page
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &p)
	if p.Total != 5 {
		t.Errorf("superadmin total = %d, want 5", p.Total)
	}

	rec = get(t, r, "/audit?church="+grace.ID.Hex(), testutil.SuperAdminUser())
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &p)
	if p.Total != 3 {
		t.Errorf("superadmin church total = %d, want 3", p.Total)
	}
}

func TestRoutes_Access(t *testing.T) {
	r, grace, _ := setup(t)

	get(t, r, "/audit", nil).AssertStatus(t, http.StatusUnauthorized)

	pastor := testutil.ChurchUser(models.RolePastor, grace.ID)
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/audit"), pastor))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	other := testutil.ChurchUser(models.RoleAdmin, primitive.NewObjectID())
	r.ServeHTTP(rec, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/audit/categories"), other))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, audit.EventAttendanceMarked)
}
