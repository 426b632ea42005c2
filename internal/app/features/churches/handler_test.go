package churches_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/flockhub/internal/app/features/churches"
	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
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
	h := churches.NewHandler(db, apierrors.NewErrorLogger(logger), nil, logger)
	return churches.Routes(h, testutil.SessionManager(t))
}

func do(t *testing.T, r chi.Router, req *http.Request) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChurches_CreateGetUpdate(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	r := router(t, db)
	root := testutil.SuperAdminUser()

	req := testutil.NewJSONRequest(t, http.MethodPost, "/", map[string]string{
		"name":      "  Grace   Downtown ",
		"time_zone": "America/Chicago",
	})
	rec := do(t, r, testutil.WithUser(req, root))
	rec.AssertStatus(t, http.StatusCreated)

	var created models.Church
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &created)
	if created.Name != "Grace Downtown" || created.Slug != "grace-downtown" || created.Status != models.StatusActive {
		t.Fatalf("created = %+v", created)
	}

	rec = do(t, r, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/"+created.ID.Hex()), root))
	rec.AssertStatus(t, http.StatusOK)

	req = testutil.NewJSONRequest(t, http.MethodPatch, "/"+created.ID.Hex(), map[string]string{"status": "disabled"})
	rec = do(t, r, testutil.WithUser(req, root))
	rec.AssertStatus(t, http.StatusOK)
	var updated models.Church
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &updated)
	if updated.Status != models.StatusDisabled {
		t.Errorf("status = %q, want disabled", updated.Status)
	}

	// same name again conflicts
	req = testutil.NewJSONRequest(t, http.MethodPost, "/", map[string]string{
		"name":      "Grace Downtown",
		"time_zone": "America/Chicago",
	})
	do(t, r, testutil.WithUser(req, root)).AssertStatus(t, http.StatusConflict)
}

func TestChurches_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := router(t, db)
	root := testutil.SuperAdminUser()

	tests := []struct {
		name string
		body map[string]string
	}{
		{"blank name", map[string]string{"name": "  ", "time_zone": "UTC"}},
		{"bad time zone", map[string]string{"name": "Grace", "time_zone": "Mars/Olympus"}},
		{"missing time zone", map[string]string{"name": "Grace"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/", tt.body)
			rec := do(t, r, testutil.WithUser(req, root))
			rec.AssertStatus(t, http.StatusBadRequest)
			env := testutil.DecodeEnvelope(t, rec.ResponseRecorder, nil)
			if env.Success || env.Error == "" {
				t.Errorf("envelope = %+v", env)
			}
		})
	}
}

func TestChurches_ForbiddenForChurchStaff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	church := testutil.NewFixtures(t, db).CreateChurch(ctx, "Grace")

	r := router(t, db)
	admin := testutil.ChurchUser(models.RoleAdmin, church.ID)
	do(t, r, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/"), admin)).AssertStatus(t, http.StatusForbidden)
	do(t, r, testutil.NewRequest(http.MethodGet, "/")).AssertStatus(t, http.StatusUnauthorized)
}

func TestChurches_ListPaged(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	for _, n := range []string{"Alpha", "Bethel", "Calvary"} {
		fx.CreateChurch(ctx, n)
	}

	r := router(t, db)
	root := testutil.SuperAdminUser()
	rec := do(t, r, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/?limit=2"), root))
	rec.AssertStatus(t, http.StatusOK)

	var page struct {
		Items []models.Church `json:"items"`
		Page  struct {
			HasNext    bool   `json:"has_next"`
			NextCursor string `json:"next_cursor"`
		} `json:"page"`
	}
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &page)
	if len(page.Items) != 2 || !page.Page.HasNext || page.Page.NextCursor == "" {
		t.Fatalf("first page = %+v", page)
	}
	if page.Items[0].Name != "Alpha" {
		t.Errorf("first item = %q, want Alpha", page.Items[0].Name)
	}

	rec = do(t, r, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/?limit=2&after="+page.Page.NextCursor), root))
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &page)
	if len(page.Items) != 1 || page.Items[0].Name != "Calvary" {
		t.Errorf("second page = %+v", page.Items)
	}

	do(t, r, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/?limit=0"), root)).AssertStatus(t, http.StatusBadRequest)
}

func TestChurches_DeleteCascades(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	fx.CreateGroup(ctx, "Youth", church.ID)

	r := router(t, db)
	root := testutil.SuperAdminUser()
	do(t, r, testutil.WithUser(testutil.NewRequest(http.MethodDelete, "/"+church.ID.Hex()), root)).AssertStatus(t, http.StatusOK)

	n, err := db.Collection("groups").CountDocuments(ctx, bson.M{"church_id": church.ID})
	if err != nil {
		t.Fatalf("count groups: %v", err)
	}
	if n != 0 {
		t.Errorf("groups left = %d, want 0", n)
	}
	do(t, r, testutil.WithUser(testutil.NewRequest(http.MethodDelete, "/"+church.ID.Hex()), root)).AssertStatus(t, http.StatusNotFound)
	do(t, r, testutil.WithUser(testutil.NewRequest(http.MethodDelete, "/nope"), root)).AssertStatus(t, http.StatusBadRequest)
}
