package login_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/login"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/metrics"
	"github.com/dalemusser/flockhub/internal/app/system/ratelimit"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(t *testing.T, db *mongo.Database, limiter *ratelimit.LoginLimiter) *login.Handler {
	t.Helper()
	logger := zap.NewNop()
	return login.NewHandler(
		userstore.New(db),
		testutil.SessionManager(t),
		apierrors.NewErrorLogger(logger),
		auditlog.New(audit.New(db), logger, auditlog.Config{}),
		limiter,
		metrics.New(),
		logger,
	)
}

func post(t *testing.T, h *login.Handler, email, password string) *testutil.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	rec := testutil.NewRecorder()
	h.HandleLogin(rec, req)
	return rec
}

func auditCount(t *testing.T, db *mongo.Database, eventType string) int64 {
	t.Helper()
	n, err := db.Collection("audit_log").CountDocuments(context.Background(), bson.M{"event_type": eventType})
	if err != nil {
		t.Fatalf("count audit events: %v", err)
	}
	return n
}

func TestHandleLogin_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	u := fx.CreateUserWithPassword(ctx, "Ada Lovelace", "ada@grace.org", models.RoleLeader, &church.ID)

	h := newHandler(t, db, nil)
	rec := post(t, h, "ada@grace.org", testutil.TestPassword)
	rec.AssertStatus(t, http.StatusOK)

	var data struct {
		User struct {
			ID       string `json:"id"`
			Role     string `json:"role"`
			ChurchID string `json:"church_id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	env := testutil.DecodeEnvelope(t, rec.ResponseRecorder, &data)
	if !env.Success {
		t.Fatalf("success = false, error %q", env.Error)
	}
	if data.User.ID != u.ID.Hex() || data.User.ChurchID != church.ID.Hex() {
		t.Errorf("user = %+v", data.User)
	}
	if data.Token == "" {
		t.Error("expected a bearer token")
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected a session cookie")
	}

	got, err := userstore.New(db).GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LastLoginAt == nil {
		t.Error("LastLoginAt not recorded")
	}
	if n := auditCount(t, db, audit.EventLoginSuccess); n != 1 {
		t.Errorf("login_success events = %d, want 1", n)
	}
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	fx.CreateUserWithPassword(ctx, "Ada Lovelace", "ada@grace.org", models.RoleMember, &church.ID)

	h := newHandler(t, db, nil)

	tests := []struct {
		name, email, password, event string
	}{
		{"wrong password", "ada@grace.org", "nope", audit.EventLoginFailedWrongPassword},
		{"unknown email", "nobody@grace.org", testutil.TestPassword, audit.EventLoginFailedUserNotFound},
	}
	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.email, tt.password)
			rec.AssertStatus(t, http.StatusUnauthorized)
			bodies = append(bodies, rec.Body.String())
			if n := auditCount(t, db, tt.event); n != 1 {
				t.Errorf("%s events = %d, want 1", tt.event, n)
			}
		})
	}
	if len(bodies) == 2 && bodies[0] != bodies[1] {
		t.Errorf("responses reveal which accounts exist:\n%s\n%s", bodies[0], bodies[1])
	}
}

func TestHandleLogin_DisabledAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	church := fx.CreateChurch(ctx, "Grace")
	u := fx.CreateUserWithPassword(ctx, "Ada Lovelace", "ada@grace.org", models.RoleMember, &church.ID)
	status := models.StatusDisabled
	if _, err := userstore.New(db).Update(ctx, church.ID, u.ID, userstore.Update{Status: &status}); err != nil {
		t.Fatalf("disable user: %v", err)
	}

	rec := post(t, newHandler(t, db, nil), "ada@grace.org", testutil.TestPassword)
	rec.AssertStatus(t, http.StatusForbidden)
	if n := auditCount(t, db, audit.EventLoginFailedUserDisabled); n != 1 {
		t.Errorf("disabled events = %d, want 1", n)
	}
}

func TestHandleLogin_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(t, db, nil)

	rec := post(t, h, "not-an-email", "x")
	rec.AssertStatus(t, http.StatusBadRequest)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", "{")
	rec = testutil.NewRecorder()
	h.HandleLogin(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleLogin_RateLimited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	limiter := ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	defer limiter.Stop()
	h := newHandler(t, db, limiter)

	for i := 0; i < 2; i++ {
		post(t, h, "ada@grace.org", "wrong").AssertStatus(t, http.StatusUnauthorized)
	}
	rec := post(t, h, "ada@grace.org", "wrong")
	rec.AssertStatus(t, http.StatusTooManyRequests)
	if n := auditCount(t, db, audit.EventLoginFailedRateLimit); n != 1 {
		t.Errorf("rate limit events = %d, want 1", n)
	}
}
