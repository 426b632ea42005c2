package logout_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/flockhub/internal/app/features/logout"
	"github.com/dalemusser/flockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestHandleLogout_ExpiresCookie(t *testing.T) {
	sm := testutil.SessionManager(t)
	h := logout.NewHandler(sm, nil, zap.NewNop())

	req := testutil.NewRequest(http.MethodPost, "/auth/logout")
	req = testutil.WithUser(req, testutil.ChurchUser("member", primitive.NewObjectID()))
	rec := testutil.NewRecorder()
	h.HandleLogout(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("MaxAge = %d, want negative (expired)", cookies[0].MaxAge)
	}
}

func TestRoutes_RequireSignedIn(t *testing.T) {
	sm := testutil.SessionManager(t)
	r := logout.Routes(logout.NewHandler(sm, nil, zap.NewNop()), sm)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodPost, "/"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}
