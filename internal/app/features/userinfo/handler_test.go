package userinfo_test

import (
	"net/http"
	"slices"
	"testing"

	"github.com/dalemusser/flockhub/internal/app/features/userinfo"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestServeMe_Anonymous(t *testing.T) {
	rec := testutil.NewRecorder()
	userinfo.NewHandler().ServeMe(rec, testutil.NewRequest(http.MethodGet, "/auth/me"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestServeMe_Leader(t *testing.T) {
	church := primitive.NewObjectID()
	u := testutil.ChurchUser(models.RoleLeader, church)
	req := testutil.WithUser(testutil.NewRequest(http.MethodGet, "/auth/me"), u)
	rec := testutil.NewRecorder()
	userinfo.NewHandler().ServeMe(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var data struct {
		ID           string   `json:"id"`
		ChurchID     string   `json:"church_id"`
		Capabilities []string `json:"capabilities"`
	}
	testutil.DecodeEnvelope(t, rec.ResponseRecorder, &data)
	if data.ID != u.ID || data.ChurchID != church.Hex() {
		t.Errorf("got %+v", data)
	}
	if !slices.Contains(data.Capabilities, "mark_attendance") {
		t.Errorf("leader capabilities %v missing mark_attendance", data.Capabilities)
	}
	if slices.Contains(data.Capabilities, "manage_users") {
		t.Errorf("leader capabilities %v include manage_users", data.Capabilities)
	}
}
