package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/flockhub/internal/app/store/audit"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, primitive.NewObjectID(), nil, "password", "a@b.org")
	logger.Logout(ctx, req, primitive.NewObjectID(), nil)
	logger.Admin(ctx, req, primitive.NewObjectID(), nil, audit.EventGroupCreated, primitive.NewObjectID(), nil)
}

func TestLogger_Modes(t *testing.T) {
	tests := []struct {
		name   string
		cfg    auditlog.Config
		wantDB int
	}{
		{"default stores", auditlog.Config{}, 1},
		{"db", auditlog.Config{Auth: auditlog.ModeDB}, 1},
		{"log only", auditlog.Config{Auth: auditlog.ModeLog}, 0},
		{"off", auditlog.Config{Auth: auditlog.ModeOff}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			store := audit.New(db)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			logger := auditlog.New(store, zap.NewNop(), tt.cfg)
			user := primitive.NewObjectID()
			logger.LoginSuccess(ctx, httptest.NewRequest("POST", "/auth/login", nil), user, nil, "password", "a@b.org")

			events, err := store.Query(ctx, audit.QueryFilter{UserID: &user})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(events) != tt.wantDB {
				t.Errorf("stored %d events, want %d", len(events), tt.wantDB)
			}
		})
	}
}

func TestLogger_LoginFailed_RecordsIPAndReason(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{})
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	logger.LoginFailed(ctx, req, audit.EventLoginFailedUserNotFound, nil, nil, "ghost@b.org", "no such user")

	events, err := store.Query(ctx, audit.QueryFilter{EventType: audit.EventLoginFailedUserNotFound})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Success || e.FailureReason != "no such user" || e.IP != "203.0.113.9" {
		t.Errorf("event = %+v", e)
	}
	if e.Details["email"] != "ghost@b.org" {
		t.Errorf("email detail = %q", e.Details["email"])
	}
}

func TestLogger_AdminSeparateMode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: auditlog.ModeOff, Admin: auditlog.ModeDB})
	req := httptest.NewRequest("POST", "/", nil)
	actor := primitive.NewObjectID()
	target := primitive.NewObjectID()
	church := primitive.NewObjectID()

	logger.LoginSuccess(ctx, req, actor, &church, "password", "a@b.org")
	logger.UserChange(ctx, req, actor, target, &church, audit.EventUserCreated, map[string]string{"role": "leader"})

	events, err := store.Query(ctx, audit.QueryFilter{ChurchID: &church})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != audit.EventUserCreated {
		t.Fatalf("events = %+v", events)
	}
	if events[0].UserID == nil || *events[0].UserID != target {
		t.Errorf("user change should record the target user")
	}
}
