package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Calling it repeatedly on the same request accumulates parameters.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures inserts test documents directly, bypassing the stores.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert test %s: %v", coll, err)
	}
}

// CreateChurch creates an active church; the slug is derived from the name.
func (f *Fixtures) CreateChurch(ctx context.Context, name string) models.Church {
	f.t.Helper()
	now := time.Now().UTC()
	c := models.Church{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Slug:      primitive.NewObjectID().Hex(),
		TimeZone:  "America/Chicago",
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "churches", c)
	return c
}

// CreateBranch creates an active branch in churchID.
func (f *Fixtures) CreateBranch(ctx context.Context, name string, churchID primitive.ObjectID) models.Branch {
	f.t.Helper()
	now := time.Now().UTC()
	b := models.Branch{
		ID:        primitive.NewObjectID(),
		ChurchID:  churchID,
		Name:      name,
		NameCI:    text.Fold(name),
		City:      "Springfield",
		CityCI:    "springfield",
		TimeZone:  "America/Chicago",
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "branches", b)
	return b
}

// TestPassword is the password set on users created by CreateUserWithPassword.
const TestPassword = "correct horse battery"

// CreateUser creates an active user. churchID is nil only for superadmins.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string, churchID *primitive.ObjectID) models.User {
	f.t.Helper()
	return f.createUser(ctx, fullName, email, role, models.StatusActive, churchID, "")
}

// CreateUserWithPassword creates an active password user whose password
// is TestPassword.
func (f *Fixtures) CreateUserWithPassword(ctx context.Context, fullName, email, role string, churchID *primitive.ObjectID) models.User {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	return f.createUser(ctx, fullName, email, role, models.StatusActive, churchID, string(hash))
}

func (f *Fixtures) createUser(ctx context.Context, fullName, email, role, status string, churchID *primitive.ObjectID, hash string) models.User {
	f.t.Helper()
	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		ChurchID:     churchID,
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		Email:        email,
		PasswordHash: hash,
		AuthMethod:   models.AuthPassword,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch role {
	case models.RoleSuperAdmin:
		u.SetDetails(nil)
	case models.RoleAdmin:
		u.SetDetails(models.AdminDetails{})
	case models.RolePastor:
		u.SetDetails(models.PastorDetails{Title: "Pastor"})
	case models.RoleLeader:
		u.SetDetails(models.LeaderDetails{Ministry: "Small groups"})
	default:
		u.SetDetails(models.MemberDetails{MembershipDate: now.AddDate(-1, 0, 0)})
	}
	f.insert(ctx, "users", u)
	return u
}

// CreateSuperAdmin creates a superadmin with no church.
func (f *Fixtures) CreateSuperAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleSuperAdmin, nil)
}

// CreateLeader creates a leader in churchID.
func (f *Fixtures) CreateLeader(ctx context.Context, fullName, email string, churchID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleLeader, &churchID)
}

// CreateMember creates a member in churchID.
func (f *Fixtures) CreateMember(ctx context.Context, fullName, email string, churchID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleMember, &churchID)
}

// CreateDisabledUser creates a disabled member in churchID.
func (f *Fixtures) CreateDisabledUser(ctx context.Context, fullName, email string, churchID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.createUser(ctx, fullName, email, models.RoleMember, models.StatusDisabled, &churchID, "")
}

// CreateGroup creates an active group in churchID.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, churchID primitive.ObjectID) models.Group {
	f.t.Helper()
	now := time.Now().UTC()
	g := models.Group{
		ID:          primitive.NewObjectID(),
		ChurchID:    churchID,
		Name:        name,
		NameCI:      text.Fold(name),
		Description: "Test group description",
		Status:      models.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.insert(ctx, "groups", g)
	return g
}

// CreateGroupMembership adds userID to groupID as an active member with
// the given role, joined a year ago.
func (f *Fixtures) CreateGroupMembership(ctx context.Context, userID, groupID, churchID primitive.ObjectID, role models.GroupRole) models.GroupMembership {
	f.t.Helper()
	now := time.Now().UTC()
	m := models.GroupMembership{
		ID:        primitive.NewObjectID(),
		ChurchID:  churchID,
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  now.AddDate(-1, 0, 0),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "group_memberships", m)
	return m
}

// CreateActivity creates a meeting for groupID on date with the given
// planned participants. statuses, if any, are recorded for the first
// len(statuses) participants.
func (f *Fixtures) CreateActivity(ctx context.Context, groupID, churchID primitive.ObjectID, date time.Time, planned []primitive.ObjectID, statuses ...models.AttendanceStatus) models.Activity {
	f.t.Helper()
	now := time.Now().UTC()
	a := models.Activity{
		ID:                  primitive.NewObjectID(),
		ChurchID:            churchID,
		GroupID:             groupID,
		Title:               "Weekly meeting",
		Type:                models.ActivityMeeting,
		Date:                date,
		DurationMins:        90,
		PlannedParticipants: planned,
		Attendance:          []models.AttendanceRecord{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if a.PlannedParticipants == nil {
		a.PlannedParticipants = []primitive.ObjectID{}
	}
	for i, s := range statuses {
		a.Attendance = append(a.Attendance, models.AttendanceRecord{
			UserID:   planned[i],
			Status:   s,
			MarkedAt: date,
		})
	}
	f.insert(ctx, "activities", a)
	return a
}

// CreateGoal creates a goal for groupID with the given status.
func (f *Fixtures) CreateGoal(ctx context.Context, groupID, churchID primitive.ObjectID, title string, status models.GoalStatus) models.Goal {
	f.t.Helper()
	now := time.Now().UTC()
	g := models.Goal{
		ID:        primitive.NewObjectID(),
		ChurchID:  churchID,
		GroupID:   groupID,
		Title:     title,
		Status:    status,
		Priority:  models.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == models.GoalCompleted {
		g.CompletedAt = &now
	}
	f.insert(ctx, "goals", g)
	return g
}
