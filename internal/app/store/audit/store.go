// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLoginFailedRateLimit     = "login_failed_rate_limit"
	EventLogout                   = "logout"
)

// Admin event types
const (
	EventChurchCreated    = "church_created"
	EventChurchUpdated    = "church_updated"
	EventChurchDeleted    = "church_deleted"
	EventBranchCreated    = "branch_created"
	EventBranchDeleted    = "branch_deleted"
	EventDepartmentSaved  = "department_saved"
	EventUserCreated      = "user_created"
	EventUserUpdated      = "user_updated"
	EventUserDeleted      = "user_deleted"
	EventGroupCreated     = "group_created"
	EventGroupUpdated     = "group_updated"
	EventGroupDeleted     = "group_deleted"
	EventMemberAdded      = "member_added_to_group"
	EventMemberRemoved    = "member_removed_from_group"
	EventMemberRole       = "member_role_changed"
	EventActivityDeleted  = "activity_deleted"
	EventAttendanceMarked = "attendance_marked"
	EventGoalStatus       = "goal_status_changed"
)

// Event is one audit_log entry.
type Event struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	ChurchID  *primitive.ObjectID `bson:"church_id,omitempty" json:"church_id,omitempty"`

	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"event_type"`

	UserID   *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`   // affected user
	ActorID  *primitive.ObjectID `bson:"actor_id,omitempty" json:"actor_id,omitempty"` // who acted
	TargetID *primitive.ObjectID `bson:"target_id,omitempty" json:"target_id,omitempty"`

	IP        string `bson:"ip" json:"ip"`
	UserAgent string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`

	Success       bool   `bson:"success" json:"success"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter narrows Query and Count. Zero fields are ignored.
type QueryFilter struct {
	ChurchID  *primitive.ObjectID
	UserID    *primitive.ObjectID
	Category  string
	EventType string
	Start     *time.Time
	End       *time.Time
	Limit     int64
	Offset    int64
}

func (f QueryFilter) bson() bson.M {
	q := bson.M{}
	if f.ChurchID != nil {
		q["church_id"] = *f.ChurchID
	}
	if f.UserID != nil {
		q["user_id"] = *f.UserID
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.EventType != "" {
		q["event_type"] = f.EventType
	}
	if f.Start != nil || f.End != nil {
		r := bson.M{}
		if f.Start != nil {
			r["$gte"] = *f.Start
		}
		if f.End != nil {
			r["$lte"] = *f.End
		}
		q["created_at"] = r
	}
	return q
}

// Store manages audit_log documents. Indexes (including the retention TTL)
// are owned by system/indexes.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_log")}
}

// Log inserts e, filling ID and CreatedAt when unset.
func (s *Store) Log(ctx context.Context, e Event) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// Query returns matching events newest first. Limit defaults to 100.
func (s *Store) Query(ctx context.Context, f QueryFilter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(f.Offset)

	cur, err := s.c.Find(ctx, f.bson(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := []Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns how many events match f.
func (s *Store) Count(ctx context.Context, f QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, f.bson())
}

// FailedLogins returns failed login attempts since the given time.
func (s *Store) FailedLogins(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	q := bson.M{
		"category":   CategoryAuth,
		"success":    false,
		"created_at": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := []Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
