package goalstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/normalize"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("goals")}
}

var (
	ErrNotFound    = errors.New("goal not found")
	ErrBadStatus   = errors.New("status must be planned, in-progress, completed or cancelled")
	ErrBadPriority = errors.New("priority must be low, medium or high")
)

func validPriority(p string) bool {
	return p == models.PriorityLow || p == models.PriorityMedium || p == models.PriorityHigh
}

// Create inserts a goal. Status defaults to planned, priority to medium.
func (s *Store) Create(ctx context.Context, g models.Goal) (models.Goal, error) {
	if g.Status == "" {
		g.Status = models.GoalPlanned
	}
	if !g.Status.IsValid() {
		return models.Goal{}, ErrBadStatus
	}
	if g.Priority == "" {
		g.Priority = models.PriorityMedium
	}
	if !validPriority(g.Priority) {
		return models.Goal{}, ErrBadPriority
	}
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.Title = normalize.Name(g.Title)
	g.CompletedAt = nil
	if g.Status == models.GoalCompleted {
		g.CompletedAt = &now
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Goal{}, err
	}
	return g, nil
}

// Get loads a goal of churchID.
func (s *Store) Get(ctx context.Context, churchID, id primitive.ObjectID) (models.Goal, error) {
	var g models.Goal
	err := s.c.FindOne(ctx, bson.M{"_id": id, "church_id": churchID}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Goal{}, ErrNotFound
	}
	return g, err
}

// Update holds the editable fields; nil fields are unchanged. ClearTarget
// removes the target date.
type Update struct {
	Title       *string
	Description *string
	Priority    *string
	TargetDate  *time.Time
	ClearTarget bool
}

func (s *Store) Update(ctx context.Context, churchID, id primitive.ObjectID, u Update) (models.Goal, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}
	if u.Title != nil {
		set["title"] = normalize.Name(*u.Title)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Priority != nil {
		if !validPriority(*u.Priority) {
			return models.Goal{}, ErrBadPriority
		}
		set["priority"] = *u.Priority
	}
	switch {
	case u.ClearTarget:
		unset["target_date"] = ""
	case u.TargetDate != nil:
		set["target_date"] = u.TargetDate.UTC()
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return s.apply(ctx, bson.M{"_id": id, "church_id": churchID}, update)
}

// SetStatus moves a goal to status. Completing stamps CompletedAt; any
// other status clears it.
func (s *Store) SetStatus(ctx context.Context, churchID, id primitive.ObjectID, status models.GoalStatus) (models.Goal, error) {
	if !status.IsValid() {
		return models.Goal{}, ErrBadStatus
	}
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"status": status, "updated_at": now}}
	if status == models.GoalCompleted {
		update["$set"].(bson.M)["completed_at"] = now
	} else {
		update["$unset"] = bson.M{"completed_at": ""}
	}
	return s.apply(ctx, bson.M{"_id": id, "church_id": churchID}, update)
}

func (s *Store) apply(ctx context.Context, filter, update bson.M) (models.Goal, error) {
	var out models.Goal
	err := s.c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Goal{}, ErrNotFound
	}
	return out, err
}

// Delete removes a goal. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, churchID, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByGroup removes all goals of a group.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByChurch removes all goals of a church.
func (s *Store) DeleteByChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByGroup returns a group's goals, optionally of one status, ordered
// by target date (undated last) then creation.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID, status models.GoalStatus) ([]models.Goal, error) {
	filter := bson.M{"group_id": groupID}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	goals := []models.Goal{}
	if err := cur.All(ctx, &goals); err != nil {
		return nil, err
	}
	sortByTarget(goals)
	return goals, nil
}

// CountByChurch counts a church's goals, optionally of one status.
func (s *Store) CountByChurch(ctx context.Context, churchID primitive.ObjectID, status models.GoalStatus) (int64, error) {
	filter := bson.M{"church_id": churchID}
	if status != "" {
		filter["status"] = status
	}
	return s.c.CountDocuments(ctx, filter)
}
