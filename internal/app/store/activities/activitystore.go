package activitystore

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
	return &Store{c: db.Collection("activities")}
}

var (
	ErrNotFound         = errors.New("activity not found")
	ErrCancelled        = errors.New("activity is cancelled")
	ErrBadStatus        = errors.New("attendance status must be present, late, absent or excused")
	ErrBadType          = errors.New("unknown activity type")
	ErrNoDate           = errors.New("activity date is required")
	ErrCompleteCancel   = errors.New("a cancelled activity cannot be completed")
	errConcurrentMarker = errors.New("attendance changed concurrently")
)

// Types lists the known activity types.
var Types = []string{
	models.ActivityMeeting, models.ActivityService, models.ActivityEvent, models.ActivityOutreach, models.ActivityTraining,
}

func validType(t string) bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// Create inserts a new activity with an empty attendance list.
func (s *Store) Create(ctx context.Context, a models.Activity) (models.Activity, error) {
	if a.Type == "" {
		a.Type = models.ActivityMeeting
	}
	if !validType(a.Type) {
		return models.Activity{}, ErrBadType
	}
	if a.Date.IsZero() {
		return models.Activity{}, ErrNoDate
	}
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	a.Title = normalize.Name(a.Title)
	a.Date = a.Date.UTC()
	a.PlannedParticipants = dedupe(a.PlannedParticipants)
	a.Attendance = []models.AttendanceRecord{}
	a.Completed = false
	a.Cancelled = false
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Activity{}, err
	}
	return a, nil
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Get loads an activity of churchID.
func (s *Store) Get(ctx context.Context, churchID, id primitive.ObjectID) (models.Activity, error) {
	var a models.Activity
	err := s.c.FindOne(ctx, bson.M{"_id": id, "church_id": churchID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Activity{}, ErrNotFound
	}
	return a, err
}

// Update holds the editable fields; nil fields are unchanged.
// PlannedParticipants replaces the whole list and drops the attendance
// records of users no longer on it.
type Update struct {
	Title               *string
	Type                *string
	Date                *time.Time
	DurationMins        *int
	Location            *string
	Description         *string
	PlannedParticipants *[]primitive.ObjectID
}

func (s *Store) Update(ctx context.Context, churchID, id primitive.ObjectID, u Update) (models.Activity, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Title != nil {
		set["title"] = normalize.Name(*u.Title)
	}
	if u.Type != nil {
		if !validType(*u.Type) {
			return models.Activity{}, ErrBadType
		}
		set["type"] = *u.Type
	}
	if u.Date != nil {
		if u.Date.IsZero() {
			return models.Activity{}, ErrNoDate
		}
		set["date"] = u.Date.UTC()
	}
	if u.DurationMins != nil {
		set["duration_mins"] = *u.DurationMins
	}
	if u.Location != nil {
		set["location"] = *u.Location
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	update := bson.M{"$set": set}
	if u.PlannedParticipants != nil {
		planned := dedupe(*u.PlannedParticipants)
		set["planned_participants"] = planned
		// attendance of users dropped from the plan goes with them
		update["$pull"] = bson.M{"attendance": bson.M{"user_id": bson.M{"$nin": planned}}}
	}
	return s.apply(ctx, bson.M{"_id": id, "church_id": churchID}, update)
}

func (s *Store) apply(ctx context.Context, filter, update bson.M) (models.Activity, error) {
	var out models.Activity
	err := s.c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Activity{}, ErrNotFound
	}
	return out, err
}

// SetCompleted marks an activity as held (or not). Cancelled activities
// cannot be completed.
func (s *Store) SetCompleted(ctx context.Context, churchID, id primitive.ObjectID, completed bool) (models.Activity, error) {
	filter := bson.M{"_id": id, "church_id": churchID}
	if completed {
		filter["cancelled"] = false
	}
	out, err := s.apply(ctx, filter, bson.M{"$set": bson.M{"completed": completed, "updated_at": time.Now().UTC()}})
	if errors.Is(err, ErrNotFound) && completed {
		if _, gerr := s.Get(ctx, churchID, id); gerr == nil {
			return models.Activity{}, ErrCompleteCancel
		}
	}
	return out, err
}

// SetCancelled cancels or restores an activity. Cancelling clears the
// completed flag.
func (s *Store) SetCancelled(ctx context.Context, churchID, id primitive.ObjectID, cancelled bool) (models.Activity, error) {
	set := bson.M{"cancelled": cancelled, "updated_at": time.Now().UTC()}
	if cancelled {
		set["completed"] = false
	}
	return s.apply(ctx, bson.M{"_id": id, "church_id": churchID}, bson.M{"$set": set})
}

// MarkAttendance records rec for one member, replacing any earlier record
// for the same user. A member who was not planned is added to the planned
// participants so every record counts against the expected total.
func (s *Store) MarkAttendance(ctx context.Context, churchID, id primitive.ObjectID, rec models.AttendanceRecord) (models.Activity, error) {
	if !rec.Status.IsValid() {
		return models.Activity{}, ErrBadStatus
	}
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = time.Now().UTC()
	}

	// Two attempts: a concurrent push of the same user between our
	// replace and push lands us back on the replace path.
	for attempt := 0; attempt < 2; attempt++ {
		out, err := s.markOnce(ctx, churchID, id, rec)
		if !errors.Is(err, errConcurrentMarker) {
			return out, err
		}
	}
	return models.Activity{}, errConcurrentMarker
}

func (s *Store) markOnce(ctx context.Context, churchID, id primitive.ObjectID, rec models.AttendanceRecord) (models.Activity, error) {
	now := time.Now().UTC()
	base := bson.M{"_id": id, "church_id": churchID, "cancelled": false}

	replace := bson.M{"attendance.user_id": rec.UserID}
	for k, v := range base {
		replace[k] = v
	}
	out, err := s.apply(ctx, replace, bson.M{
		"$set": bson.M{
			"attendance.$.status":    rec.Status,
			"attendance.$.marked_at": rec.MarkedAt,
			"attendance.$.marked_by": rec.MarkedBy,
			"attendance.$.notes":     rec.Notes,
			"updated_at":             now,
		},
		"$addToSet": bson.M{"planned_participants": rec.UserID},
	})
	if !errors.Is(err, ErrNotFound) {
		return out, err
	}

	push := bson.M{"attendance.user_id": bson.M{"$ne": rec.UserID}}
	for k, v := range base {
		push[k] = v
	}
	out, err = s.apply(ctx, push, bson.M{
		"$push":     bson.M{"attendance": rec},
		"$addToSet": bson.M{"planned_participants": rec.UserID},
		"$set":      bson.M{"updated_at": now},
	})
	if !errors.Is(err, ErrNotFound) {
		return out, err
	}

	a, gerr := s.Get(ctx, churchID, id)
	switch {
	case gerr != nil:
		return models.Activity{}, gerr
	case a.Cancelled:
		return models.Activity{}, ErrCancelled
	}
	return models.Activity{}, errConcurrentMarker
}

// ClearAttendance removes userID's record. The user stays planned.
func (s *Store) ClearAttendance(ctx context.Context, churchID, id, userID primitive.ObjectID) (models.Activity, error) {
	return s.apply(ctx, bson.M{"_id": id, "church_id": churchID}, bson.M{
		"$pull": bson.M{"attendance": bson.M{"user_id": userID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

// Delete removes an activity. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, churchID, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByGroup removes all activities of a group.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByChurch removes all activities of a church.
func (s *Store) DeleteByChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListFilter narrows ListByGroup. Start and End are inclusive. Limit 0
// means no limit.
type ListFilter struct {
	Start            *time.Time
	End              *time.Time
	IncludeCancelled bool
	Limit            int64
}

// ListByGroup returns a group's activities, newest first.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID, f ListFilter) ([]models.Activity, error) {
	filter := bson.M{"group_id": groupID}
	if !f.IncludeCancelled {
		filter["cancelled"] = false
	}
	if f.Start != nil || f.End != nil {
		rng := bson.M{}
		if f.Start != nil {
			rng["$gte"] = f.Start.UTC()
		}
		if f.End != nil {
			rng["$lte"] = f.End.UTC()
		}
		filter["date"] = rng
	}

	find := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		find.SetLimit(f.Limit)
	}
	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	activities := []models.Activity{}
	if err := cur.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// CountByChurch counts a church's non-cancelled activities dated on or
// after since.
func (s *Store) CountByChurch(ctx context.Context, churchID primitive.ObjectID, since time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"church_id": churchID,
		"cancelled": false,
		"date":      bson.M{"$gte": since.UTC()},
	})
}
