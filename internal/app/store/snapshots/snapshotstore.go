package snapshotstore

import (
	"context"
	"errors"
	"time"

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
	return &Store{c: db.Collection("group_health_snapshots")}
}

var ErrNotFound = errors.New("no health snapshot for group")

// Upsert replaces the snapshot of snap.GroupID.
func (s *Store) Upsert(ctx context.Context, snap models.GroupHealthSnapshot) error {
	if snap.ComputedAt.IsZero() {
		snap.ComputedAt = time.Now().UTC()
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"group_id": snap.GroupID},
		bson.M{
			"$set": bson.M{
				"church_id":            snap.ChurchID,
				"score":                snap.Score,
				"attendance_rate":      snap.AttendanceRate,
				"average_engagement":   snap.AverageEngagement,
				"goal_completion_rate": snap.GoalCompletionRate,
				"activity_frequency":   snap.ActivityFrequency,
				"member_growth_rate":   snap.MemberGrowthRate,
				"retention_rate":       snap.RetentionRate,
				"period_days":          snap.PeriodDays,
				"computed_at":          snap.ComputedAt,
			},
			"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// Get returns the snapshot of a group in churchID.
func (s *Store) Get(ctx context.Context, churchID, groupID primitive.ObjectID) (models.GroupHealthSnapshot, error) {
	var snap models.GroupHealthSnapshot
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "church_id": churchID}).Decode(&snap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.GroupHealthSnapshot{}, ErrNotFound
	}
	return snap, err
}

// ListByChurch returns a church's snapshots, healthiest first.
func (s *Store) ListByChurch(ctx context.Context, churchID primitive.ObjectID) ([]models.GroupHealthSnapshot, error) {
	cur, err := s.c.Find(ctx, bson.M{"church_id": churchID},
		options.Find().SetSort(bson.D{{Key: "score", Value: -1}, {Key: "group_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	snaps := []models.GroupHealthSnapshot{}
	if err := cur.All(ctx, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// ChurchAverage is the mean snapshot score over a church's groups.
type ChurchAverage struct {
	Groups       int        `bson:"groups" json:"groups"`
	AverageScore float64    `bson:"average_score" json:"average_score"`
	LastComputed *time.Time `bson:"last_computed" json:"last_computed,omitempty"`
}

// AverageByChurch aggregates a church's snapshots. A church without
// snapshots yields the zero value.
func (s *Store) AverageByChurch(ctx context.Context, churchID primitive.ObjectID) (ChurchAverage, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"church_id": churchID}}},
		{{Key: "$group", Value: bson.M{
			"_id":           nil,
			"groups":        bson.M{"$sum": 1},
			"average_score": bson.M{"$avg": "$score"},
			"last_computed": bson.M{"$max": "$computed_at"},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return ChurchAverage{}, err
	}
	defer cur.Close(ctx)

	var out ChurchAverage
	if cur.Next(ctx) {
		if err := cur.Decode(&out); err != nil {
			return ChurchAverage{}, err
		}
	}
	return out, cur.Err()
}

// DeleteByGroup removes a group's snapshot.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"group_id": groupID})
	return err
}

// DeleteByChurch removes every snapshot of a church.
func (s *Store) DeleteByChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
