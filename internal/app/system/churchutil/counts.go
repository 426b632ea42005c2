// internal/app/system/churchutil/counts.go
package churchutil

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Aggregator is a minimal interface satisfied by *mongo.Database.
type Aggregator interface {
	Collection(name string, opts ...*options.CollectionOptions) *mongo.Collection
}

// AggregateCountByField computes counts grouped by a field.
//
//	coll     – collection name (e.g. "group_memberships", "groups")
//	match    – base match filter (e.g. {"active":true,"group_id":{"$in": ids}})
//	groupKey – field to group on (e.g. "group_id")
//
// Returns a map keyed by ObjectID to count. Keys with no documents are absent.
func AggregateCountByField(
	ctx context.Context,
	db Aggregator,
	coll string,
	match bson.M,
	groupKey string,
) (map[primitive.ObjectID]int64, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + groupKey},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cur, err := db.Collection(coll).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[primitive.ObjectID]int64)
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
			N  int64              `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.N
	}
	return out, cur.Err()
}

// ActiveMemberCounts returns the active roster size of each group.
func ActiveMemberCounts(ctx context.Context, db Aggregator, groupIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	if len(groupIDs) == 0 {
		return map[primitive.ObjectID]int64{}, nil
	}
	return AggregateCountByField(ctx, db, "group_memberships",
		bson.M{"group_id": bson.M{"$in": groupIDs}, "active": true}, "group_id")
}

// GroupCountsByBranch returns how many groups each branch of a church has.
func GroupCountsByBranch(ctx context.Context, db Aggregator, churchID primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	return AggregateCountByField(ctx, db, "groups",
		bson.M{"church_id": churchID, "branch_id": bson.M{"$exists": true}}, "branch_id")
}
