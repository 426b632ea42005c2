// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/flockhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c      *mongo.Collection
	users  *mongo.Collection
	groups *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:      db.Collection("group_memberships"),
		users:  db.Collection("users"),
		groups: db.Collection("groups"),
	}
}

var (
	ErrBadRole             = errors.New(`role must be "leader", "assistant-leader" or "member"`)
	ErrChurchMismatch      = errors.New("user and group belong to different churches")
	ErrGroupNotFound       = errors.New("group not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateMembership = errors.New("user is already an active member of this group")
	ErrLeaderExists        = errors.New("group already has an active leader")
	ErrNotFound            = errors.New("membership not found")
)

// Add puts userID on groupID's roster. A previously deactivated membership
// is reactivated with a fresh join date. The group and the user must both
// belong to churchID, and a group has at most one active leader.
func (s *Store) Add(ctx context.Context, churchID, groupID, userID primitive.ObjectID, role models.GroupRole) (models.GroupMembership, error) {
	if !role.IsValid() {
		return models.GroupMembership{}, ErrBadRole
	}
	if err := s.checkChurch(ctx, churchID, groupID, userID); err != nil {
		return models.GroupMembership{}, err
	}
	if role == models.GroupRoleLeader {
		if err := s.ensureNoOtherLeader(ctx, groupID, userID); err != nil {
			return models.GroupMembership{}, err
		}
	}

	now := time.Now().UTC()
	existing, err := s.Get(ctx, groupID, userID)
	switch {
	case err == nil && existing.Active:
		return models.GroupMembership{}, ErrDuplicateMembership
	case err == nil:
		var out models.GroupMembership
		err = s.c.FindOneAndUpdate(ctx,
			bson.M{"_id": existing.ID},
			bson.M{
				"$set":   bson.M{"active": true, "role": role, "joined_at": now, "updated_at": now},
				"$unset": bson.M{"left_at": ""},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&out)
		return out, s.mapDup(err, role)
	case !errors.Is(err, ErrNotFound):
		return models.GroupMembership{}, err
	}

	m := models.GroupMembership{
		ID:        primitive.NewObjectID(),
		ChurchID:  churchID,
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  now,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.GroupMembership{}, s.mapDup(err, role)
	}
	return m, nil
}

func (s *Store) mapDup(err error, role models.GroupRole) error {
	if err == nil || !wafflemongo.IsDup(err) {
		return err
	}
	// The only unique index a leader write can trip besides (group, user)
	// is the one-active-leader index.
	if role == models.GroupRoleLeader {
		return ErrLeaderExists
	}
	return ErrDuplicateMembership
}

func (s *Store) checkChurch(ctx context.Context, churchID, groupID, userID primitive.ObjectID) error {
	var g struct {
		ChurchID primitive.ObjectID `bson:"church_id"`
	}
	if err := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrGroupNotFound
		}
		return err
	}
	var u struct {
		ChurchID *primitive.ObjectID `bson:"church_id"`
	}
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}
		return err
	}
	if g.ChurchID != churchID || u.ChurchID == nil || *u.ChurchID != churchID {
		return ErrChurchMismatch
	}
	return nil
}

func (s *Store) ensureNoOtherLeader(ctx context.Context, groupID, userID primitive.ObjectID) error {
	err := s.c.FindOne(ctx, bson.M{
		"group_id": groupID,
		"role":     models.GroupRoleLeader,
		"active":   true,
		"user_id":  bson.M{"$ne": userID},
	}).Err()
	switch {
	case err == nil:
		return ErrLeaderExists
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil
	}
	return err
}

// Get returns the membership document for (groupID, userID), active or not.
func (s *Store) Get(ctx context.Context, groupID, userID primitive.ObjectID) (models.GroupMembership, error) {
	var m models.GroupMembership
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.GroupMembership{}, ErrNotFound
	}
	return m, err
}

// SetRole changes an active member's role, keeping the one-leader rule.
func (s *Store) SetRole(ctx context.Context, groupID, userID primitive.ObjectID, role models.GroupRole) (models.GroupMembership, error) {
	if !role.IsValid() {
		return models.GroupMembership{}, ErrBadRole
	}
	if role == models.GroupRoleLeader {
		if err := s.ensureNoOtherLeader(ctx, groupID, userID); err != nil {
			return models.GroupMembership{}, err
		}
	}
	var out models.GroupMembership
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"group_id": groupID, "user_id": userID, "active": true},
		bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.GroupMembership{}, ErrNotFound
	}
	return out, s.mapDup(err, role)
}

// Deactivate marks an active membership as left. The document is kept so
// retention and engagement history stay intact.
func (s *Store) Deactivate(ctx context.Context, groupID, userID primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID, "active": true},
		bson.M{"$set": bson.M{"active": false, "left_at": now, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes the membership document for (groupID, userID).
func (s *Store) Remove(ctx context.Context, groupID, userID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"group_id": groupID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByGroup returns a group's roster, active members only when
// activeOnly is set.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID, activeOnly bool) ([]models.GroupMembership, error) {
	filter := bson.M{"group_id": groupID}
	if activeOnly {
		filter["active"] = true
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	memberships := []models.GroupMembership{}
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// GroupIDsForUser returns the groups userID actively belongs to. When
// leadersOnly is set only groups they lead or assist are returned.
func (s *Store) GroupIDsForUser(ctx context.Context, userID primitive.ObjectID, leadersOnly bool) ([]primitive.ObjectID, error) {
	filter := bson.M{"user_id": userID, "active": true}
	if leadersOnly {
		filter["role"] = bson.M{"$in": bson.A{models.GroupRoleLeader, models.GroupRoleAssistantLeader}}
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetProjection(bson.M{"group_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := []primitive.ObjectID{}
	for cur.Next(ctx) {
		var row struct {
			GroupID primitive.ObjectID `bson:"group_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.GroupID)
	}
	return ids, cur.Err()
}

// IsGroupLeader reports whether userID is an active leader or assistant
// leader of groupID.
func (s *Store) IsGroupLeader(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error) {
	return s.exists(ctx, bson.M{
		"group_id": groupID,
		"user_id":  userID,
		"active":   true,
		"role":     bson.M{"$in": bson.A{models.GroupRoleLeader, models.GroupRoleAssistantLeader}},
	})
}

// IsActiveMember reports whether userID is on groupID's active roster.
func (s *Store) IsActiveMember(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error) {
	return s.exists(ctx, bson.M{"group_id": groupID, "user_id": userID, "active": true})
}

func (s *Store) exists(ctx context.Context, filter bson.M) (bool, error) {
	err := s.c.FindOne(ctx, filter).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountActiveByGroup returns the count of active memberships for a group.
func (s *Store) CountActiveByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"group_id": groupID, "active": true})
}

// DeleteByGroup removes all memberships for a group.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByUser removes all memberships for a user.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByChurch removes all memberships in a church.
func (s *Store) DeleteByChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
