// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/normalize"
	"github.com/dalemusser/flockhub/internal/app/system/paging"
	"github.com/dalemusser/flockhub/internal/app/system/search"
	"github.com/dalemusser/flockhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrDuplicateGroupName = errors.New("a group with this name already exists in the church")
	ErrNotFound           = errors.New("group not found")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

// Get loads a group inside churchID. Groups of other churches are not found.
func (s *Store) Get(ctx context.Context, churchID, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	err := s.c.FindOne(ctx, bson.M{"_id": id, "church_id": churchID}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, ErrNotFound
	}
	return g, err
}

// GetByID loads a group regardless of church. For background jobs and CLI use.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, ErrNotFound
	}
	return g, err
}

func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.Name = normalize.Name(g.Name)
	g.NameCI = normalize.CI(g.Name)
	if g.Status == "" {
		g.Status = models.StatusActive
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateGroupName
		}
		return models.Group{}, err
	}
	return g, nil
}

// Update holds the mutable fields; nil fields are unchanged. Description
// may be set to the empty string to clear it.
type Update struct {
	Name         *string
	Description  *string
	Category     *string
	MeetingDay   *string
	Status       *string
	BranchID     *primitive.ObjectID
	DepartmentID *primitive.ObjectID
}

func (s *Store) Update(ctx context.Context, churchID, id primitive.ObjectID, u Update) (models.Group, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Name != nil {
		name := normalize.Name(*u.Name)
		set["name"] = name
		set["name_ci"] = normalize.CI(name)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.MeetingDay != nil {
		set["meeting_day"] = *u.MeetingDay
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.BranchID != nil {
		set["branch_id"] = *u.BranchID
	}
	if u.DepartmentID != nil {
		set["department_id"] = *u.DepartmentID
	}

	var out models.Group
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "church_id": churchID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.Group{}, ErrNotFound
	case wafflemongo.IsDup(err):
		return models.Group{}, ErrDuplicateGroupName
	}
	return out, err
}

// Delete removes a group by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, churchID, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByChurch removes all groups belonging to a church.
func (s *Store) DeleteByChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListFilter narrows List. IDs, when non-nil, restricts the page to those
// groups (a leader's or member's own groups).
type ListFilter struct {
	Status       string
	BranchID     *primitive.ObjectID
	DepartmentID *primitive.ObjectID
	Search       string
	IDs          []primitive.ObjectID
}

// List returns one keyset page of a church's groups ordered by folded name.
func (s *Store) List(ctx context.Context, churchID primitive.ObjectID, f ListFilter, p paging.Params) ([]models.Group, paging.Result, error) {
	filter := bson.M{"church_id": churchID}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.BranchID != nil {
		filter["branch_id"] = *f.BranchID
	}
	if f.DepartmentID != nil {
		filter["department_id"] = *f.DepartmentID
	}
	if f.IDs != nil {
		filter["_id"] = bson.M{"$in": f.IDs}
	}
	search.Merge(filter, search.Prefix("name_ci", f.Search))
	return paging.FindPage[models.Group](ctx, s.c, filter, "name_ci", p)
}

// ListActive returns every active group, across all churches when churchID
// is nil. Used by the health snapshot worker.
func (s *Store) ListActive(ctx context.Context, churchID *primitive.ObjectID) ([]models.Group, error) {
	filter := bson.M{"status": models.StatusActive}
	if churchID != nil {
		filter["church_id"] = *churchID
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "church_id", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	groups := []models.Group{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// CountByChurch returns the number of groups in a church, optionally with
// the given status.
func (s *Store) CountByChurch(ctx context.Context, churchID primitive.ObjectID, status string) (int64, error) {
	filter := bson.M{"church_id": churchID}
	if status != "" {
		filter["status"] = status
	}
	return s.c.CountDocuments(ctx, filter)
}
