// internal/app/store/branches/branchstore.go
package branchstore

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

var (
	ErrDuplicateBranch = errors.New("a branch with this name already exists in the church")
	ErrNotFound        = errors.New("branch not found")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("branches")}
}

func (s *Store) Create(ctx context.Context, b models.Branch) (models.Branch, error) {
	now := time.Now().UTC()
	b.ID = primitive.NewObjectID()
	b.Name = normalize.Name(b.Name)
	b.NameCI = normalize.CI(b.Name)
	b.CityCI = normalize.CI(b.City)
	if b.Status == "" {
		b.Status = models.StatusActive
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, b); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Branch{}, ErrDuplicateBranch
		}
		return models.Branch{}, err
	}
	return b, nil
}

// Get loads a branch inside churchID; branches of other churches are not found.
func (s *Store) Get(ctx context.Context, churchID, id primitive.ObjectID) (models.Branch, error) {
	var b models.Branch
	err := s.c.FindOne(ctx, bson.M{"_id": id, "church_id": churchID}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Branch{}, ErrNotFound
	}
	return b, err
}

// Update holds the mutable fields; nil fields are unchanged.
type Update struct {
	Name     *string
	City     *string
	Address  *string
	TimeZone *string
	Status   *string
}

func (s *Store) Update(ctx context.Context, churchID, id primitive.ObjectID, u Update) (models.Branch, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Name != nil {
		name := normalize.Name(*u.Name)
		set["name"] = name
		set["name_ci"] = normalize.CI(name)
	}
	if u.City != nil {
		set["city"] = *u.City
		set["city_ci"] = normalize.CI(*u.City)
	}
	if u.Address != nil {
		set["address"] = *u.Address
	}
	if u.TimeZone != nil {
		set["time_zone"] = *u.TimeZone
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}

	var out models.Branch
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "church_id": churchID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.Branch{}, ErrNotFound
	case wafflemongo.IsDup(err):
		return models.Branch{}, ErrDuplicateBranch
	}
	return out, err
}

// Delete removes a branch. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, churchID, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByChurch removes all branches of a church.
func (s *Store) DeleteByChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns one keyset page of a church's branches ordered by folded name.
func (s *Store) List(ctx context.Context, churchID primitive.ObjectID, status, q string, p paging.Params) ([]models.Branch, paging.Result, error) {
	filter := bson.M{"church_id": churchID}
	if status != "" {
		filter["status"] = status
	}
	search.Merge(filter, search.Prefix("name_ci", q))
	return paging.FindPage[models.Branch](ctx, s.c, filter, "name_ci", p)
}

func (s *Store) CountByChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"church_id": churchID})
}
