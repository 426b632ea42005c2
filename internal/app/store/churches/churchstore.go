// internal/app/store/churches/churchstore.go
package churchstore

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
	ErrDuplicateChurch = errors.New("a church with this name or slug already exists")
	ErrNotFound        = errors.New("church not found")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("churches")}
}

// Create inserts c, deriving NameCI and (when empty) Slug from the name.
func (s *Store) Create(ctx context.Context, c models.Church) (models.Church, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.Name = normalize.Name(c.Name)
	c.NameCI = normalize.CI(c.Name)
	if c.Slug == "" {
		c.Slug = normalize.Slug(c.Name)
	}
	if c.Status == "" {
		c.Status = models.StatusActive
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Church{}, ErrDuplicateChurch
		}
		return models.Church{}, err
	}
	return c, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Church, error) {
	var c models.Church
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Church{}, ErrNotFound
	}
	return c, err
}

// Update is the set of mutable fields. Nil fields are left unchanged.
type Update struct {
	Name        *string
	Slug        *string
	TimeZone    *string
	ContactInfo *string
	Status      *string
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, u Update) (models.Church, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Name != nil {
		name := normalize.Name(*u.Name)
		set["name"] = name
		set["name_ci"] = normalize.CI(name)
	}
	if u.Slug != nil {
		set["slug"] = normalize.Slug(*u.Slug)
	}
	if u.TimeZone != nil {
		set["time_zone"] = *u.TimeZone
	}
	if u.ContactInfo != nil {
		set["contact_info"] = *u.ContactInfo
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}

	var out models.Church
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.Church{}, ErrNotFound
	case wafflemongo.IsDup(err):
		return models.Church{}, ErrDuplicateChurch
	}
	return out, err
}

// Delete removes a church by ID. Returns the number of documents deleted (0 or 1).
// Child documents are removed by the caller.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListFilter narrows List. Search is a case-folded name prefix.
type ListFilter struct {
	Status string
	Search string
}

// List returns one keyset page ordered by folded name.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Params) ([]models.Church, paging.Result, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	search.Merge(filter, search.Prefix("name_ci", f.Search))
	return paging.FindPage[models.Church](ctx, s.c, filter, "name_ci", p)
}

// ListActiveIDs returns the ids of all active churches.
func (s *Store) ListActiveIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"status": models.StatusActive},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
