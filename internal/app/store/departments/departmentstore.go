// internal/app/store/departments/departmentstore.go
package departmentstore

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
	ErrDuplicateDepartment = errors.New("a department with this name already exists in the church")
	ErrNotFound            = errors.New("department not found")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("departments")}
}

func (s *Store) Create(ctx context.Context, d models.Department) (models.Department, error) {
	now := time.Now().UTC()
	d.ID = primitive.NewObjectID()
	d.Name = normalize.Name(d.Name)
	d.NameCI = normalize.CI(d.Name)
	if d.Status == "" {
		d.Status = models.StatusActive
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, d); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Department{}, ErrDuplicateDepartment
		}
		return models.Department{}, err
	}
	return d, nil
}

func (s *Store) Get(ctx context.Context, churchID, id primitive.ObjectID) (models.Department, error) {
	var d models.Department
	err := s.c.FindOne(ctx, bson.M{"_id": id, "church_id": churchID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Department{}, ErrNotFound
	}
	return d, err
}

// Update holds the mutable fields; nil fields are unchanged. ClearBranch and
// ClearHead unset the optional references.
type Update struct {
	Name        *string
	Description *string
	Status      *string
	BranchID    *primitive.ObjectID
	HeadUserID  *primitive.ObjectID
	ClearBranch bool
	ClearHead   bool
}

func (s *Store) Update(ctx context.Context, churchID, id primitive.ObjectID, u Update) (models.Department, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}
	if u.Name != nil {
		name := normalize.Name(*u.Name)
		set["name"] = name
		set["name_ci"] = normalize.CI(name)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	switch {
	case u.ClearBranch:
		unset["branch_id"] = ""
	case u.BranchID != nil:
		set["branch_id"] = *u.BranchID
	}
	switch {
	case u.ClearHead:
		unset["head_user_id"] = ""
	case u.HeadUserID != nil:
		set["head_user_id"] = *u.HeadUserID
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	var out models.Department
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "church_id": churchID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.Department{}, ErrNotFound
	case wafflemongo.IsDup(err):
		return models.Department{}, ErrDuplicateDepartment
	}
	return out, err
}

func (s *Store) Delete(ctx context.Context, churchID, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) DeleteByChurch(ctx context.Context, churchID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"church_id": churchID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns one keyset page of a church's departments. A non-nil
// branchID limits the page to that branch's departments.
func (s *Store) List(ctx context.Context, churchID primitive.ObjectID, branchID *primitive.ObjectID, q string, p paging.Params) ([]models.Department, paging.Result, error) {
	filter := bson.M{"church_id": churchID}
	if branchID != nil {
		filter["branch_id"] = *branchID
	}
	search.Merge(filter, search.Prefix("name_ci", q))
	return paging.FindPage[models.Department](ctx, s.c, filter, "name_ci", p)
}
