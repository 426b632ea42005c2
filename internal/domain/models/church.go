package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Church is the top-level tenant in FlockHub.
//
// Every other document (branches, departments, groups, users, activities,
// goals) carries a church_id and is only ever read inside that church.
type Church struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Name   string `bson:"name" json:"name"`
	NameCI string `bson:"name_ci" json:"-"` // folded for search/sort

	// Slug is a short unique handle (e.g. "grace-downtown").
	Slug string `bson:"slug" json:"slug"`

	TimeZone    string `bson:"time_zone" json:"time_zone"`
	ContactInfo string `bson:"contact_info,omitempty" json:"contact_info,omitempty"`

	// Status: "active" or "disabled"
	Status string `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
