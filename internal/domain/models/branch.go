package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Branch is a campus or congregation site within a church.
// Name, City are stored alongside folded copies for search/sort.
type Branch struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChurchID primitive.ObjectID `bson:"church_id" json:"church_id"`

	Name     string `bson:"name" json:"name"`
	NameCI   string `bson:"name_ci" json:"-"`
	City     string `bson:"city" json:"city"`
	CityCI   string `bson:"city_ci" json:"-"`
	Address  string `bson:"address,omitempty" json:"address,omitempty"`
	TimeZone string `bson:"time_zone" json:"time_zone"`
	Status   string `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
