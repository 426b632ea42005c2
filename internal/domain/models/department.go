package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Department is a ministry area (worship, youth, outreach, ...).
// BranchID is nil for church-wide departments.
type Department struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ChurchID primitive.ObjectID  `bson:"church_id" json:"church_id"`
	BranchID *primitive.ObjectID `bson:"branch_id,omitempty" json:"branch_id,omitempty"`

	Name        string              `bson:"name" json:"name"`
	NameCI      string              `bson:"name_ci" json:"-"`
	Description string              `bson:"description" json:"description"`
	HeadUserID  *primitive.ObjectID `bson:"head_user_id,omitempty" json:"head_user_id,omitempty"`
	Status      string              `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
