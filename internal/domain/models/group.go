package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group represents a small group / cell / ministry team inside a church.
//
// NOTE:
//   - The roster is not embedded on Group.
//     All membership is stored in the group_memberships collection.
//   - Activities and goals live in their own collections keyed by group_id.
type Group struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ChurchID     primitive.ObjectID  `bson:"church_id" json:"church_id"`
	BranchID     *primitive.ObjectID `bson:"branch_id,omitempty" json:"branch_id,omitempty"`
	DepartmentID *primitive.ObjectID `bson:"department_id,omitempty" json:"department_id,omitempty"`

	Name        string `bson:"name" json:"name"`
	NameCI      string `bson:"name_ci" json:"-"`
	Description string `bson:"description" json:"description"`
	Category    string `bson:"category,omitempty" json:"category,omitempty"` // e.g. "bible-study", "youth"
	MeetingDay  string `bson:"meeting_day,omitempty" json:"meeting_day,omitempty"`

	Status string `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
