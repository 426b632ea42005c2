package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GoalStatus tracks a group goal through its lifecycle.
type GoalStatus string

const (
	GoalPlanned    GoalStatus = "planned"
	GoalInProgress GoalStatus = "in-progress"
	GoalCompleted  GoalStatus = "completed"
	GoalCancelled  GoalStatus = "cancelled"
)

// IsValid reports whether s is a known goal status.
func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalPlanned, GoalInProgress, GoalCompleted, GoalCancelled:
		return true
	}
	return false
}

// Goal priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Goal is something a group is working toward (e.g. "grow to 15 members").
type Goal struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChurchID primitive.ObjectID `bson:"church_id" json:"church_id"`
	GroupID  primitive.ObjectID `bson:"group_id" json:"group_id"`

	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	Status      GoalStatus `bson:"status" json:"status"`
	Priority    string     `bson:"priority" json:"priority"`
	TargetDate  *time.Time `bson:"target_date,omitempty" json:"target_date,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
