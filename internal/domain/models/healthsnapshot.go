package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupHealthSnapshot is the most recent health score computed for a group
// by the background worker. One document per group (upserted).
type GroupHealthSnapshot struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChurchID primitive.ObjectID `bson:"church_id" json:"church_id"`
	GroupID  primitive.ObjectID `bson:"group_id" json:"group_id"`

	Score              int     `bson:"score" json:"score"`
	AttendanceRate     float64 `bson:"attendance_rate" json:"attendance_rate"`
	AverageEngagement  float64 `bson:"average_engagement" json:"average_engagement"`
	GoalCompletionRate float64 `bson:"goal_completion_rate" json:"goal_completion_rate"`
	ActivityFrequency  float64 `bson:"activity_frequency" json:"activity_frequency"`
	MemberGrowthRate   float64 `bson:"member_growth_rate" json:"member_growth_rate"`
	RetentionRate      int     `bson:"retention_rate" json:"retention_rate"`
	PeriodDays         int     `bson:"period_days" json:"period_days"`

	ComputedAt time.Time `bson:"computed_at" json:"computed_at"`
}
