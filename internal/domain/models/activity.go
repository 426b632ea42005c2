package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AttendanceStatus is the outcome recorded for one invited member.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

// IsValid reports whether s is a known attendance status.
func (s AttendanceStatus) IsValid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused:
		return true
	}
	return false
}

// Attended reports whether s counts as showing up (present or late).
func (s AttendanceStatus) Attended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// Activity types.
const (
	ActivityMeeting  = "meeting"
	ActivityService  = "service"
	ActivityEvent    = "event"
	ActivityOutreach = "outreach"
	ActivityTraining = "training"
)

// Activity is a scheduled occurrence for a group (meeting, service, event).
// Attendance is embedded; at most one record per user_id.
type Activity struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChurchID primitive.ObjectID `bson:"church_id" json:"church_id"`
	GroupID  primitive.ObjectID `bson:"group_id" json:"group_id"`

	Title        string    `bson:"title" json:"title"`
	Type         string    `bson:"type" json:"type"`
	Date         time.Time `bson:"date" json:"date"`
	DurationMins int       `bson:"duration_mins,omitempty" json:"duration_mins,omitempty"`
	Location     string    `bson:"location,omitempty" json:"location,omitempty"`
	Description  string    `bson:"description,omitempty" json:"description,omitempty"`

	PlannedParticipants []primitive.ObjectID `bson:"planned_participants" json:"planned_participants"`
	Attendance          []AttendanceRecord   `bson:"attendance" json:"attendance"`

	Completed bool `bson:"completed" json:"completed"`
	Cancelled bool `bson:"cancelled" json:"cancelled"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// AttendanceRecord is one member's outcome for an activity.
type AttendanceRecord struct {
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Status   AttendanceStatus   `bson:"status" json:"status"`
	MarkedAt time.Time          `bson:"marked_at" json:"marked_at"`
	MarkedBy primitive.ObjectID `bson:"marked_by" json:"marked_by"`
	Notes    string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

// IsPlanned reports whether userID is among the planned participants.
func (a Activity) IsPlanned(userID primitive.ObjectID) bool {
	for _, id := range a.PlannedParticipants {
		if id == userID {
			return true
		}
	}
	return false
}

// RecordFor returns the attendance record for userID, if any.
func (a Activity) RecordFor(userID primitive.ObjectID) (AttendanceRecord, bool) {
	for _, rec := range a.Attendance {
		if rec.UserID == userID {
			return rec, true
		}
	}
	return AttendanceRecord{}, false
}
