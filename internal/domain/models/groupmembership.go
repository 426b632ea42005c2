package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupRole is a member's role inside one group.
type GroupRole string

const (
	GroupRoleLeader          GroupRole = "leader"
	GroupRoleAssistantLeader GroupRole = "assistant-leader"
	GroupRoleMember          GroupRole = "member"
)

// IsValid reports whether r is one of the known group roles.
func (r GroupRole) IsValid() bool {
	switch r {
	case GroupRoleLeader, GroupRoleAssistantLeader, GroupRoleMember:
		return true
	}
	return false
}

// GroupMembership is the authoritative join between users and groups.
// Exactly one document per (user_id, group_id). At most one active leader
// per group; the membership store enforces that.
type GroupMembership struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChurchID primitive.ObjectID `bson:"church_id" json:"church_id"`
	GroupID  primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role     GroupRole          `bson:"role" json:"role"`

	JoinedAt time.Time  `bson:"joined_at" json:"joined_at"`
	Active   bool       `bson:"active" json:"active"`
	LeftAt   *time.Time `bson:"left_at,omitempty" json:"left_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
