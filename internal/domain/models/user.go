package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account roles. Superadmins are not bound to a church.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RolePastor     = "pastor"
	RoleLeader     = "leader"
	RoleMember     = "member"
)

// UserRoles lists the account roles, most privileged first.
var UserRoles = []string{RoleSuperAdmin, RoleAdmin, RolePastor, RoleLeader, RoleMember}

// Sign-in methods.
const (
	AuthPassword = "password"
	AuthGoogle   = "google"
)

// Record statuses shared by users, churches, branches, departments and groups.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User represents every account: staff, group leaders and congregants.
//
// NOTE:
//   - Group membership is not embedded on User.
//     Use the group_memberships collection to discover a user's groups.
//   - Exactly one of the role detail blocks is set, matching Role.
type User struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ChurchID *primitive.ObjectID `bson:"church_id,omitempty" json:"church_id,omitempty"`
	BranchID *primitive.ObjectID `bson:"branch_id,omitempty" json:"branch_id,omitempty"`

	FullName     string `bson:"full_name" json:"full_name"`
	FullNameCI   string `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string `bson:"email" json:"email"`
	Phone        string `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string `bson:"password_hash,omitempty" json:"-"`
	AuthMethod   string `bson:"auth_method,omitempty" json:"auth_method,omitempty"` // password | google
	Role         string `bson:"role" json:"role"`
	Status       string `bson:"status" json:"status"`

	Admin  *AdminDetails  `bson:"admin,omitempty" json:"admin,omitempty"`
	Pastor *PastorDetails `bson:"pastor,omitempty" json:"pastor,omitempty"`
	Leader *LeaderDetails `bson:"leader,omitempty" json:"leader,omitempty"`
	Member *MemberDetails `bson:"member,omitempty" json:"member,omitempty"`

	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

type AdminDetails struct {
	Title string `bson:"title,omitempty" json:"title,omitempty"`
}

type PastorDetails struct {
	Title          string     `bson:"title" json:"title"`
	OrdinationDate *time.Time `bson:"ordination_date,omitempty" json:"ordination_date,omitempty"`
}

type LeaderDetails struct {
	Ministry    string     `bson:"ministry" json:"ministry"`
	LeaderSince *time.Time `bson:"leader_since,omitempty" json:"leader_since,omitempty"`
}

type MemberDetails struct {
	MembershipDate time.Time  `bson:"membership_date" json:"membership_date"`
	BaptismDate    *time.Time `bson:"baptism_date,omitempty" json:"baptism_date,omitempty"`
	MaritalStatus  string     `bson:"marital_status,omitempty" json:"marital_status,omitempty"`
	Occupation     string     `bson:"occupation,omitempty" json:"occupation,omitempty"`
}

// RoleDetails is one of the per-role detail blocks. Superadmins carry none.
type RoleDetails interface {
	Role() string
}

func (AdminDetails) Role() string  { return RoleAdmin }
func (PastorDetails) Role() string { return RolePastor }
func (LeaderDetails) Role() string { return RoleLeader }
func (MemberDetails) Role() string { return RoleMember }

// SetDetails sets u.Role from d and stores d in the matching block, clearing
// the others. A nil d makes u a superadmin.
func (u *User) SetDetails(d RoleDetails) {
	u.Admin, u.Pastor, u.Leader, u.Member = nil, nil, nil, nil
	switch v := d.(type) {
	case AdminDetails:
		u.Admin = &v
	case PastorDetails:
		u.Pastor = &v
	case LeaderDetails:
		u.Leader = &v
	case MemberDetails:
		u.Member = &v
	case nil:
		u.Role = RoleSuperAdmin
		return
	}
	u.Role = d.Role()
}

// Details returns the detail block matching u.Role, or nil.
func (u User) Details() RoleDetails {
	switch {
	case u.Role == RoleAdmin && u.Admin != nil:
		return *u.Admin
	case u.Role == RolePastor && u.Pastor != nil:
		return *u.Pastor
	case u.Role == RoleLeader && u.Leader != nil:
		return *u.Leader
	case u.Role == RoleMember && u.Member != nil:
		return *u.Member
	}
	return nil
}
