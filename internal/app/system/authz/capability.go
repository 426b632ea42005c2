// Package authz decides what the signed-in user may do.
//
// Every role maps to a fixed set of capabilities; handlers and routers ask
// for a capability, never for a role name. Church-wide staff (admin,
// pastor) act on every group of their church. Leaders act only on groups
// they lead, which needs a data lookup (see CanOnGroup).
package authz

import (
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/domain/models"
)

// Capability is one permission.
type Capability int

const (
	ManageChurches Capability = iota + 1
	ManageBranches
	ManageDepartments
	ViewUsers
	ManageUsers
	ViewGroups
	ManageGroups
	ManageRoster
	ManageActivities
	MarkAttendance
	ManageGoals
	ViewGroupStats
	ViewDashboard
	ViewAuditLog
)

var capNames = map[Capability]string{
	ManageChurches:    "manage_churches",
	ManageBranches:    "manage_branches",
	ManageDepartments: "manage_departments",
	ViewUsers:         "view_users",
	ManageUsers:       "manage_users",
	ViewGroups:        "view_groups",
	ManageGroups:      "manage_groups",
	ManageRoster:      "manage_roster",
	ManageActivities:  "manage_activities",
	MarkAttendance:    "mark_attendance",
	ManageGoals:       "manage_goals",
	ViewGroupStats:    "view_group_stats",
	ViewDashboard:     "view_dashboard",
	ViewAuditLog:      "view_audit_log",
}

func (c Capability) String() string {
	if s, ok := capNames[c]; ok {
		return s
	}
	return "unknown"
}

type capSet map[Capability]struct{}

func setOf(caps ...Capability) capSet {
	s := make(capSet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// groupWork is what a leader may do inside a group they lead.
var groupWork = []Capability{
	ViewGroups, ManageRoster, ManageActivities, MarkAttendance, ManageGoals, ViewGroupStats, ViewDashboard,
}

var roleCaps = map[string]capSet{
	models.RoleAdmin: setOf(append([]Capability{
		ManageBranches, ManageDepartments, ViewUsers, ManageUsers, ManageGroups, ViewAuditLog,
	}, groupWork...)...),
	models.RolePastor: setOf(append([]Capability{
		ManageDepartments, ViewUsers, ManageGroups,
	}, groupWork...)...),
	models.RoleLeader: setOf(groupWork...),
	models.RoleMember: setOf(ViewGroups),
}

// churchWide reports whether role acts on every group of its church.
func churchWide(role string) bool {
	switch role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RolePastor:
		return true
	}
	return false
}

// Can reports whether u holds c. Superadmins hold every capability.
// A nil user holds none.
func Can(u *auth.SessionUser, c Capability) bool {
	if u == nil {
		return false
	}
	if u.IsSuperAdmin() {
		return true
	}
	_, ok := roleCaps[u.Role][c]
	return ok
}

// Capabilities lists what role holds, in declaration order.
func Capabilities(role string) []Capability {
	var out []Capability
	for c := ManageChurches; c <= ViewAuditLog; c++ {
		if role == models.RoleSuperAdmin {
			out = append(out, c)
			continue
		}
		if _, ok := roleCaps[role][c]; ok {
			out = append(out, c)
		}
	}
	return out
}
