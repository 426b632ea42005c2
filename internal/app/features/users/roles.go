package users

import (
	"errors"
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/domain/models"
)

type adminBlock struct {
	Title string `json:"title" validate:"max=100"`
}

type pastorBlock struct {
	Title          string     `json:"title" validate:"notblank,max=100"`
	OrdinationDate *time.Time `json:"ordination_date"`
}

type leaderBlock struct {
	Ministry    string     `json:"ministry" validate:"notblank,max=200"`
	LeaderSince *time.Time `json:"leader_since"`
}

type memberBlock struct {
	MembershipDate time.Time  `json:"membership_date" validate:"required"`
	BaptismDate    *time.Time `json:"baptism_date"`
	MaritalStatus  string     `json:"marital_status" validate:"omitempty,oneof=single married widowed divorced"`
	Occupation     string     `json:"occupation" validate:"max=200"`
}

// roleVariant is a role plus the detail block for it. Exactly the block
// matching Role may be present; superadmins carry none.
type roleVariant struct {
	Role   string       `json:"role" validate:"required,userrole"`
	Admin  *adminBlock  `json:"admin"`
	Pastor *pastorBlock `json:"pastor"`
	Leader *leaderBlock `json:"leader"`
	Member *memberBlock `json:"member"`
}

var errWrongBlock = errors.New("only the details block matching role may be given")

// details validates v and returns its detail block. The second result is
// nil for superadmins.
func (v roleVariant) details() (models.RoleDetails, error) {
	given := 0
	for _, set := range []bool{v.Admin != nil, v.Pastor != nil, v.Leader != nil, v.Member != nil} {
		if set {
			given++
		}
	}
	if given > 1 {
		return nil, &inputval.Error{Message: errWrongBlock.Error()}
	}

	missing := func(block string) error {
		return &inputval.Error{
			Message: "validation failed",
			Fields:  map[string]string{block: "is required for role " + v.Role},
		}
	}

	switch v.Role {
	case models.RoleSuperAdmin:
		if given > 0 {
			return nil, &inputval.Error{Message: errWrongBlock.Error()}
		}
		return nil, nil
	case models.RoleAdmin:
		if given > 0 && v.Admin == nil {
			return nil, &inputval.Error{Message: errWrongBlock.Error()}
		}
		d := models.AdminDetails{}
		if v.Admin != nil {
			d.Title = v.Admin.Title
		}
		return d, nil
	case models.RolePastor:
		if v.Pastor == nil {
			return nil, missing("pastor")
		}
		return models.PastorDetails{Title: v.Pastor.Title, OrdinationDate: v.Pastor.OrdinationDate}, nil
	case models.RoleLeader:
		if v.Leader == nil {
			return nil, missing("leader")
		}
		return models.LeaderDetails{Ministry: v.Leader.Ministry, LeaderSince: v.Leader.LeaderSince}, nil
	case models.RoleMember:
		if v.Member == nil {
			return nil, missing("member")
		}
		return models.MemberDetails{
			MembershipDate: v.Member.MembershipDate.UTC(),
			BaptismDate:    v.Member.BaptismDate,
			MaritalStatus:  v.Member.MaritalStatus,
			Occupation:     v.Member.Occupation,
		}, nil
	}
	return nil, &inputval.Error{Message: "unknown role " + v.Role}
}
