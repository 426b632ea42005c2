package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultRecentWindow is how far back an attended activity still counts
// as "recent" for participation and diversity.
const DefaultRecentWindow = 30 * 24 * time.Hour

const day = 24 * time.Hour

// EngagementInput holds the counts the engagement score is derived from.
type EngagementInput struct {
	JoinedAt time.Time
	Now      time.Time

	TotalInvitations    int // activities the member was planned for
	TotalRecords        int // attendance records on those activities
	PresentOrLate       int // records marked present or late
	RecentActivityCount int // recent activities attended
}

// EngagementScore is a 0–100 score and the components it was built from.
type EngagementScore struct {
	Score            int     `json:"score"`
	AttendanceRate   int     `json:"attendance_rate"`
	MembershipMonths float64 `json:"membership_months"`

	AttendancePoints    float64 `json:"attendance_points"`
	ParticipationPoints float64 `json:"participation_points"`
	ConsistencyBonus    float64 `json:"consistency_bonus"`
	DiversityBonus      float64 `json:"diversity_bonus"`
}

// ScoreEngagement computes a member's engagement:
//
//	attendance    (rate/100) * 40
//	participation (recent / min(invitations, 10)) * 30
//	consistency   min(20, (rate/100) * (months/12) * 20)
//	diversity     min(10, recent * 2)
//
// where months = max(1, daysSinceJoin/30). The sum is clamped to [0,100]
// and rounded.
func ScoreEngagement(in EngagementInput) EngagementScore {
	rate := percent(in.PresentOrLate, in.TotalRecords)
	ratio := float64(rate) / 100

	out := EngagementScore{
		AttendanceRate:   rate,
		MembershipMonths: membershipMonths(in.JoinedAt, in.Now),
	}
	out.AttendancePoints = ratio * attendancePoints

	if in.TotalInvitations > 0 {
		denom := in.TotalInvitations
		if denom > participationInvitationCap {
			denom = participationInvitationCap
		}
		share := math.Min(1, float64(in.RecentActivityCount)/float64(denom))
		out.ParticipationPoints = share * participationPoints
	}

	out.ConsistencyBonus = math.Min(consistencyPoints, ratio*(out.MembershipMonths/12)*consistencyPoints)
	out.DiversityBonus = math.Min(diversityPoints, float64(in.RecentActivityCount)*diversityPerActivity)

	out.Score = clampScore(out.AttendancePoints + out.ParticipationPoints + out.ConsistencyBonus + out.DiversityBonus)
	return out
}

func membershipMonths(joined, now time.Time) float64 {
	days := now.Sub(joined).Hours() / 24
	return math.Max(1, days/30)
}

// Invitation is one activity a member was planned for, with the outcome
// recorded for them (empty Status when attendance was never marked).
type Invitation struct {
	ActivityID primitive.ObjectID      `json:"activity_id"`
	Date       time.Time               `json:"date"`
	Status     models.AttendanceStatus `json:"status,omitempty"`
}

// Marked reports whether attendance was recorded for this invitation.
func (iv Invitation) Marked() bool { return iv.Status != "" }

// Invitations extracts userID's invitation history from activities,
// oldest first. Cancelled activities are skipped: nobody could attend them.
// Activities dated after now have not happened yet and are skipped too.
func Invitations(userID primitive.ObjectID, activities []models.Activity, now time.Time) []Invitation {
	var out []Invitation
	for _, a := range activities {
		if a.Cancelled || a.Date.After(now) || !a.IsPlanned(userID) {
			continue
		}
		iv := Invitation{ActivityID: a.ID, Date: a.Date}
		if rec, ok := a.RecordFor(userID); ok {
			iv.Status = rec.Status
		}
		out = append(out, iv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ActivityID.Hex() < out[j].ActivityID.Hex()
	})
	return out
}

// EngagementFromInvitations derives the score inputs from a history.
// An activity is recent when it happened within window before now.
func EngagementFromInvitations(joinedAt, now time.Time, history []Invitation, window time.Duration) EngagementInput {
	in := EngagementInput{
		JoinedAt:         joinedAt,
		Now:              now,
		TotalInvitations: len(history),
	}
	since := now.Add(-window)
	for _, iv := range history {
		if !iv.Marked() {
			continue
		}
		in.TotalRecords++
		if !iv.Status.Attended() {
			continue
		}
		in.PresentOrLate++
		if !iv.Date.Before(since) && !iv.Date.After(now) {
			in.RecentActivityCount++
		}
	}
	return in
}

// Streaks are runs of consecutive present/late outcomes.
type Streaks struct {
	Current int `json:"current_streak"`
	Longest int `json:"longest_streak"`
}

// ComputeStreaks walks a chronologically sorted history. Longest is the
// longest run of attended outcomes anywhere; Current counts attended
// outcomes backward from the most recent until the first miss.
// Unmarked invitations count as misses.
func ComputeStreaks(history []Invitation) Streaks {
	var st Streaks
	run := 0
	for _, iv := range history {
		if iv.Status.Attended() {
			run++
			if run > st.Longest {
				st.Longest = run
			}
		} else {
			run = 0
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].Status.Attended() {
			break
		}
		st.Current++
	}
	return st
}

// MemberEngagement is the per-member report served by the stats endpoints.
type MemberEngagement struct {
	UserID   primitive.ObjectID `json:"user_id"`
	FullName string             `json:"full_name,omitempty"`
	Role     models.GroupRole   `json:"role"`
	JoinedAt time.Time          `json:"joined_at"`
	Active   bool               `json:"active"`

	TotalInvitations    int `json:"total_invitations"`
	Present             int `json:"present"`
	Late                int `json:"late"`
	Absent              int `json:"absent"`
	Excused             int `json:"excused"`
	Unmarked            int `json:"unmarked"`
	RecentActivityCount int `json:"recent_activity_count"`

	Engagement EngagementScore `json:"engagement"`
	Streaks    Streaks         `json:"streaks"`

	LastAttendedAt *time.Time `json:"last_attended_at,omitempty"`
}

// EngagementForMember builds the full report for one roster entry.
func EngagementForMember(m models.GroupMembership, activities []models.Activity, now time.Time, window time.Duration) MemberEngagement {
	history := Invitations(m.UserID, activities, now)
	in := EngagementFromInvitations(m.JoinedAt, now, history, window)

	rep := MemberEngagement{
		UserID:              m.UserID,
		Role:                m.Role,
		JoinedAt:            m.JoinedAt,
		Active:              m.Active,
		TotalInvitations:    len(history),
		RecentActivityCount: in.RecentActivityCount,
		Engagement:          ScoreEngagement(in),
		Streaks:             ComputeStreaks(history),
	}
	for _, iv := range history {
		switch iv.Status {
		case models.AttendancePresent:
			rep.Present++
		case models.AttendanceLate:
			rep.Late++
		case models.AttendanceAbsent:
			rep.Absent++
		case models.AttendanceExcused:
			rep.Excused++
		default:
			rep.Unmarked++
		}
		if iv.Status.Attended() {
			d := iv.Date
			rep.LastAttendedAt = &d
		}
	}
	return rep
}

// GroupEngagement scores every roster entry, highest score first
// (ties by user id).
func GroupEngagement(members []models.GroupMembership, activities []models.Activity, now time.Time, window time.Duration) []MemberEngagement {
	out := make([]MemberEngagement, 0, len(members))
	for _, m := range members {
		out = append(out, EngagementForMember(m, activities, now, window))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Engagement.Score != out[j].Engagement.Score {
			return out[i].Engagement.Score > out[j].Engagement.Score
		}
		return out[i].UserID.Hex() < out[j].UserID.Hex()
	})
	return out
}

// AverageEngagement is the mean score of active members, 0 if none.
func AverageEngagement(reports []MemberEngagement) float64 {
	sum, n := 0, 0
	for _, r := range reports {
		if !r.Active {
			continue
		}
		sum += r.Engagement.Score
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
