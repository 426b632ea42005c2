package analytics

import (
	"math"
	"time"

	"github.com/dalemusser/flockhub/internal/domain/models"
)

// DefaultPeriodDays is the look-back used for group health when the caller
// does not ask for another one.
const DefaultPeriodDays = 90

// HealthInput are the five normalized rates the health score is built from.
// Rates are percentages; ActivityFrequency is activities per week.
type HealthInput struct {
	MemberGrowthRate   float64 `json:"member_growth_rate"`
	AttendanceRate     float64 `json:"attendance_rate"`
	ActivityFrequency  float64 `json:"activity_frequency"`
	GoalCompletionRate float64 `json:"goal_completion_rate"`
	AverageEngagement  float64 `json:"average_engagement"`
}

// HealthScore is the 0–100 health score and its per-input points.
type HealthScore struct {
	Score int `json:"score"`

	AttendancePoints float64 `json:"attendance_points"`
	EngagementPoints float64 `json:"engagement_points"`
	GoalPoints       float64 `json:"goal_points"`
	FrequencyPoints  float64 `json:"frequency_points"`
	GrowthPoints     float64 `json:"growth_points"`
}

// Score weighs the inputs. Frequency is measured against OptimalFrequency
// (ratio capped at 1), growth against GrowthCap; non-positive growth earns
// nothing. Rates outside [0,100] are clamped before weighting.
func (w HealthWeights) Score(in HealthInput) HealthScore {
	var hs HealthScore
	hs.AttendancePoints = unit(in.AttendanceRate/100) * w.Attendance
	hs.EngagementPoints = unit(in.AverageEngagement/100) * w.Engagement
	hs.GoalPoints = unit(in.GoalCompletionRate/100) * w.GoalCompletion
	if w.OptimalFrequency > 0 {
		hs.FrequencyPoints = unit(in.ActivityFrequency/w.OptimalFrequency) * w.Frequency
	}
	if in.MemberGrowthRate > 0 && w.GrowthCap > 0 {
		hs.GrowthPoints = math.Min(in.MemberGrowthRate, w.GrowthCap) / w.GrowthCap * w.Growth
	}
	hs.Score = clampScore(hs.AttendancePoints + hs.EngagementPoints + hs.GoalPoints + hs.FrequencyPoints + hs.GrowthPoints)
	return hs
}

// unit clamps v to [0,1]; NaN becomes 0.
func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func periodStart(now time.Time, periodDays int) time.Time {
	return now.Add(-time.Duration(periodDays) * day)
}

// RetentionRate is the share of members who had joined before the period
// started and are still active, as a rounded percentage. It is 100 when
// nobody had joined before the period.
func RetentionRate(members []models.GroupMembership, now time.Time, periodDays int) int {
	start := periodStart(now, periodDays)
	before, kept := 0, 0
	for _, m := range members {
		if !m.JoinedAt.Before(start) {
			continue
		}
		before++
		if m.Active {
			kept++
		}
	}
	if before == 0 {
		return 100
	}
	return percent(kept, before)
}

// MemberGrowthRate is the percentage change in active members over the
// period: members who joined during it relative to those already active
// at its start. With no starting members any newcomer counts as 100%.
func MemberGrowthRate(members []models.GroupMembership, now time.Time, periodDays int) float64 {
	start := periodStart(now, periodDays)
	base, joined := 0, 0
	for _, m := range members {
		switch {
		case m.JoinedAt.Before(start):
			if m.Active || (m.LeftAt != nil && !m.LeftAt.Before(start)) {
				base++
			}
		case !m.JoinedAt.After(now):
			joined++
		}
	}
	if base == 0 {
		if joined > 0 {
			return 100
		}
		return 0
	}
	return 100 * float64(joined) / float64(base)
}

// ActivityFrequency is the number of non-cancelled activities per week
// inside the period ending at now.
func ActivityFrequency(activities []models.Activity, now time.Time, periodDays int) float64 {
	if periodDays <= 0 {
		return 0
	}
	start := periodStart(now, periodDays)
	n := 0
	for _, a := range activities {
		if a.Cancelled {
			continue
		}
		if InRange(a.Date, &start, &now) {
			n++
		}
	}
	return float64(n) / (float64(periodDays) / 7)
}

// GoalCompletionRate is completed goals over all non-cancelled goals,
// as a rounded percentage (0 when there are none).
func GoalCompletionRate(goals []models.Goal) int {
	total, done := 0, 0
	for _, g := range goals {
		if g.Status == models.GoalCancelled {
			continue
		}
		total++
		if g.Status == models.GoalCompleted {
			done++
		}
	}
	return percent(done, total)
}

// GoalStats counts goals by status.
type GoalStats struct {
	Total          int `json:"total"`
	Planned        int `json:"planned"`
	InProgress     int `json:"in_progress"`
	Completed      int `json:"completed"`
	Cancelled      int `json:"cancelled"`
	Overdue        int `json:"overdue"`
	CompletionRate int `json:"completion_rate"`
}

// SummarizeGoals counts goals by status. A goal is overdue when its target
// date has passed and it is still planned or in progress.
func SummarizeGoals(goals []models.Goal, now time.Time) GoalStats {
	st := GoalStats{Total: len(goals)}
	for _, g := range goals {
		switch g.Status {
		case models.GoalPlanned:
			st.Planned++
		case models.GoalInProgress:
			st.InProgress++
		case models.GoalCompleted:
			st.Completed++
		case models.GoalCancelled:
			st.Cancelled++
		}
		open := g.Status == models.GoalPlanned || g.Status == models.GoalInProgress
		if open && g.TargetDate != nil && g.TargetDate.Before(now) {
			st.Overdue++
		}
	}
	st.CompletionRate = GoalCompletionRate(goals)
	return st
}

// GroupHealthReport is the full health breakdown for one group.
type GroupHealthReport struct {
	PeriodDays    int         `json:"period_days"`
	Score         HealthScore `json:"health"`
	Inputs        HealthInput `json:"inputs"`
	RetentionRate int         `json:"retention_rate"`

	TotalMembers     int `json:"total_members"`
	ActiveMembers    int `json:"active_members"`
	PeriodActivities int `json:"period_activities"`

	Goals GoalStats `json:"goals"`
}

// GroupHealth gathers the five inputs from a group's roster, activities
// and goals over the period ending at now, and scores them.
func (w HealthWeights) GroupHealth(members []models.GroupMembership, activities []models.Activity, goals []models.Goal, now time.Time, periodDays int) GroupHealthReport {
	start := periodStart(now, periodDays)

	var recent []models.Activity
	for _, a := range activities {
		if !a.Cancelled && InRange(a.Date, &start, &now) {
			recent = append(recent, a)
		}
	}
	summaries := make([]ActivitySummary, 0, len(recent))
	for _, a := range recent {
		summaries = append(summaries, SummarizeActivity(a))
	}

	engagement := GroupEngagement(members, activities, now, DefaultRecentWindow)

	in := HealthInput{
		MemberGrowthRate:   MemberGrowthRate(members, now, periodDays),
		AttendanceRate:     float64(Rollup(summaries).AverageAttendanceRate),
		ActivityFrequency:  ActivityFrequency(activities, now, periodDays),
		GoalCompletionRate: float64(GoalCompletionRate(goals)),
		AverageEngagement:  AverageEngagement(engagement),
	}

	rep := GroupHealthReport{
		PeriodDays:       periodDays,
		Score:            w.Score(in),
		Inputs:           in,
		RetentionRate:    RetentionRate(members, now, periodDays),
		TotalMembers:     len(members),
		PeriodActivities: len(recent),
		Goals:            SummarizeGoals(goals, now),
	}
	for _, m := range members {
		if m.Active {
			rep.ActiveMembers++
		}
	}
	return rep
}
