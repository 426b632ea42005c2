package analytics

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxSummaryLimit is the largest number of activity summaries returned by
// one call. Larger limits are clamped.
const MaxSummaryLimit = 100

// DefaultSummaryLimit is used by callers when no limit was requested.
const DefaultSummaryLimit = 20

// ErrInvalidLimit is returned when a summary limit below 1 is requested.
var ErrInvalidLimit = errors.New("limit must be at least 1")

// ClampLimit validates a requested summary limit and caps it at
// MaxSummaryLimit.
func ClampLimit(limit int) (int, error) {
	if limit < 1 {
		return 0, ErrInvalidLimit
	}
	if limit > MaxSummaryLimit {
		return MaxSummaryLimit, nil
	}
	return limit, nil
}

// SummaryQuery narrows the activities that are summarized.
// Start and End are inclusive; nil means unbounded.
type SummaryQuery struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

// ActivitySummary is the attendance breakdown of one activity.
type ActivitySummary struct {
	ActivityID primitive.ObjectID `json:"activity_id"`
	Title      string             `json:"title"`
	Type       string             `json:"type"`
	Date       time.Time          `json:"date"`
	Completed  bool               `json:"completed"`
	Cancelled  bool               `json:"cancelled"`

	TotalExpected  int `json:"total_expected"`
	Present        int `json:"present"`
	Late           int `json:"late"`
	Absent         int `json:"absent"`
	Excused        int `json:"excused"`
	AttendanceRate int `json:"attendance_rate"`
}

// OverallStats rolls up the summaries of one report. Rates only consider
// activities that expected at least one participant.
type OverallStats struct {
	TotalActivities       int `json:"total_activities"`
	AverageAttendanceRate int `json:"average_attendance_rate"`
	BestAttendanceRate    int `json:"best_attendance_rate"`
	WorstAttendanceRate   int `json:"worst_attendance_rate"`
}

// AttendanceReport is the output of SummarizeAttendance.
type AttendanceReport struct {
	Activities   []ActivitySummary `json:"activities"`
	OverallStats OverallStats      `json:"overall_stats"`
}

// SummarizeActivity counts the attendance records of a by status.
// The rate is the share of planned participants who were present or late.
// Records of users who are no longer planned are ignored, which keeps the
// rate within [0, 100].
func SummarizeActivity(a models.Activity) ActivitySummary {
	s := ActivitySummary{
		ActivityID:    a.ID,
		Title:         a.Title,
		Type:          a.Type,
		Date:          a.Date,
		Completed:     a.Completed,
		Cancelled:     a.Cancelled,
		TotalExpected: len(a.PlannedParticipants),
	}
	for _, rec := range a.Attendance {
		if !a.IsPlanned(rec.UserID) {
			continue
		}
		switch rec.Status {
		case models.AttendancePresent:
			s.Present++
		case models.AttendanceLate:
			s.Late++
		case models.AttendanceAbsent:
			s.Absent++
		case models.AttendanceExcused:
			s.Excused++
		}
	}
	s.AttendanceRate = percent(s.Present+s.Late, s.TotalExpected)
	return s
}

// SummarizeAttendance filters activities to the query range, keeps the
// most recent q.Limit of them (newest first) and summarizes each.
//
// The input slice is not reordered. Ties on date are broken by activity
// id so equal inputs always produce equal output.
func SummarizeAttendance(activities []models.Activity, q SummaryQuery) (AttendanceReport, error) {
	limit, err := ClampLimit(q.Limit)
	if err != nil {
		return AttendanceReport{}, err
	}

	picked := make([]models.Activity, 0, len(activities))
	for _, a := range activities {
		if InRange(a.Date, q.Start, q.End) {
			picked = append(picked, a)
		}
	}
	sortNewestFirst(picked)
	if len(picked) > limit {
		picked = picked[:limit]
	}

	out := AttendanceReport{Activities: make([]ActivitySummary, 0, len(picked))}
	for _, a := range picked {
		out.Activities = append(out.Activities, SummarizeActivity(a))
	}
	out.OverallStats = Rollup(out.Activities)
	return out, nil
}

// Rollup computes the aggregate rates over summaries with a non-zero
// expected count that were not cancelled. All rates are 0 when there are
// none. TotalActivities counts every summary.
func Rollup(summaries []ActivitySummary) OverallStats {
	st := OverallStats{TotalActivities: len(summaries)}

	sum, n := 0, 0
	best, worst := 0, 0
	for _, s := range summaries {
		if s.TotalExpected == 0 || s.Cancelled {
			continue
		}
		if n == 0 || s.AttendanceRate > best {
			best = s.AttendanceRate
		}
		if n == 0 || s.AttendanceRate < worst {
			worst = s.AttendanceRate
		}
		sum += s.AttendanceRate
		n++
	}
	if n == 0 {
		return st
	}
	st.AverageAttendanceRate = int(math.Round(float64(sum) / float64(n)))
	st.BestAttendanceRate = best
	st.WorstAttendanceRate = worst
	return st
}

// InRange reports whether t falls within [start, end]; nil bounds are open.
func InRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

func sortNewestFirst(as []models.Activity) {
	sort.SliceStable(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date) {
			return as[i].Date.After(as[j].Date)
		}
		return as[i].ID.Hex() < as[j].ID.Hex()
	})
}
