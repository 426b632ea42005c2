package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dalemusser/flockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestHealthWeights_Validate(t *testing.T) {
	if err := DefaultHealthWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}

	tests := []struct {
		name string
		mod  func(*HealthWeights)
	}{
		{"sum below 100", func(w *HealthWeights) { w.Growth = 10 }},
		{"negative budget", func(w *HealthWeights) { w.Attendance = -5; w.Engagement = 55 }},
		{"NaN budget", func(w *HealthWeights) { w.Frequency = math.NaN() }},
		{"zero optimal frequency", func(w *HealthWeights) { w.OptimalFrequency = 0 }},
		{"zero growth cap", func(w *HealthWeights) { w.GrowthCap = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultHealthWeights()
			tt.mod(&w)
			if err := w.Validate(); !errors.Is(err, ErrBadWeights) {
				t.Errorf("Validate() = %v, want ErrBadWeights", err)
			}
		})
	}
}

func TestScore(t *testing.T) {
	w := DefaultHealthWeights()
	tests := []struct {
		name string
		in   HealthInput
		want int
	}{
		{"empty", HealthInput{}, 0},
		{"perfect", HealthInput{MemberGrowthRate: 20, AttendanceRate: 100, ActivityFrequency: 1.5, GoalCompletionRate: 100, AverageEngagement: 100}, 100},
		{"over targets still capped", HealthInput{MemberGrowthRate: 80, AttendanceRate: 100, ActivityFrequency: 5, GoalCompletionRate: 100, AverageEngagement: 100}, 100},
		{"negative growth contributes nothing", HealthInput{MemberGrowthRate: -30, AttendanceRate: 80}, 20},
		// 25*.8 + 25*.4 + 20*.5 + 15*(0.75/1.5) + 15*(10/20) = 20+10+10+7.5+7.5
		{"mixed", HealthInput{MemberGrowthRate: 10, AttendanceRate: 80, ActivityFrequency: 0.75, GoalCompletionRate: 50, AverageEngagement: 40}, 55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.Score(tt.in)
			if got.Score != tt.want {
				t.Errorf("Score = %d, want %d (%+v)", got.Score, tt.want, got)
			}
		})
	}
}

func TestScore_CustomWeights(t *testing.T) {
	w := HealthWeights{Attendance: 100, OptimalFrequency: 1, GrowthCap: 1}
	got := w.Score(HealthInput{AttendanceRate: 42, AverageEngagement: 100, GoalCompletionRate: 100})
	if got.Score != 42 {
		t.Errorf("Score = %d, want 42", got.Score)
	}
}

func TestScore_Bounds(t *testing.T) {
	w := DefaultHealthWeights()
	vals := []float64{-50, 0, 33.3, 100, 250, math.NaN()}
	for _, a := range vals {
		for _, g := range vals {
			for _, f := range vals {
				got := w.Score(HealthInput{MemberGrowthRate: g, AttendanceRate: a, ActivityFrequency: f, GoalCompletionRate: a, AverageEngagement: g})
				if got.Score < 0 || got.Score > 100 {
					t.Fatalf("Score %d out of bounds", got.Score)
				}
			}
		}
	}
}

func TestRetentionRate(t *testing.T) {
	now := baseTime
	old := now.AddDate(0, 0, -200)
	recent := now.AddDate(0, 0, -10)

	if got := RetentionRate(nil, now, 90); got != 100 {
		t.Errorf("empty roster retention = %d, want 100", got)
	}

	onlyNew := []models.GroupMembership{{JoinedAt: recent, Active: false}}
	if got := RetentionRate(onlyNew, now, 90); got != 100 {
		t.Errorf("no prior members retention = %d, want 100", got)
	}

	members := []models.GroupMembership{
		{JoinedAt: old, Active: true},
		{JoinedAt: old, Active: true},
		{JoinedAt: old, Active: false},
		{JoinedAt: recent, Active: false},
	}
	if got := RetentionRate(members, now, 90); got != 67 {
		t.Errorf("retention = %d, want 67", got)
	}
}

func TestMemberGrowthRate(t *testing.T) {
	now := baseTime
	old := now.AddDate(0, 0, -200)
	recent := now.AddDate(0, 0, -10)
	left := now.AddDate(0, 0, -120)

	members := []models.GroupMembership{
		{JoinedAt: old, Active: true},
		{JoinedAt: old, Active: true},
		{JoinedAt: old, Active: true},
		{JoinedAt: old, Active: true},
		{JoinedAt: old, Active: false, LeftAt: &left}, // gone before the period
		{JoinedAt: recent, Active: true},
	}
	if got := MemberGrowthRate(members, now, 90); math.Abs(got-25) > 1e-9 {
		t.Errorf("growth = %v, want 25", got)
	}
	if got := MemberGrowthRate(nil, now, 90); got != 0 {
		t.Errorf("empty growth = %v, want 0", got)
	}
	if got := MemberGrowthRate(members[5:], now, 90); got != 100 {
		t.Errorf("growth from nothing = %v, want 100", got)
	}
}

func TestActivityFrequency(t *testing.T) {
	now := baseTime
	var acts []models.Activity
	for i := 0; i < 6; i++ {
		acts = append(acts, models.Activity{Date: now.AddDate(0, 0, -i*4)})
	}
	acts = append(acts,
		models.Activity{Date: now.AddDate(0, 0, -2), Cancelled: true},
		models.Activity{Date: now.AddDate(0, 0, -60)},
	)
	// 6 activities over 28 days = 1.5/week
	if got := ActivityFrequency(acts, now, 28); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("frequency = %v, want 1.5", got)
	}
	if got := ActivityFrequency(acts, now, 0); got != 0 {
		t.Errorf("zero period frequency = %v, want 0", got)
	}
}

func TestGoalCompletionRate(t *testing.T) {
	goals := []models.Goal{
		{Status: models.GoalCompleted},
		{Status: models.GoalCompleted},
		{Status: models.GoalInProgress},
		{Status: models.GoalCancelled},
	}
	if got := GoalCompletionRate(goals); got != 67 {
		t.Errorf("rate = %d, want 67", got)
	}
	if got := GoalCompletionRate(nil); got != 0 {
		t.Errorf("empty rate = %d, want 0", got)
	}
}

func TestSummarizeGoals_Overdue(t *testing.T) {
	past := baseTime.AddDate(0, 0, -1)
	future := baseTime.AddDate(0, 1, 0)
	goals := []models.Goal{
		{Status: models.GoalPlanned, TargetDate: &past},
		{Status: models.GoalInProgress, TargetDate: &future},
		{Status: models.GoalCompleted, TargetDate: &past},
	}
	st := SummarizeGoals(goals, baseTime)
	if st.Overdue != 1 {
		t.Errorf("Overdue = %d, want 1", st.Overdue)
	}
	if st.Total != 3 || st.Planned != 1 || st.InProgress != 1 || st.Completed != 1 {
		t.Errorf("counts = %+v", st)
	}
}

func TestGroupHealth_Empty(t *testing.T) {
	rep := DefaultHealthWeights().GroupHealth(nil, nil, nil, baseTime, DefaultPeriodDays)
	if rep.Score.Score != 0 {
		t.Errorf("Score = %d, want 0", rep.Score.Score)
	}
	if rep.RetentionRate != 100 {
		t.Errorf("RetentionRate = %d, want 100", rep.RetentionRate)
	}
}

func TestGroupHealth_Healthy(t *testing.T) {
	now := baseTime
	var members []models.GroupMembership
	var ids []primitive.ObjectID
	for i := 0; i < 5; i++ {
		id := primitive.NewObjectID()
		ids = append(ids, id)
		joined := now.AddDate(-1, 0, 0)
		if i == 4 {
			joined = now.AddDate(0, 0, -20)
		}
		members = append(members, models.GroupMembership{UserID: id, JoinedAt: joined, Active: true})
	}

	var acts []models.Activity
	for d := 0; d < 28; d += 7 {
		for _, off := range []int{0, 3} {
			a := models.Activity{
				ID:                  primitive.NewObjectID(),
				Date:                now.Add(-time.Duration(d+off) * 24 * time.Hour),
				PlannedParticipants: ids,
			}
			for _, id := range ids {
				a.Attendance = append(a.Attendance, models.AttendanceRecord{UserID: id, Status: models.AttendancePresent})
			}
			acts = append(acts, a)
		}
	}
	goals := []models.Goal{{Status: models.GoalCompleted}}

	rep := DefaultHealthWeights().GroupHealth(members, acts, goals, now, 28)

	if rep.Inputs.AttendanceRate != 100 {
		t.Errorf("AttendanceRate = %v, want 100", rep.Inputs.AttendanceRate)
	}
	if rep.Inputs.ActivityFrequency != 2 {
		t.Errorf("ActivityFrequency = %v, want 2", rep.Inputs.ActivityFrequency)
	}
	if rep.Inputs.MemberGrowthRate != 25 {
		t.Errorf("MemberGrowthRate = %v, want 25", rep.Inputs.MemberGrowthRate)
	}
	if rep.ActiveMembers != 5 || rep.PeriodActivities != 8 {
		t.Errorf("counts = %d members, %d activities", rep.ActiveMembers, rep.PeriodActivities)
	}
	if rep.Score.Score < 90 || rep.Score.Score > 100 {
		t.Errorf("Score = %d, want a healthy score in [90,100]", rep.Score.Score)
	}
}

func TestGroupHealth_UpcomingActivityKeepsEngagement(t *testing.T) {
	now := baseTime
	id := primitive.NewObjectID()
	members := []models.GroupMembership{{UserID: id, JoinedAt: now.AddDate(-1, 0, 0), Active: true}}
	var acts []models.Activity
	for i := 1; i <= 3; i++ {
		acts = append(acts, models.Activity{
			ID:                  primitive.NewObjectID(),
			Date:                now.AddDate(0, 0, -7*i),
			PlannedParticipants: []primitive.ObjectID{id},
			Attendance:          []models.AttendanceRecord{{UserID: id, Status: models.AttendancePresent}},
		})
	}
	w := DefaultHealthWeights()
	before := w.GroupHealth(members, acts, nil, now, 90)

	acts = append(acts, models.Activity{
		ID:                  primitive.NewObjectID(),
		Date:                now.AddDate(0, 0, 7),
		PlannedParticipants: []primitive.ObjectID{id},
	})
	after := w.GroupHealth(members, acts, nil, now, 90)

	if after.Inputs.AverageEngagement != before.Inputs.AverageEngagement {
		t.Errorf("AverageEngagement = %v, want %v", after.Inputs.AverageEngagement, before.Inputs.AverageEngagement)
	}
	if after.Score.Score != before.Score.Score {
		t.Errorf("score = %d, want %d", after.Score.Score, before.Score.Score)
	}
}
