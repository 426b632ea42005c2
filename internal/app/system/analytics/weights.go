// Package analytics computes attendance summaries, member engagement
// scores and group health from already-loaded group data.
//
// Every function here is pure: inputs are never mutated, nothing is read
// from the clock (callers pass "now"), and there is no state shared between
// calls. Handlers fetch and scope the data, the engine only derives numbers.
//
// Empty inputs are not errors. They resolve to documented defaults: 0 for
// rates and scores, 100 for retention when nobody was around at the start
// of the period.
package analytics

import (
	"errors"
	"fmt"
	"math"
)

// HealthWeights are the point budgets of the group health score and the
// targets its inputs are measured against. They are product decisions,
// so they are loaded from configuration rather than hard-coded at the
// call sites.
type HealthWeights struct {
	Attendance     float64 // points for attendance rate
	Engagement     float64 // points for average member engagement
	GoalCompletion float64 // points for goal completion rate
	Frequency      float64 // points for activity frequency
	Growth         float64 // points for member growth

	// OptimalFrequency is the activities-per-week rate that earns the full
	// frequency budget.
	OptimalFrequency float64

	// GrowthCap is the growth percentage that earns the full growth budget.
	GrowthCap float64
}

// DefaultHealthWeights returns the stock weighting: attendance 25,
// engagement 25, goals 20, frequency 15 (target 1.5/week), growth 15
// (full marks at 20% growth).
func DefaultHealthWeights() HealthWeights {
	return HealthWeights{
		Attendance:       25,
		Engagement:       25,
		GoalCompletion:   20,
		Frequency:        15,
		Growth:           15,
		OptimalFrequency: 1.5,
		GrowthCap:        20,
	}
}

// ErrBadWeights is wrapped by Validate.
var ErrBadWeights = errors.New("invalid health weights")

// Validate checks that the budgets are non-negative, add up to 100 and
// that both targets are positive.
func (w HealthWeights) Validate() error {
	parts := []float64{w.Attendance, w.Engagement, w.GoalCompletion, w.Frequency, w.Growth}
	sum := 0.0
	for _, p := range parts {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: negative or non-finite budget", ErrBadWeights)
		}
		sum += p
	}
	if math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("%w: budgets sum to %g, want 100", ErrBadWeights, sum)
	}
	if w.OptimalFrequency <= 0 {
		return fmt.Errorf("%w: optimal frequency must be positive", ErrBadWeights)
	}
	if w.GrowthCap <= 0 {
		return fmt.Errorf("%w: growth cap must be positive", ErrBadWeights)
	}
	return nil
}

// Engagement score budgets. These follow the member engagement formula and
// are not configurable.
const (
	attendancePoints    = 40.0
	participationPoints = 30.0
	consistencyPoints   = 20.0
	diversityPoints     = 10.0

	// participationInvitationCap bounds the denominator of the recent
	// participation ratio.
	participationInvitationCap = 10

	// diversityPerActivity is awarded for each recent activity attended.
	diversityPerActivity = 2.0
)

// percent returns round(100*part/whole), or 0 when whole is not positive.
func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}

// clampScore clamps v to [0,100] and rounds to the nearest integer.
func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
