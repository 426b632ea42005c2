package goalstore

import (
	"sort"

	"github.com/dalemusser/flockhub/internal/domain/models"
)

// sortByTarget orders goals by target date, undated goals last. The sort
// is stable so equal targets keep creation order.
func sortByTarget(goals []models.Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		a, b := goals[i].TargetDate, goals[j].TargetDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
}
