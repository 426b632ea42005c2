// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/flockhub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// listItem is one audit event with actor and target names resolved.
type listItem struct {
	ID         primitive.ObjectID  `json:"id"`
	CreatedAt  time.Time           `json:"created_at"`
	ChurchID   *primitive.ObjectID `json:"church_id,omitempty"`
	Category   string              `json:"category"`
	EventType  string              `json:"event_type"`
	ActorID    *primitive.ObjectID `json:"actor_id,omitempty"`
	ActorName  string              `json:"actor_name,omitempty"`
	UserID     *primitive.ObjectID `json:"user_id,omitempty"`
	TargetName string              `json:"target_name,omitempty"`
	TargetID   *primitive.ObjectID `json:"target_id,omitempty"`
	IP         string              `json:"ip"`
	Success    bool                `json:"success"`
	Reason     string              `json:"failure_reason,omitempty"`
	Details    map[string]string   `json:"details,omitempty"`
}

type listData struct {
	Items      []listItem `json:"items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	Total      int64      `json:"total"`
	TotalPages int        `json:"total_pages"`
}

// categoryOption is one category with the event types filed under it.
type categoryOption struct {
	Value      string   `json:"value"`
	Label      string   `json:"label"`
	EventTypes []string `json:"event_types"`
}

// allCategories returns the categories available for filtering.
func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Authentication", EventTypes: eventTypesForCategory(audit.CategoryAuth)},
		{Value: audit.CategoryAdmin, Label: "Administration", EventTypes: eventTypesForCategory(audit.CategoryAdmin)},
	}
}

// eventTypesForCategory returns the event types of category, or every
// event type when category is empty.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
	}

	adminEvents := []string{
		audit.EventChurchCreated,
		audit.EventChurchUpdated,
		audit.EventChurchDeleted,
		audit.EventBranchCreated,
		audit.EventBranchDeleted,
		audit.EventDepartmentSaved,
		audit.EventUserCreated,
		audit.EventUserUpdated,
		audit.EventUserDeleted,
		audit.EventGroupCreated,
		audit.EventGroupUpdated,
		audit.EventGroupDeleted,
		audit.EventMemberAdded,
		audit.EventMemberRemoved,
		audit.EventMemberRole,
		audit.EventActivityDeleted,
		audit.EventAttendanceMarked,
		audit.EventGoalStatus,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		return all
	default:
		return nil
	}
}
