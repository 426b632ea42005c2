package inputval

import (
	"strings"

	"github.com/dalemusser/flockhub/internal/domain/models"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type customTag struct {
	check   validator.Func
	message string
}

var customTags = map[string]customTag{
	"notblank": {
		check:   func(fl validator.FieldLevel) bool { return strings.TrimSpace(fl.Field().String()) != "" },
		message: "cannot be blank",
	},
	"objectid": {
		check: func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || primitive.IsValidObjectID(s)
		},
		message: "must be a valid id",
	},
	"emailaddr": {
		check:   func(fl validator.FieldLevel) bool { return IsValidEmail(fl.Field().String()) },
		message: "must be a valid email address",
	},
	"userrole": {
		check:   func(fl validator.FieldLevel) bool { return IsValidUserRole(fl.Field().String()) },
		message: "must be one of " + strings.Join(models.UserRoles, ", "),
	},
	"grouprole": {
		check:   func(fl validator.FieldLevel) bool { return models.GroupRole(fl.Field().String()).IsValid() },
		message: "must be leader, assistant-leader or member",
	},
	"attendance": {
		check:   func(fl validator.FieldLevel) bool { return models.AttendanceStatus(fl.Field().String()).IsValid() },
		message: "must be present, late, absent or excused",
	},
	"goalstatus": {
		check:   func(fl validator.FieldLevel) bool { return models.GoalStatus(fl.Field().String()).IsValid() },
		message: "must be planned, in-progress, completed or cancelled",
	},
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	if t, ok := customTags[fe.Tag()]; ok {
		return t.message
	}
	return fe.Error()
}

// IsValidUserRole reports whether s names one of the account roles.
func IsValidUserRole(s string) bool {
	for _, r := range models.UserRoles {
		if s == r {
			return true
		}
	}
	return false
}

// IsValidAuthMethod reports whether s (case-insensitive) is a supported
// sign-in method.
func IsValidAuthMethod(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range AllowedAuthMethodsList() {
		if s == m {
			return true
		}
	}
	return false
}

// AllowedAuthMethodsList returns the sign-in methods in display order.
func AllowedAuthMethodsList() []string {
	return []string{models.AuthPassword, models.AuthGoogle}
}
