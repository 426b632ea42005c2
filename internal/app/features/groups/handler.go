// internal/app/features/groups/handler.go
package groups

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	branchstore "github.com/dalemusser/flockhub/internal/app/store/branches"
	departmentstore "github.com/dalemusser/flockhub/internal/app/store/departments"
	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/flockhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/cascade"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature:
// group CRUD and roster management.
type Handler struct {
	DB          *mongo.Database
	Groups      *groupstore.Store
	Memberships *membershipstore.Store
	Users       *userstore.Store
	Branches    *branchstore.Store
	Departments *departmentstore.Store
	Cascade     *cascade.Deleter
	Access      *shared.GroupAccess
	Log         *zap.Logger
	ErrLog      *apierrors.ErrorLogger
	AuditLog    *auditlog.Logger
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	groups := groupstore.New(db)
	members := membershipstore.New(db)
	return &Handler{
		DB:          db,
		Groups:      groups,
		Memberships: members,
		Users:       userstore.New(db),
		Branches:    branchstore.New(db),
		Departments: departmentstore.New(db),
		Cascade:     cascade.New(db, logger),
		Access: &shared.GroupAccess{
			Groups:  groups,
			Leaders: members,
			Members: members,
			ErrLog:  errLog,
		},
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

// checkRefs verifies the branch and department belong to churchID. It
// answers 400 and returns false when one does not.
func (h *Handler) checkRefs(ctx context.Context, w http.ResponseWriter, r *http.Request, churchID primitive.ObjectID, branchID, deptID *primitive.ObjectID) bool {
	if branchID != nil {
		_, err := h.Branches.Get(ctx, churchID, *branchID)
		if errors.Is(err, branchstore.ErrNotFound) {
			apierrors.BadRequest(w, "branch_id does not name a branch of this church")
			return false
		}
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load branch failed", err, "")
			return false
		}
	}
	if deptID != nil {
		_, err := h.Departments.Get(ctx, churchID, *deptID)
		if errors.Is(err, departmentstore.ErrNotFound) {
			apierrors.BadRequest(w, "department_id does not name a department of this church")
			return false
		}
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load department failed", err, "")
			return false
		}
	}
	return true
}

func optionalID(hex string) *primitive.ObjectID {
	if hex == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &id
}
