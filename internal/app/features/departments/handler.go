// internal/app/features/departments/handler.go
package departments

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	branchstore "github.com/dalemusser/flockhub/internal/app/store/branches"
	departmentstore "github.com/dalemusser/flockhub/internal/app/store/departments"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the department endpoints of the caller's church.
type Handler struct {
	Departments *departmentstore.Store
	Branches    *branchstore.Store
	Users       *userstore.Store
	Log         *zap.Logger
	ErrLog      *apierrors.ErrorLogger
	AuditLog    *auditlog.Logger
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Departments: departmentstore.New(db),
		Branches:    branchstore.New(db),
		Users:       userstore.New(db),
		Log:         logger,
		ErrLog:      errLog,
		AuditLog:    audit,
	}
}

type createRequest struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
	BranchID    string `json:"branch_id" validate:"objectid"`
	HeadUserID  string `json:"head_user_id" validate:"objectid"`
}

// updateRequest uses "" in branch_id or head_user_id to clear the reference.
type updateRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Status      *string `json:"status" validate:"omitempty,oneof=active disabled"`
	BranchID    *string `json:"branch_id" validate:"omitempty,objectid"`
	HeadUserID  *string `json:"head_user_id" validate:"omitempty,objectid"`
}

// List handles GET /departments?branch=&q=&after=&before=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	branchID, ok := shared.QueryID(w, r, "branch")
	if !ok {
		return
	}
	p, ok := shared.Paging(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, res, err := h.Departments.List(ctx, churchID, branchID, query.Get(r, "q"), p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list departments failed", err, "")
		return
	}
	apierrors.WriteData(w, shared.NewList(rows, res,
		func(d models.Department) string { return d.NameCI },
		func(d models.Department) primitive.ObjectID { return d.ID }))
}

// checkRefs verifies the branch and head user belong to churchID. It
// answers 400 and returns false when one does not.
func (h *Handler) checkRefs(ctx context.Context, w http.ResponseWriter, r *http.Request, churchID primitive.ObjectID, branchID, headID *primitive.ObjectID) bool {
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
	if headID != nil {
		_, err := h.Users.Get(ctx, churchID, *headID)
		if errors.Is(err, userstore.ErrNotFound) {
			apierrors.BadRequest(w, "head_user_id does not name a user of this church")
			return false
		}
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load head user failed", err, "")
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

// Create handles POST /departments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	branchID, headID := optionalID(req.BranchID), optionalID(req.HeadUserID)
	if !h.checkRefs(ctx, w, r, churchID, branchID, headID) {
		return
	}

	d, err := h.Departments.Create(ctx, models.Department{
		ChurchID:    churchID,
		BranchID:    branchID,
		Name:        req.Name,
		Description: req.Description,
		HeadUserID:  headID,
	})
	if errors.Is(err, departmentstore.ErrDuplicateDepartment) {
		apierrors.Conflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create department failed", err, "")
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &churchID, audit.EventDepartmentSaved, d.ID, map[string]string{"name": d.Name})
	apierrors.WriteCreated(w, d)
}

// Get handles GET /departments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	id, ok := shared.ID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	d, err := h.Departments.Get(ctx, churchID, id)
	if errors.Is(err, departmentstore.ErrNotFound) {
		apierrors.NotFound(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load department failed", err, "")
		return
	}
	apierrors.WriteData(w, d)
}

// Update handles PATCH /departments/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	id, ok := shared.ID(w, r, "id")
	if !ok {
		return
	}
	var req updateRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}

	upd := departmentstore.Update{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	}
	if req.BranchID != nil {
		upd.BranchID = optionalID(*req.BranchID)
		upd.ClearBranch = upd.BranchID == nil
	}
	if req.HeadUserID != nil {
		upd.HeadUserID = optionalID(*req.HeadUserID)
		upd.ClearHead = upd.HeadUserID == nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if !h.checkRefs(ctx, w, r, churchID, upd.BranchID, upd.HeadUserID) {
		return
	}

	d, err := h.Departments.Update(ctx, churchID, id, upd)
	switch {
	case errors.Is(err, departmentstore.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, departmentstore.ErrDuplicateDepartment):
		apierrors.Conflict(w, err.Error())
	case err != nil:
		h.ErrLog.LogServerError(w, r, "update department failed", err, "")
	default:
		h.AuditLog.Admin(r.Context(), r, actorID, &churchID, audit.EventDepartmentSaved, d.ID, nil)
		apierrors.WriteData(w, d)
	}
}

// Delete handles DELETE /departments/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	id, ok := shared.ID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Departments.Delete(ctx, churchID, id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete department failed", err, "")
		return
	}
	if n == 0 {
		apierrors.NotFound(w, departmentstore.ErrNotFound.Error())
		return
	}
	apierrors.WriteData(w, map[string]string{"deleted": id.Hex()})
}
