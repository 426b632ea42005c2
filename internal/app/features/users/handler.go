// internal/app/features/users/handler.go
package users

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/cascade"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the user directory of the caller's church.
type Handler struct {
	Users    *userstore.Store
	Cascade  *cascade.Deleter
	Log      *zap.Logger
	ErrLog   *apierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		Cascade:  cascade.New(db, logger),
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

type createRequest struct {
	roleVariant
	FullName string `json:"full_name" validate:"notblank,max=200"`
	Email    string `json:"email" validate:"required,emailaddr"`
	Phone    string `json:"phone" validate:"max=50"`
	BranchID string `json:"branch_id" validate:"objectid"`
	// Empty means the account signs in with Google only.
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
}

type updateRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,notblank,max=200"`
	Email    *string `json:"email" validate:"omitempty,emailaddr"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
	BranchID *string `json:"branch_id" validate:"omitempty,objectid"`
	Status   *string `json:"status" validate:"omitempty,oneof=active disabled"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// storeError maps userstore errors onto responses. It reports false when
// err is nil.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, userstore.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, userstore.ErrDuplicateEmail):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, userstore.ErrBadEmail),
		errors.Is(err, userstore.ErrBadRole),
		errors.Is(err, userstore.ErrBadStatus),
		errors.Is(err, userstore.ErrChurchNeeded),
		errors.Is(err, userstore.ErrDetailsMismatch):
		apierrors.BadRequest(w, err.Error())
	default:
		h.ErrLog.LogServerError(w, r, op+" failed", err, "")
	}
	return true
}

// List handles GET /users?role=&status=&branch=&q=&after=&before=&limit=.
// A superadmin passing role=superadmin without ?church= lists superadmins.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	role := query.Get(r, "role")
	if role != "" {
		if err := inputval.Var("role", role, "userrole"); err != nil {
			apierrors.Invalid(w, err)
			return
		}
	}
	status := query.Get(r, "status")
	if err := inputval.Var("status", status, "omitempty,oneof=active disabled"); err != nil {
		apierrors.Invalid(w, err)
		return
	}

	var churchID *primitive.ObjectID
	if !(actor.IsSuperAdmin() && role == models.RoleSuperAdmin && query.Get(r, "church") == "") {
		id, ok := shared.Church(w, r)
		if !ok {
			return
		}
		churchID = &id
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

	rows, res, err := h.Users.List(ctx, churchID, userstore.ListFilter{
		Role:     role,
		Status:   status,
		BranchID: branchID,
		Search:   query.Get(r, "q"),
	}, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list users failed", err, "")
		return
	}
	apierrors.WriteData(w, shared.NewList(rows, res,
		func(u models.User) string { return u.FullNameCI },
		func(u models.User) primitive.ObjectID { return u.ID }))
}

// Create handles POST /users. Only superadmins create superadmins.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}
	details, err := req.details()
	if err != nil {
		apierrors.Invalid(w, err)
		return
	}

	u := models.User{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	}
	u.SetDetails(details)
	if u.Role == models.RoleSuperAdmin {
		if !actor.IsSuperAdmin() {
			apierrors.Forbidden(w, "only superadmins may create superadmins")
			return
		}
	} else {
		churchID, ok := shared.Church(w, r)
		if !ok {
			return
		}
		u.ChurchID = &churchID
		if req.BranchID != "" {
			b, _ := primitive.ObjectIDFromHex(req.BranchID)
			u.BranchID = &b
		}
	}
	if req.Password == "" {
		u.AuthMethod = models.AuthGoogle
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	created, err := h.Users.Create(ctx, u, req.Password)
	if h.storeError(w, r, "create user", err) {
		return
	}
	h.AuditLog.UserChange(r.Context(), r, actorID, created.ID, created.ChurchID, audit.EventUserCreated,
		map[string]string{"role": created.Role, "email": created.Email})
	apierrors.WriteCreated(w, created)
}

// Get handles GET /users/{id}.
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

	u, err := h.Users.Get(ctx, churchID, id)
	if h.storeError(w, r, "load user", err) {
		return
	}
	apierrors.WriteData(w, u)
}

// Update handles PATCH /users/{id}. Admins cannot disable themselves.
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
	if id == actorID && req.Status != nil && *req.Status == models.StatusDisabled {
		apierrors.BadRequest(w, "you cannot disable your own account")
		return
	}

	upd := userstore.Update{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Status:   req.Status,
	}
	if req.BranchID != nil {
		b, _ := primitive.ObjectIDFromHex(*req.BranchID)
		upd.BranchID = &b
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Update(ctx, churchID, id, upd)
	if h.storeError(w, r, "update user", err) {
		return
	}
	details := map[string]string{}
	if req.Status != nil {
		details["status"] = *req.Status
	}
	h.AuditLog.UserChange(r.Context(), r, actorID, u.ID, &churchID, audit.EventUserUpdated, details)
	apierrors.WriteData(w, u)
}

// SetRole handles PUT /users/{id}/role with a role and its detail block.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
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
	var req roleVariant
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}
	if req.Role == models.RoleSuperAdmin {
		apierrors.BadRequest(w, "church users cannot be made superadmins")
		return
	}
	if id == actorID {
		apierrors.BadRequest(w, "you cannot change your own role")
		return
	}
	details, err := req.details()
	if err != nil {
		apierrors.Invalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.SetRole(ctx, churchID, id, details)
	if h.storeError(w, r, "set user role", err) {
		return
	}
	h.AuditLog.UserChange(r.Context(), r, actorID, u.ID, &churchID, audit.EventUserUpdated,
		map[string]string{"role": u.Role})
	apierrors.WriteData(w, u)
}

// SetPassword handles PUT /users/{id}/password.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
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
	var req passwordRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		apierrors.Invalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	// SetPassword is not church-scoped; check ownership first.
	if _, err := h.Users.Get(ctx, churchID, id); h.storeError(w, r, "load user", err) {
		return
	}
	if h.storeError(w, r, "set password", h.Users.SetPassword(ctx, id, req.Password)) {
		return
	}
	h.AuditLog.UserChange(r.Context(), r, actorID, id, &churchID, audit.EventUserUpdated,
		map[string]string{"password": "reset"})
	apierrors.WriteData(w, map[string]bool{"password_set": true})
}

// Delete handles DELETE /users/{id}. Group memberships go with the user;
// attendance records on past activities stay.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if id == actorID {
		apierrors.BadRequest(w, "you cannot delete your own account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	found, err := h.Cascade.User(ctx, churchID, id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete user failed", err, "")
		return
	}
	if !found {
		apierrors.NotFound(w, userstore.ErrNotFound.Error())
		return
	}
	h.AuditLog.UserChange(r.Context(), r, actorID, id, &churchID, audit.EventUserDeleted, nil)
	apierrors.WriteData(w, map[string]string{"deleted": id.Hex()})
}
