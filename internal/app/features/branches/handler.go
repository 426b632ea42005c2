// internal/app/features/branches/handler.go
package branches

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	branchstore "github.com/dalemusser/flockhub/internal/app/store/branches"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/inputval"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the branch endpoints of the caller's church.
type Handler struct {
	DB       *mongo.Database
	Branches *branchstore.Store
	Log      *zap.Logger
	ErrLog   *apierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Branches: branchstore.New(db),
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

type createRequest struct {
	Name     string `json:"name" validate:"notblank,max=200"`
	City     string `json:"city" validate:"max=200"`
	Address  string `json:"address" validate:"max=500"`
	TimeZone string `json:"time_zone" validate:"required,timezone"`
}

type updateRequest struct {
	Name     *string `json:"name" validate:"omitempty,notblank,max=200"`
	City     *string `json:"city" validate:"omitempty,max=200"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	TimeZone *string `json:"time_zone" validate:"omitempty,timezone"`
	Status   *string `json:"status" validate:"omitempty,oneof=active disabled"`
}

// List handles GET /branches?status=&q=&after=&before=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	churchID, ok := shared.Church(w, r)
	if !ok {
		return
	}
	p, ok := shared.Paging(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, res, err := h.Branches.List(ctx, churchID, query.Get(r, "status"), query.Get(r, "q"), p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list branches failed", err, "")
		return
	}
	apierrors.WriteData(w, shared.NewList(rows, res,
		func(b models.Branch) string { return b.NameCI },
		func(b models.Branch) primitive.ObjectID { return b.ID }))
}

// Create handles POST /branches.
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

	b, err := h.Branches.Create(ctx, models.Branch{
		ChurchID: churchID,
		Name:     req.Name,
		City:     req.City,
		Address:  req.Address,
		TimeZone: req.TimeZone,
	})
	if errors.Is(err, branchstore.ErrDuplicateBranch) {
		apierrors.Conflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create branch failed", err, "")
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &churchID, audit.EventBranchCreated, b.ID, map[string]string{"name": b.Name})
	apierrors.WriteCreated(w, b)
}

// Get handles GET /branches/{id}.
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

	b, err := h.Branches.Get(ctx, churchID, id)
	if errors.Is(err, branchstore.ErrNotFound) {
		apierrors.NotFound(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load branch failed", err, "")
		return
	}
	apierrors.WriteData(w, b)
}

// Update handles PATCH /branches/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	b, err := h.Branches.Update(ctx, churchID, id, branchstore.Update{
		Name:     req.Name,
		City:     req.City,
		Address:  req.Address,
		TimeZone: req.TimeZone,
		Status:   req.Status,
	})
	switch {
	case errors.Is(err, branchstore.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, branchstore.ErrDuplicateBranch):
		apierrors.Conflict(w, err.Error())
	case err != nil:
		h.ErrLog.LogServerError(w, r, "update branch failed", err, "")
	default:
		apierrors.WriteData(w, b)
	}
}

// Delete handles DELETE /branches/{id}. A branch still referenced by
// groups or departments is kept; disable it instead.
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	for _, coll := range []string{"groups", "departments"} {
		n, err := h.DB.Collection(coll).CountDocuments(ctx, bson.M{"church_id": churchID, "branch_id": id})
		if err != nil {
			h.ErrLog.LogServerError(w, r, "count branch references failed", err, "")
			return
		}
		if n > 0 {
			apierrors.Conflict(w, "branch still has "+coll+"; move or delete them first")
			return
		}
	}

	n, err := h.Branches.Delete(ctx, churchID, id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete branch failed", err, "")
		return
	}
	if n == 0 {
		apierrors.NotFound(w, branchstore.ErrNotFound.Error())
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &churchID, audit.EventBranchDeleted, id, nil)
	apierrors.WriteData(w, map[string]string{"deleted": id.Hex()})
}
