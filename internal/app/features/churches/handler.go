// internal/app/features/churches/handler.go
package churches

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/features/shared"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	churchstore "github.com/dalemusser/flockhub/internal/app/store/churches"
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

// Handler serves the superadmin church endpoints.
type Handler struct {
	Churches *churchstore.Store
	Cascade  *cascade.Deleter
	Log      *zap.Logger
	ErrLog   *apierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Churches: churchstore.New(db),
		Cascade:  cascade.New(db, logger),
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

type createRequest struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Slug        string `json:"slug" validate:"omitempty,max=100"`
	TimeZone    string `json:"time_zone" validate:"required,timezone"`
	ContactInfo string `json:"contact_info" validate:"max=1000"`
}

type updateRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=200"`
	Slug        *string `json:"slug" validate:"omitempty,notblank,max=100"`
	TimeZone    *string `json:"time_zone" validate:"omitempty,timezone"`
	ContactInfo *string `json:"contact_info" validate:"omitempty,max=1000"`
	Status      *string `json:"status" validate:"omitempty,oneof=active disabled"`
}

// List handles GET /churches?status=&q=&after=&before=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.Paging(w, r)
	if !ok {
		return
	}
	status := query.Get(r, "status")
	if status != "" {
		if err := inputval.Var("status", status, "oneof=active disabled"); err != nil {
			apierrors.Invalid(w, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, res, err := h.Churches.List(ctx, churchstore.ListFilter{Status: status, Search: query.Get(r, "q")}, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list churches failed", err, "")
		return
	}
	apierrors.WriteData(w, shared.NewList(rows, res,
		func(c models.Church) string { return c.NameCI },
		func(c models.Church) primitive.ObjectID { return c.ID }))
}

// Create handles POST /churches.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
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

	c, err := h.Churches.Create(ctx, models.Church{
		Name:        req.Name,
		Slug:        req.Slug,
		TimeZone:    req.TimeZone,
		ContactInfo: req.ContactInfo,
	})
	if errors.Is(err, churchstore.ErrDuplicateChurch) {
		apierrors.Conflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create church failed", err, "")
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &c.ID, audit.EventChurchCreated, c.ID, map[string]string{"name": c.Name})
	apierrors.WriteCreated(w, c)
}

// Get handles GET /churches/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.ID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Churches.GetByID(ctx, id)
	if errors.Is(err, churchstore.ErrNotFound) {
		apierrors.NotFound(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load church failed", err, "")
		return
	}
	apierrors.WriteData(w, c)
}

// Update handles PATCH /churches/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
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

	c, err := h.Churches.Update(ctx, id, churchstore.Update{
		Name:        req.Name,
		Slug:        req.Slug,
		TimeZone:    req.TimeZone,
		ContactInfo: req.ContactInfo,
		Status:      req.Status,
	})
	switch {
	case errors.Is(err, churchstore.ErrNotFound):
		apierrors.NotFound(w, err.Error())
		return
	case errors.Is(err, churchstore.ErrDuplicateChurch):
		apierrors.Conflict(w, err.Error())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "update church failed", err, "")
		return
	}
	h.AuditLog.Admin(r.Context(), r, actorID, &c.ID, audit.EventChurchUpdated, c.ID, nil)
	apierrors.WriteData(w, c)
}

// Delete handles DELETE /churches/{id}. Everything scoped to the church
// goes with it.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, ok := shared.ID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	found, err := h.Cascade.Church(ctx, id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete church failed", err, "")
		return
	}
	if !found {
		apierrors.NotFound(w, churchstore.ErrNotFound.Error())
		return
	}
	h.Log.Info("church deleted", zap.String("church_id", id.Hex()))
	h.AuditLog.Admin(r.Context(), r, actorID, nil, audit.EventChurchDeleted, id, nil)
	apierrors.WriteData(w, map[string]string{"deleted": id.Hex()})
}
