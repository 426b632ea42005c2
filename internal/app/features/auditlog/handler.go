// internal/app/features/auditlog/handler.go
package auditlog

import (
	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Events *audit.Store
	Users  *userstore.Store
	Log    *zap.Logger
	ErrLog *apierrors.ErrorLogger
}

// NewHandler constructs the audit log feature handler bound to the given
// Mongo database and logger.
func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: audit.New(db),
		Users:  userstore.New(db),
		Log:    logger,
		ErrLog: errLog,
	}
}
