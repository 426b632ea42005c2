// internal/app/features/errors/logger.go
package errors

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorLogger logs unexpected failures and answers 500 with a correlation
// id the client can quote.
type ErrorLogger struct {
	Log *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

// LogServerError logs err under msg and answers 500 with userMsg. The
// underlying error is never sent to the client.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	id := uuid.NewString()
	if e != nil && e.Log != nil {
		e.Log.Error(msg,
			zap.Error(err),
			zap.String("error_id", id),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
	}
	if userMsg == "" {
		userMsg = "An unexpected error occurred."
	}
	WriteError(w, http.StatusInternalServerError, userMsg, map[string]string{"error_id": id})
}
