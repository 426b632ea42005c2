// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/flockhub/internal/app/system/inputval"
)

// envelope is the body of every JSON response.
//
//	{"success": true, "data": ...}
//	{"success": false, "error": "...", "details": ...}
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteData answers 200 with data.
func WriteData(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, envelope{Success: true, Data: data})
}

// WriteCreated answers 201 with data.
func WriteCreated(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, envelope{Success: true, Data: data})
}

// WriteError answers status with msg and optional details.
func WriteError(w http.ResponseWriter, status int, msg string, details any) {
	write(w, status, envelope{Error: msg, Details: details})
}

// BadRequest answers 400.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusBadRequest, msg, nil)
}

// Invalid answers 400 for a request body or parameter that failed
// validation. Field errors go in details.
func Invalid(w http.ResponseWriter, err error) {
	if verr, ok := err.(*inputval.Error); ok {
		var details any
		if len(verr.Fields) > 0 {
			details = verr.Fields
		}
		WriteError(w, http.StatusBadRequest, verr.Message, details)
		return
	}
	BadRequest(w, err.Error())
}

// Unauthorized answers 401.
func Unauthorized(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "authentication required"
	}
	WriteError(w, http.StatusUnauthorized, msg, nil)
}

// Forbidden answers 403.
func Forbidden(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "you do not have permission to do this"
	}
	WriteError(w, http.StatusForbidden, msg, nil)
}

// NotFound answers 404.
func NotFound(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "not found"
	}
	WriteError(w, http.StatusNotFound, msg, nil)
}

// Conflict answers 409.
func Conflict(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusConflict, msg, nil)
}

// TooManyRequests answers 429.
func TooManyRequests(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusTooManyRequests, msg, nil)
}
