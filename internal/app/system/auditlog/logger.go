// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/flockhub/internal/app/store/audit"
	"github.com/dalemusser/flockhub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category of events.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"
	ModeLog = "log"
	ModeOff = "off"
)

// Config selects where each category of events goes. Empty means ModeAll.
type Config struct {
	Auth  string
	Admin string
}

// Logger writes audit events to the audit store and to zap.
// A nil *Logger is a valid no-op, which keeps handler tests short.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) mode(category string) string {
	var m string
	switch category {
	case audit.CategoryAuth:
		m = l.config.Auth
	case audit.CategoryAdmin:
		m = l.config.Admin
	}
	if m == "" {
		return ModeAll
	}
	return m
}

func (l *Logger) logToZap(e audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", e.Category),
		zap.String("event_type", e.EventType),
		zap.Bool("success", e.Success),
		zap.String("ip", e.IP),
	}
	for name, id := range map[string]*primitive.ObjectID{
		"user_id":   e.UserID,
		"actor_id":  e.ActorID,
		"target_id": e.TargetID,
		"church_id": e.ChurchID,
	} {
		if id != nil {
			fields = append(fields, zap.String(name, id.Hex()))
		}
	}
	if e.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", e.FailureReason))
	}
	for k, v := range e.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if e.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records e according to the category's configured mode. Store
// failures are logged, never returned: auditing must not fail a request.
func (l *Logger) Log(ctx context.Context, e audit.Event) {
	if l == nil {
		return
	}
	mode := l.mode(e.Category)
	if mode == ModeOff {
		return
	}
	if mode == ModeAll || mode == ModeLog {
		l.logToZap(e)
	}
	if mode == ModeAll || mode == ModeDB {
		if err := l.store.Log(ctx, e); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", e.EventType))
		}
	}
}

func fromRequest(r *http.Request, e audit.Event) audit.Event {
	e.IP = ratelimit.ClientIP(r)
	e.UserAgent = r.UserAgent()
	return e
}

// --- Authentication events ---

// LoginSuccess records a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, churchID *primitive.ObjectID, authMethod, email string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		ChurchID:  churchID,
		Success:   true,
		Details:   map[string]string{"auth_method": authMethod, "email": email},
	}))
}

// LoginFailed records a rejected sign-in. userID is nil when no account
// matched the email.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType string, userID, churchID *primitive.ObjectID, email, reason string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		ChurchID:      churchID,
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"email": email},
	}))
}

// Logout records a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID primitive.ObjectID, churchID *primitive.ObjectID) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    &userID,
		ChurchID:  churchID,
		Success:   true,
	}))
}

// --- Admin events ---

// Admin records a successful administrative change to targetID.
func (l *Logger) Admin(ctx context.Context, r *http.Request, actorID primitive.ObjectID, churchID *primitive.ObjectID, eventType string, targetID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   &actorID,
		TargetID:  &targetID,
		ChurchID:  churchID,
		Success:   true,
		Details:   details,
	}))
}

// UserChange records an admin change whose target is a user account, so the
// event also shows up in that user's history.
func (l *Logger) UserChange(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, churchID *primitive.ObjectID, eventType string, details map[string]string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   &actorID,
		UserID:    &userID,
		TargetID:  &userID,
		ChurchID:  churchID,
		Success:   true,
		Details:   details,
	}))
}
