// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/analytics"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS, body limits); this
// struct covers everything specific to FlockHub. It is passed to every
// lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: flockhub-session)
	SessionDomain string // Cookie domain (blank means current host)
	SessionMaxAge time.Duration

	// Bearer tokens for API clients. Blank JWTSecret disables them.
	JWTSecret string
	JWTTTL    time.Duration

	// Base URL used for OAuth callbacks and calendar feed links
	BaseURL string // e.g., "https://flockhub.example.org" or "http://localhost:3000"

	// Google OAuth; login with Google is off when ClientID is blank
	GoogleClientID     string
	GoogleClientSecret string

	// FeedKey signs calendar feed tokens. Defaults to SessionKey.
	FeedKey string

	// Audit logging destinations: all, db, log or off
	AuditLogAuth  string
	AuditLogAdmin string

	// Group health scoring
	HealthWeights    analytics.HealthWeights
	HealthPeriodDays int

	// Health snapshot worker
	SnapshotInterval time.Duration // 0 disables the worker

	// SuperAdmin bootstrap
	SuperAdminEmail    string
	SuperAdminPassword string // blank means Google-only sign in
}
