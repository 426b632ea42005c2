// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/analytics"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of FlockHub's environment variables.
const EnvPrefix = "FLOCKHUB"

const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for FlockHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: FLOCKHUB_MONGO_URI, FLOCKHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "flockhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "flockhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// API bearer tokens
	{Name: "jwt_secret", Default: "", Desc: "HMAC secret for API bearer tokens (blank disables them; required outside dev)"},
	{Name: "jwt_ttl", Default: "12h", Desc: "Bearer token lifetime"},

	// Base URL for OAuth callbacks and calendar feed links
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Public base URL of this server"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	{Name: "feed_key", Default: "", Desc: "Signing key for calendar feed links (defaults to session_key)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Group health weights; the five budgets must add up to 100
	{Name: "health_weight_attendance", Default: 25, Desc: "Health points for attendance rate"},
	{Name: "health_weight_engagement", Default: 25, Desc: "Health points for average member engagement"},
	{Name: "health_weight_goals", Default: 20, Desc: "Health points for goal completion"},
	{Name: "health_weight_frequency", Default: 15, Desc: "Health points for activity frequency"},
	{Name: "health_weight_growth", Default: 15, Desc: "Health points for member growth"},
	{Name: "health_optimal_frequency", Default: "1.5", Desc: "Activities per week that earn the full frequency budget"},
	{Name: "health_growth_cap", Default: 20, Desc: "Growth percentage that earns the full growth budget"},
	{Name: "health_period_days", Default: analytics.DefaultPeriodDays, Desc: "Look-back period of stored health snapshots, in days"},

	{Name: "snapshot_interval", Default: "1h", Desc: "How often group health snapshots are recomputed (0 disables)"},

	// SuperAdmin bootstrap
	{Name: "superadmin_email", Default: "", Desc: "Email of the superadmin user (promotes/creates on startup)"},
	{Name: "superadmin_password", Default: "", Desc: "Initial password of a newly created superadmin (blank: Google sign-in only)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, FLOCKHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	optimal, err := strconv.ParseFloat(appValues.String("health_optimal_frequency"), 64)
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("health_optimal_frequency: %w", err)
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		JWTSecret: appValues.String("jwt_secret"),
		JWTTTL:    appValues.Duration("jwt_ttl", 12*time.Hour),

		BaseURL: appValues.String("base_url"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		FeedKey: appValues.String("feed_key"),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		HealthWeights: analytics.HealthWeights{
			Attendance:       float64(appValues.Int("health_weight_attendance")),
			Engagement:       float64(appValues.Int("health_weight_engagement")),
			GoalCompletion:   float64(appValues.Int("health_weight_goals")),
			Frequency:        float64(appValues.Int("health_weight_frequency")),
			Growth:           float64(appValues.Int("health_weight_growth")),
			OptimalFrequency: optimal,
			GrowthCap:        float64(appValues.Int("health_growth_cap")),
		},
		HealthPeriodDays: appValues.Int("health_period_days"),
		SnapshotInterval: appValues.Duration("snapshot_interval", time.Hour),

		SuperAdminEmail:    appValues.String("superadmin_email"),
		SuperAdminPassword: appValues.String("superadmin_password"),
	}
	if appCfg.FeedKey == "" {
		appCfg.FeedKey = appCfg.SessionKey
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// FlockHub checks the MongoDB URI format before connecting, the health
// weights, and that production does not run on development secrets.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

func validateApp(env string, appCfg AppConfig) error {
	if err := appCfg.HealthWeights.Validate(); err != nil {
		return err
	}
	if appCfg.HealthPeriodDays < 1 || appCfg.HealthPeriodDays > 365 {
		return fmt.Errorf("health_period_days must be between 1 and 365, got %d", appCfg.HealthPeriodDays)
	}
	if appCfg.SnapshotInterval < 0 {
		return errors.New("snapshot_interval must not be negative")
	}
	if len(appCfg.SessionKey) < 32 {
		return errors.New("session_key must be at least 32 characters")
	}
	for name, mode := range map[string]string{"audit_log_auth": appCfg.AuditLogAuth, "audit_log_admin": appCfg.AuditLogAdmin} {
		switch mode {
		case auditlog.ModeAll, auditlog.ModeDB, auditlog.ModeLog, auditlog.ModeOff:
		default:
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", name, mode)
		}
	}
	if env != "dev" {
		if appCfg.JWTSecret == "" {
			return errors.New("jwt_secret is required outside dev")
		}
		if appCfg.SessionKey == devSessionKey {
			return errors.New("session_key must be changed outside dev")
		}
	}
	return nil
}
