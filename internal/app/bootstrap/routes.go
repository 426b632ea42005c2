// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	activitiesfeature "github.com/dalemusser/flockhub/internal/app/features/activities"
	auditlogfeature "github.com/dalemusser/flockhub/internal/app/features/auditlog"
	authgooglefeature "github.com/dalemusser/flockhub/internal/app/features/authgoogle"
	branchesfeature "github.com/dalemusser/flockhub/internal/app/features/branches"
	churchesfeature "github.com/dalemusser/flockhub/internal/app/features/churches"
	dashboardfeature "github.com/dalemusser/flockhub/internal/app/features/dashboard"
	departmentsfeature "github.com/dalemusser/flockhub/internal/app/features/departments"
	apierrors "github.com/dalemusser/flockhub/internal/app/features/errors"
	goalsfeature "github.com/dalemusser/flockhub/internal/app/features/goals"
	groupsfeature "github.com/dalemusser/flockhub/internal/app/features/groups"
	groupstatsfeature "github.com/dalemusser/flockhub/internal/app/features/groupstats"
	healthfeature "github.com/dalemusser/flockhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/flockhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/flockhub/internal/app/features/logout"
	userinfofeature "github.com/dalemusser/flockhub/internal/app/features/userinfo"
	usersfeature "github.com/dalemusser/flockhub/internal/app/features/users"
	"github.com/dalemusser/flockhub/internal/app/store/audit"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/auditlog"
	"github.com/dalemusser/flockhub/internal/app/system/auth"
	"github.com/dalemusser/flockhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// FlockHub is a JSON API: every feature router answers with the
// success/data/error envelope from the errors feature, including the
// router's own 404 and 405 responses.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.FlockHubMongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fresh user data on each request, so role changes and disabled
	// accounts take effect immediately.
	users := userstore.New(db)
	sessionMgr.SetUserFetcher(users)

	if appCfg.JWTSecret != "" {
		issuer, err := auth.NewTokenIssuer(appCfg.JWTSecret, "flockhub", appCfg.JWTTTL)
		if err != nil {
			logger.Error("token issuer init failed", zap.Error(err))
			return nil, err
		}
		sessionMgr.SetTokenIssuer(issuer)
	}

	errLog := apierrors.NewErrorLogger(logger)
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
	m := appMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Use(sessionMgr.LoadSessionUser)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.FlockHubMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", m.Handler())

	// Authentication
	loginHandler := loginfeature.NewHandler(users, sessionMgr, errLog, auditLog, ratelimit.NewLoginLimiter(), m, logger)
	r.Mount("/auth/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLog, logger)
	r.Mount("/auth/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

	if appCfg.GoogleClientID != "" {
		googleHandler := authgooglefeature.NewHandler(users, sessionMgr, auditLog, m,
			appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, appCfg.SessionKey, secure, logger)
		r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
	}

	// Church structure
	churchesHandler := churchesfeature.NewHandler(db, errLog, auditLog, logger)
	r.Mount("/churches", churchesfeature.Routes(churchesHandler, sessionMgr))

	branchesHandler := branchesfeature.NewHandler(db, errLog, auditLog, logger)
	r.Mount("/branches", branchesfeature.Routes(branchesHandler, sessionMgr))

	departmentsHandler := departmentsfeature.NewHandler(db, errLog, auditLog, logger)
	r.Mount("/departments", departmentsfeature.Routes(departmentsHandler, sessionMgr))

	usersHandler := usersfeature.NewHandler(db, errLog, auditLog, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	// Groups and their per-group subtrees. The subtrees share the groups
	// router so /{id} and /{id}/activities resolve in one tree.
	groupsHandler := groupsfeature.NewHandler(db, errLog, auditLog, logger)
	groupsRouter := groupsfeature.Routes(groupsHandler, sessionMgr)

	activitiesHandler := activitiesfeature.NewHandler(db, errLog, auditLog, appCfg.FeedKey, appCfg.BaseURL, logger)
	groupsRouter.Mount("/{id}/activities", activitiesfeature.Routes(activitiesHandler, sessionMgr))

	goalsHandler := goalsfeature.NewHandler(db, errLog, auditLog, logger)
	groupsRouter.Mount("/{id}/goals", goalsfeature.Routes(goalsHandler, sessionMgr))

	statsHandler := groupstatsfeature.NewHandler(db, errLog, appCfg.HealthWeights, m, logger)
	groupsRouter.Mount("/{id}/stats", groupstatsfeature.Routes(statsHandler, sessionMgr))

	r.Mount("/groups", groupsRouter)

	// Public calendar feeds, authenticated by a signed token in the path
	r.Mount("/calendar", activitiesfeature.FeedRoutes(activitiesHandler))

	// Role-based dashboards and the audit trail
	dashboardHandler := dashboardfeature.NewHandler(db, errLog, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	auditHandler := auditlogfeature.NewHandler(db, errLog, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	return r, nil
}
