// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/metrics"
	"github.com/dalemusser/flockhub/internal/app/system/normalize"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// runtime is what Startup builds for BuildHandler and Shutdown. WAFFLE
// passes DBDeps by value, so it lives here.
var runtime struct {
	metrics   *metrics.Metrics
	snapshots *workers.HealthSnapshots
}

// appMetrics returns the process-wide collectors, creating them on first use.
func appMetrics() *metrics.Metrics {
	if runtime.metrics == nil {
		runtime.metrics = metrics.New()
	}
	return runtime.metrics
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built: timeout
// overrides, the configured superadmin and the health snapshot worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n), zap.Any("timeouts", timeouts.Current()))
	}

	if appCfg.SuperAdminEmail != "" {
		if err := ensureSuperAdmin(ctx, deps.FlockHubMongoDatabase, appCfg.SuperAdminEmail, appCfg.SuperAdminPassword, logger); err != nil {
			return err
		}
	}

	if appCfg.SnapshotInterval > 0 {
		w := workers.NewHealthSnapshots(deps.FlockHubMongoDatabase, appCfg.HealthWeights, appCfg.HealthPeriodDays,
			appCfg.SnapshotInterval, appMetrics(), logger.Named("snapshots"))
		w.Start()
		runtime.snapshots = w
	}
	return nil
}

// ensureSuperAdmin creates or promotes the configured superadmin.
func ensureSuperAdmin(ctx context.Context, db *mongo.Database, email, password string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	email = normalize.Email(email)
	created, err := userstore.New(db).EnsureSuperAdmin(ctx, email, "", password)
	if err != nil {
		return fmt.Errorf("ensure superadmin %s: %w", email, err)
	}
	if created {
		logger.Info("superadmin created", zap.String("email", email))
	} else {
		logger.Info("superadmin ensured", zap.String("email", email))
	}
	return nil
}
