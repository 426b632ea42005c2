// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background workers and tears down DB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if runtime.snapshots != nil {
		logger.Info("stopping health snapshot worker")
		runtime.snapshots.Stop()
		runtime.snapshots = nil
	}
	if deps.FlockHubMongoClient != nil {
		logger.Info("disconnecting FlockHub MongoDB client")
		if err := deps.FlockHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
