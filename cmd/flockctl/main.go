// Command flockctl runs FlockHub maintenance tasks against the database:
// schema setup, superadmin bootstrap, group health reports and snapshot
// sweeps.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "flockctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "flockctl",
		Usage: "FlockHub maintenance commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mongo-uri",
				Value:   "mongodb://localhost:27017",
				EnvVars: []string{"FLOCKHUB_MONGO_URI"},
				Usage:   "MongoDB connection string",
			},
			&cli.StringFlag{
				Name:    "mongo-database",
				Value:   "flockhub",
				EnvVars: []string{"FLOCKHUB_MONGO_DATABASE"},
				Usage:   "MongoDB database name",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log at debug level",
			},
		},
		Commands: []*cli.Command{
			ensureSchemaCommand(),
			ensureSuperAdminCommand(),
			groupHealthCommand(),
			snapshotCommand(),
			genSessionKeyCommand(),
		},
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if c.Bool("verbose") {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// withDB connects, runs fn, and disconnects.
func withDB(c *cli.Context, fn func(ctx context.Context, db *mongo.Database, logger *zap.Logger) error) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := c.Context
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.String("mongo-uri")))
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping MongoDB: %w", err)
	}
	return fn(ctx, client.Database(c.String("mongo-database")), logger)
}
