package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	snapshotstore "github.com/dalemusser/flockhub/internal/app/store/snapshots"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/analytics"
	"github.com/dalemusser/flockhub/internal/app/system/groupdata"
	"github.com/dalemusser/flockhub/internal/app/system/indexes"
	"github.com/dalemusser/flockhub/internal/app/system/normalize"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"github.com/dalemusser/flockhub/internal/app/system/validators"
	"github.com/dalemusser/flockhub/internal/app/system/workers"
	"github.com/gorilla/securecookie"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func ensureSchemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "ensure-schema",
		Usage: "create collection validators and indexes",
		Action: func(c *cli.Context) error {
			return withDB(c, func(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
				ctx, cancel := context.WithTimeout(ctx, timeouts.Batch())
				defer cancel()
				if err := validators.EnsureAll(ctx, db); err != nil {
					return fmt.Errorf("ensure validators: %w", err)
				}
				if err := indexes.EnsureAll(ctx, db); err != nil {
					return fmt.Errorf("ensure indexes: %w", err)
				}
				logger.Info("schema ensured", zap.String("database", db.Name()))
				return nil
			})
		},
	}
}

func ensureSuperAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "ensure-superadmin",
		Usage: "create the superadmin account or promote an existing user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true, EnvVars: []string{"FLOCKHUB_SUPERADMIN_EMAIL"}},
			&cli.StringFlag{Name: "name", Value: "Administrator"},
			&cli.StringFlag{Name: "password", EnvVars: []string{"FLOCKHUB_SUPERADMIN_PASSWORD"}, Usage: "blank means Google-only sign in"},
		},
		Action: func(c *cli.Context) error {
			email := normalize.Email(c.String("email"))
			if email == "" {
				return errors.New("email is required")
			}
			return withDB(c, func(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
				ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
				defer cancel()
				created, err := userstore.New(db).EnsureSuperAdmin(ctx, email, c.String("name"), c.String("password"))
				if err != nil {
					return fmt.Errorf("ensure superadmin %s: %w", email, err)
				}
				logger.Info("superadmin ensured", zap.String("email", email), zap.Bool("created", created))
				return nil
			})
		},
	}
}

func groupHealthCommand() *cli.Command {
	return &cli.Command{
		Name:      "group-health",
		Usage:     "print the health report of one group as JSON",
		ArgsUsage: "<group-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: analytics.DefaultPeriodDays, Usage: "look-back period in days"},
			&cli.BoolFlag{Name: "save", Usage: "also store the result as the group's snapshot"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("group-health takes exactly one group id", 2)
			}
			groupID, err := primitive.ObjectIDFromHex(c.Args().First())
			if err != nil {
				return cli.Exit("invalid group id", 2)
			}
			days := c.Int("days")
			if days < 1 || days > 365 {
				return cli.Exit("days must be between 1 and 365", 2)
			}

			return withDB(c, func(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
				ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
				defer cancel()

				g, err := groupstore.New(db).GetByID(ctx, groupID)
				if err != nil {
					return fmt.Errorf("load group: %w", err)
				}
				now := time.Now().UTC()
				rep, err := groupdata.NewLoader(db).Health(ctx, g.ID, analytics.DefaultHealthWeights(), now, days)
				if err != nil {
					return fmt.Errorf("compute health: %w", err)
				}
				if c.Bool("save") {
					if err := snapshotstore.New(db).Upsert(ctx, groupdata.Snapshot(g, rep, now)); err != nil {
						return fmt.Errorf("save snapshot: %w", err)
					}
					logger.Info("snapshot saved", zap.String("group_id", g.ID.Hex()), zap.Int("score", rep.Score.Score))
				}

				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					GroupID primitive.ObjectID `json:"group_id"`
					Name    string             `json:"name"`
					analytics.GroupHealthReport
				}{g.ID, g.Name, rep})
			})
		},
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "score every active group once and store the snapshots",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: analytics.DefaultPeriodDays, Usage: "look-back period in days"},
		},
		Action: func(c *cli.Context) error {
			return withDB(c, func(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
				ctx, cancel := context.WithTimeout(ctx, timeouts.Batch())
				defer cancel()
				w := workers.NewHealthSnapshots(db, analytics.DefaultHealthWeights(), c.Int("days"), 0, nil, logger)
				n, err := w.RunOnce(ctx)
				if err != nil {
					return err
				}
				logger.Info("snapshots written", zap.Int("count", n))
				return nil
			})
		},
	}
}

func genSessionKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen-session-key",
		Usage: "print a random 64-character key for FLOCKHUB_SESSION_KEY or FLOCKHUB_JWT_SECRET",
		Action: func(c *cli.Context) error {
			key := securecookie.GenerateRandomKey(32)
			if key == nil {
				return errors.New("could not read random bytes")
			}
			_, err := fmt.Fprintln(c.App.Writer, hex.EncodeToString(key))
			return err
		},
	}
}
