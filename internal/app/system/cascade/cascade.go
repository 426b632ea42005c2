// Package cascade deletes a record together with the documents that hang
// off it, inside one transaction where the server supports it.
package cascade

import (
	"context"
	"fmt"

	activitystore "github.com/dalemusser/flockhub/internal/app/store/activities"
	branchstore "github.com/dalemusser/flockhub/internal/app/store/branches"
	churchstore "github.com/dalemusser/flockhub/internal/app/store/churches"
	departmentstore "github.com/dalemusser/flockhub/internal/app/store/departments"
	goalstore "github.com/dalemusser/flockhub/internal/app/store/goals"
	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/flockhub/internal/app/store/memberships"
	snapshotstore "github.com/dalemusser/flockhub/internal/app/store/snapshots"
	userstore "github.com/dalemusser/flockhub/internal/app/store/users"
	"github.com/dalemusser/flockhub/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Deleter removes churches, groups and users with their dependents.
type Deleter struct {
	db  *mongo.Database
	log *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Deleter {
	return &Deleter{db: db, log: log}
}

// Church removes a church and every document scoped to it. It reports
// whether the church existed.
func (d *Deleter) Church(ctx context.Context, churchID primitive.ObjectID) (bool, error) {
	var deleted int64
	err := txn.Run(ctx, d.db, d.log, func(ctx context.Context) error {
		steps := []struct {
			name string
			fn   func(context.Context, primitive.ObjectID) (int64, error)
		}{
			{"snapshots", snapshotstore.New(d.db).DeleteByChurch},
			{"goals", goalstore.New(d.db).DeleteByChurch},
			{"activities", activitystore.New(d.db).DeleteByChurch},
			{"memberships", membershipstore.New(d.db).DeleteByChurch},
			{"groups", groupstore.New(d.db).DeleteByChurch},
			{"users", userstore.New(d.db).DeleteByChurch},
			{"departments", departmentstore.New(d.db).DeleteByChurch},
			{"branches", branchstore.New(d.db).DeleteByChurch},
		}
		for _, s := range steps {
			if _, err := s.fn(ctx, churchID); err != nil {
				return fmt.Errorf("delete %s: %w", s.name, err)
			}
		}
		n, err := churchstore.New(d.db).Delete(ctx, churchID)
		deleted = n
		return err
	})
	return deleted > 0, err
}

// Group removes a group with its roster, activities, goals and snapshot.
func (d *Deleter) Group(ctx context.Context, churchID, groupID primitive.ObjectID) (bool, error) {
	var deleted int64
	err := txn.Run(ctx, d.db, d.log, func(ctx context.Context) error {
		n, err := groupstore.New(d.db).Delete(ctx, churchID, groupID)
		if err != nil {
			return err
		}
		deleted = n
		if n == 0 {
			return nil
		}
		steps := []struct {
			name string
			fn   func(context.Context, primitive.ObjectID) (int64, error)
		}{
			{"memberships", membershipstore.New(d.db).DeleteByGroup},
			{"activities", activitystore.New(d.db).DeleteByGroup},
			{"goals", goalstore.New(d.db).DeleteByGroup},
		}
		if err := snapshotstore.New(d.db).DeleteByGroup(ctx, groupID); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		for _, s := range steps {
			if _, err := s.fn(ctx, groupID); err != nil {
				return fmt.Errorf("delete %s: %w", s.name, err)
			}
		}
		return nil
	})
	return deleted > 0, err
}

// User removes a church user and their group memberships. Attendance
// records on past activities are kept.
func (d *Deleter) User(ctx context.Context, churchID, userID primitive.ObjectID) (bool, error) {
	var deleted int64
	err := txn.Run(ctx, d.db, d.log, func(ctx context.Context) error {
		n, err := userstore.New(d.db).Delete(ctx, churchID, userID)
		if err != nil {
			return err
		}
		deleted = n
		if n == 0 {
			return nil
		}
		_, err = membershipstore.New(d.db).DeleteByUser(ctx, userID)
		return err
	})
	return deleted > 0, err
}
