// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// AuditRetention is how long audit_log entries are kept before the TTL
// index removes them.
const AuditRetention = 365 * 24 * time.Hour

/*
EnsureAll is called at startup and by `flockctl ensure-schema`. Each
collection's set is reconciled independently and problems are aggregated so
startup can fail fast with the whole picture.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, cs := range collectionSets() {
		if err := ensureIndexSet(ctx, db.Collection(cs.name), cs.models); err != nil {
			problems = append(problems, cs.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type collectionSet struct {
	name   string
	models []mongo.IndexModel
}

func idx(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
}

func uniq(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name).SetUnique(true)}
}

func collectionSets() []collectionSet {
	return []collectionSet{
		{"churches", []mongo.IndexModel{
			uniq("uniq_churches_nameci", bson.D{{Key: "name_ci", Value: 1}}),
			uniq("uniq_churches_slug", bson.D{{Key: "slug", Value: 1}}),
			idx("idx_churches_status_nameci_id", bson.D{{Key: "status", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}),
		}},
		{"branches", []mongo.IndexModel{
			// Branch names are unique within a church.
			uniq("uniq_branches_church_nameci", bson.D{{Key: "church_id", Value: 1}, {Key: "name_ci", Value: 1}}),
			idx("idx_branches_church_status_nameci_id", bson.D{{Key: "church_id", Value: 1}, {Key: "status", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}),
		}},
		{"departments", []mongo.IndexModel{
			uniq("uniq_departments_church_nameci", bson.D{{Key: "church_id", Value: 1}, {Key: "name_ci", Value: 1}}),
			idx("idx_departments_church_branch", bson.D{{Key: "church_id", Value: 1}, {Key: "branch_id", Value: 1}}),
		}},
		{"users", []mongo.IndexModel{
			// Email is the login handle, unique across all churches.
			uniq("uniq_users_email", bson.D{{Key: "email", Value: 1}}),
			// Church user lists: filter by role/status, keyset on full_name_ci + _id.
			idx("idx_users_church_role_status_fullnameci_id", bson.D{
				{Key: "church_id", Value: 1},
				{Key: "role", Value: 1},
				{Key: "status", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			}),
			idx("idx_users_church_fullnameci_id", bson.D{{Key: "church_id", Value: 1}, {Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}),
		}},
		{"groups", []mongo.IndexModel{
			uniq("uniq_groups_church_nameci", bson.D{{Key: "church_id", Value: 1}, {Key: "name_ci", Value: 1}}),
			idx("idx_groups_church_status_nameci_id", bson.D{{Key: "church_id", Value: 1}, {Key: "status", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}),
			idx("idx_groups_church_department", bson.D{{Key: "church_id", Value: 1}, {Key: "department_id", Value: 1}}),
		}},
		{"group_memberships", []mongo.IndexModel{
			// One membership document per (group, user).
			uniq("uniq_memberships_group_user", bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}}),
			// At most one active leader per group.
			{
				Keys: bson.D{{Key: "group_id", Value: 1}},
				Options: options.Index().
					SetName("uniq_memberships_active_leader").
					SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: "role", Value: "leader"}, {Key: "active", Value: true}}),
			},
			idx("idx_memberships_user_active", bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}}),
			idx("idx_memberships_church_group", bson.D{{Key: "church_id", Value: 1}, {Key: "group_id", Value: 1}}),
		}},
		{"activities", []mongo.IndexModel{
			// Group timeline, newest first.
			idx("idx_activities_group_date_id", bson.D{{Key: "group_id", Value: 1}, {Key: "date", Value: -1}, {Key: "_id", Value: -1}}),
			idx("idx_activities_church_date", bson.D{{Key: "church_id", Value: 1}, {Key: "date", Value: -1}}),
			idx("idx_activities_planned", bson.D{{Key: "planned_participants", Value: 1}}),
		}},
		{"goals", []mongo.IndexModel{
			idx("idx_goals_group_status_target", bson.D{{Key: "group_id", Value: 1}, {Key: "status", Value: 1}, {Key: "target_date", Value: 1}}),
			idx("idx_goals_church_status", bson.D{{Key: "church_id", Value: 1}, {Key: "status", Value: 1}}),
		}},
		{"group_health_snapshots", []mongo.IndexModel{
			uniq("uniq_snapshots_group", bson.D{{Key: "group_id", Value: 1}}),
			idx("idx_snapshots_church_score", bson.D{{Key: "church_id", Value: 1}, {Key: "score", Value: -1}}),
		}},
		{"audit_log", []mongo.IndexModel{
			idx("idx_audit_church_created", bson.D{{Key: "church_id", Value: 1}, {Key: "created_at", Value: -1}}),
			idx("idx_audit_category_created", bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}),
			{
				Keys: bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().
					SetName("ttl_audit_created").
					SetExpireAfterSeconds(int32(AuditRetention / time.Second)),
			},
		}},
	}
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                      */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolOf(p *bool) bool { return p != nil && *p }

func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var ix existingIndex
		if err := cur.Decode(&ix); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		out[keySig(ix.Key)] = ix
	}
	return out, cur.Err()
}

// ensureIndexSet creates missing indexes, renames ones whose keys match but
// whose name differs, and drops and recreates ones whose uniqueness differs.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A collection that does not exist yet has no indexes.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		name := *m.Options.Name
		unique := boolOf(m.Options.Unique)
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", unique))

		ex, found := existing[sig]
		switch {
		case found && ex.Name == name && boolOf(ex.Unique) == unique:
			log.Debug("reusing existing index")
			continue
		case found:
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop %s failed: %v", coll.Name(), name, ex.Name, err))
				continue
			}
			log.Info("dropped index to realign name or options", zap.String("old_name", ex.Name))
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			switch {
			case isOptionsConflictErr(err):
				errs = append(errs, fmt.Sprintf("%s(%s): conflicts with an existing index: %v", coll.Name(), name, err))
			case unique && isDuplicateKeyErr(err):
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			default:
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			log.Warn("index ensure failed", zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return mongo.IsDuplicateKeyError(err)
}
