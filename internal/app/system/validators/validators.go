// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/flockhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and attaches JSON-Schema
// validators. Servers that do not support collMod validators (some
// DocumentDB versions) are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Tenant structure
	ensure("churches", churchesSchema())
	ensure("branches", churchScopedNamed())
	ensure("departments", churchScopedNamed())
	ensure("users", usersSchema())
	ensure("groups", churchScopedNamed())

	// Group life
	ensure("group_memberships", groupMembershipsSchema())
	ensure("activities", activitiesSchema())
	ensure("goals", goalsSchema())

	// Derived and operational data; no validator needed.
	ensure("group_health_snapshots", nil)
	ensure("audit_log", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if it was actually created.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandErrorMatches(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandErrorMatches(err, 48, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandErrorMatches(err, 59, "no such command")
}

func isNotImplemented(err error) bool {
	return commandErrorMatches(err, 115, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

var statusEnum = bson.M{"enum": bson.A{models.StatusActive, models.StatusDisabled}}

func enumOf[T ~string](vals ...T) bson.M {
	a := bson.A{}
	for _, v := range vals {
		a = append(a, string(v))
	}
	return bson.M{"enum": a}
}

func churchesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "slug", "status", "time_zone"},
			"properties": bson.M{
				"name":      nonBlank,
				"name_ci":   nonBlank,
				"slug":      bson.M{"bsonType": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
				"status":    statusEnum,
				"time_zone": nonBlank,
			},
		},
	}
}

// churchScopedNamed covers branches, departments and groups, which share
// the church_id + name + status shape.
func churchScopedNamed() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"church_id", "name", "name_ci", "status"},
			"properties": bson.M{
				"church_id": bson.M{"bsonType": "objectId"},
				"name":      nonBlank,
				"name_ci":   nonBlank,
				"status":    statusEnum,
			},
		},
	}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "email", "role", "status"},
			"properties": bson.M{
				"full_name":    nonBlank,
				"full_name_ci": nonBlank,
				"email":        nonBlank,
				"church_id":    bson.M{"bsonType": "objectId"},
				"role":         enumOf(models.UserRoles...),
				"status":       statusEnum,
				"auth_method":  enumOf(models.AuthPassword, models.AuthGoogle),
			},
		},
	}
}

func groupMembershipsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"church_id", "group_id", "user_id", "role", "active", "joined_at"},
			"properties": bson.M{
				"church_id": bson.M{"bsonType": "objectId"},
				"group_id":  bson.M{"bsonType": "objectId"},
				"user_id":   bson.M{"bsonType": "objectId"},
				"role":      enumOf(models.GroupRoleLeader, models.GroupRoleAssistantLeader, models.GroupRoleMember),
				"active":    bson.M{"bsonType": "bool"},
				"joined_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func activitiesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"church_id", "group_id", "title", "type", "date"},
			"properties": bson.M{
				"church_id": bson.M{"bsonType": "objectId"},
				"group_id":  bson.M{"bsonType": "objectId"},
				"title":     nonBlank,
				"type": enumOf(models.ActivityMeeting, models.ActivityService, models.ActivityEvent,
					models.ActivityOutreach, models.ActivityTraining),
				"date": bson.M{"bsonType": "date"},
				"attendance": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"user_id", "status"},
						"properties": bson.M{
							"user_id": bson.M{"bsonType": "objectId"},
							"status": enumOf(models.AttendancePresent, models.AttendanceLate,
								models.AttendanceAbsent, models.AttendanceExcused),
						},
					},
				},
			},
		},
	}
}

func goalsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"church_id", "group_id", "title", "status"},
			"properties": bson.M{
				"church_id": bson.M{"bsonType": "objectId"},
				"group_id":  bson.M{"bsonType": "objectId"},
				"title":     nonBlank,
				"status":    enumOf(models.GoalPlanned, models.GoalInProgress, models.GoalCompleted, models.GoalCancelled),
				"priority":  enumOf(models.PriorityLow, models.PriorityMedium, models.PriorityHigh),
			},
		},
	}
}
