// Package testutil holds helpers shared by store and handler tests:
// throwaway MongoDB databases, fixtures and HTTP helpers.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/flockhub/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoURIEnv overrides DefaultMongoURI for tests.
const MongoURIEnv = "FLOCKHUB_TEST_MONGO_URI"

const DefaultMongoURI = "mongodb://localhost:27017"

var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

func sharedClient() (*mongo.Client, error) {
	clientOnce.Do(func() {
		uri := os.Getenv(MongoURIEnv)
		if uri == "" {
			uri = DefaultMongoURI
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := mongo.Connect(ctx, options.Client().
			ApplyURI(uri).
			SetServerSelectionTimeout(2*time.Second))
		if err != nil {
			clientErr = err
			return
		}
		if err := c.Ping(ctx, nil); err != nil {
			_ = c.Disconnect(context.Background())
			clientErr = err
			return
		}
		client = c
	})
	return client, clientErr
}

// SetupTestDB returns an empty database unique to t, dropped on cleanup.
// The test is skipped when MongoDB is unreachable or -short is set.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB test in short mode")
	}
	c, err := sharedClient()
	if err != nil {
		t.Skipf("MongoDB unavailable: %v", err)
	}

	db := c.Database("flockhub_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
	})
	return db
}

// SetupIndexedDB is SetupTestDB plus the production indexes, for tests that
// depend on unique constraints.
func SetupIndexedDB(t *testing.T) *mongo.Database {
	t.Helper()
	db := SetupTestDB(t)
	ctx, cancel := TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return db
}

// TestContext returns a context with a generous timeout for test I/O.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
