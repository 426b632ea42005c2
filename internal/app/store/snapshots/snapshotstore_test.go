package snapshotstore_test

import (
	"errors"
	"math"
	"testing"

	snapshotstore "github.com/dalemusser/flockhub/internal/app/store/snapshots"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_UpsertReplaces(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	store := snapshotstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := primitive.NewObjectID()
	group := primitive.NewObjectID()

	if err := store.Upsert(ctx, models.GroupHealthSnapshot{ChurchID: church, GroupID: group, Score: 40, PeriodDays: 90}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, models.GroupHealthSnapshot{ChurchID: church, GroupID: group, Score: 75, PeriodDays: 90}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	snaps, err := store.ListByChurch(ctx, church)
	if err != nil {
		t.Fatalf("ListByChurch failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1 per group", len(snaps))
	}
	if snaps[0].Score != 75 || snaps[0].ComputedAt.IsZero() {
		t.Errorf("snapshot = %+v", snaps[0])
	}

	if _, err := store.Get(ctx, primitive.NewObjectID(), group); !errors.Is(err, snapshotstore.ErrNotFound) {
		t.Errorf("cross-church err = %v, want ErrNotFound", err)
	}
}

func TestStore_AverageByChurch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := snapshotstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := primitive.NewObjectID()
	empty, err := store.AverageByChurch(ctx, church)
	if err != nil {
		t.Fatalf("AverageByChurch failed: %v", err)
	}
	if empty.Groups != 0 || empty.LastComputed != nil {
		t.Errorf("empty church = %+v", empty)
	}

	for _, score := range []int{50, 70, 90} {
		if err := store.Upsert(ctx, models.GroupHealthSnapshot{ChurchID: church, GroupID: primitive.NewObjectID(), Score: score}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	store.Upsert(ctx, models.GroupHealthSnapshot{ChurchID: primitive.NewObjectID(), GroupID: primitive.NewObjectID(), Score: 0})

	avg, err := store.AverageByChurch(ctx, church)
	if err != nil {
		t.Fatalf("AverageByChurch failed: %v", err)
	}
	if avg.Groups != 3 || math.Abs(avg.AverageScore-70) > 1e-9 || avg.LastComputed == nil {
		t.Errorf("average = %+v, want 3 groups averaging 70", avg)
	}

	snaps, _ := store.ListByChurch(ctx, church)
	if len(snaps) != 3 || snaps[0].Score != 90 {
		t.Error("expected healthiest group first")
	}
}
