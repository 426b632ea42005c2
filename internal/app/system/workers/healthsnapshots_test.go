package workers

import (
	"testing"
	"time"

	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	snapshotstore "github.com/dalemusser/flockhub/internal/app/store/snapshots"
	"github.com/dalemusser/flockhub/internal/app/system/analytics"
	"github.com/dalemusser/flockhub/internal/app/system/metrics"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestHealthSnapshots_RunOnce(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	active := fixtures.CreateGroup(ctx, "Youth", church.ID)
	idle := fixtures.CreateGroup(ctx, "Old Choir", church.ID)
	disabled := models.StatusDisabled
	if _, err := groupstore.New(db).Update(ctx, church.ID, idle.ID, groupstore.Update{Status: &disabled}); err != nil {
		t.Fatalf("disable group: %v", err)
	}

	u := fixtures.CreateMember(ctx, "Ann", "ann@example.com", church.ID)
	fixtures.CreateGroupMembership(ctx, u.ID, active.ID, church.ID, models.GroupRoleMember)
	fixtures.CreateActivity(ctx, active.ID, church.ID, time.Now().UTC().AddDate(0, 0, -3),
		[]primitive.ObjectID{u.ID}, models.AttendancePresent)

	m := metrics.New()
	w := NewHealthSnapshots(db, analytics.DefaultHealthWeights(), 30, time.Hour, m, zap.NewNop())

	n, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if n != 1 {
		t.Errorf("wrote %d snapshots, want 1 (disabled group skipped)", n)
	}

	snaps, err := snapshotstore.New(db).ListByChurch(ctx, church.ID)
	if err != nil {
		t.Fatalf("ListByChurch failed: %v", err)
	}
	if len(snaps) != 1 || snaps[0].GroupID != active.ID {
		t.Fatalf("snapshots = %+v", snaps)
	}
	if snaps[0].AttendanceRate != 100 || snaps[0].PeriodDays != 30 {
		t.Errorf("snapshot = %+v", snaps[0])
	}

	// a second sweep replaces rather than adds
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	snaps, _ = snapshotstore.New(db).ListByChurch(ctx, church.ID)
	if len(snaps) != 1 {
		t.Errorf("got %d snapshots after second sweep, want 1", len(snaps))
	}

	if got := promtest.ToFloat64(m.SnapshotRuns.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok runs = %v, want 2", got)
	}
}

func TestHealthSnapshots_StartStop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	w := NewHealthSnapshots(db, analytics.DefaultHealthWeights(), 90, time.Hour, nil, zap.NewNop())

	done := make(chan struct{})
	go func() {
		w.Start()
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return")
	}
}
