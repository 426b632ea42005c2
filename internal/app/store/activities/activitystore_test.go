package activitystore_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	activitystore "github.com/dalemusser/flockhub/internal/app/store/activities"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := activitystore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	group := fixtures.CreateGroup(ctx, "Youth", church.ID)
	p := primitive.NewObjectID()

	a, err := store.Create(ctx, models.Activity{
		ChurchID:            church.ID,
		GroupID:             group.ID,
		Title:               " Friday  Night ",
		Date:                time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC),
		PlannedParticipants: []primitive.ObjectID{p, p},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.Type != models.ActivityMeeting {
		t.Errorf("Type = %q, want meeting", a.Type)
	}
	if a.Title != "Friday Night" {
		t.Errorf("Title = %q", a.Title)
	}
	if len(a.PlannedParticipants) != 1 {
		t.Errorf("planned = %d, want duplicates removed", len(a.PlannedParticipants))
	}
	if a.Attendance == nil {
		t.Error("Attendance should be an empty list, not nil")
	}

	if _, err := store.Create(ctx, models.Activity{ChurchID: church.ID, GroupID: group.ID, Title: "x"}); !errors.Is(err, activitystore.ErrNoDate) {
		t.Errorf("err = %v, want ErrNoDate", err)
	}
	if _, err := store.Create(ctx, models.Activity{ChurchID: church.ID, GroupID: group.ID, Title: "x", Type: "party", Date: time.Now()}); !errors.Is(err, activitystore.ErrBadType) {
		t.Errorf("err = %v, want ErrBadType", err)
	}
}

func TestStore_MarkAttendance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := activitystore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	group := fixtures.CreateGroup(ctx, "Youth", church.ID)
	planned := primitive.NewObjectID()
	walkIn := primitive.NewObjectID()
	marker := primitive.NewObjectID()
	act := fixtures.CreateActivity(ctx, group.ID, church.ID, time.Now().UTC(), []primitive.ObjectID{planned})

	out, err := store.MarkAttendance(ctx, church.ID, act.ID, models.AttendanceRecord{UserID: planned, Status: models.AttendanceLate, MarkedBy: marker})
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}
	if rec, ok := out.RecordFor(planned); !ok || rec.Status != models.AttendanceLate || rec.MarkedAt.IsZero() {
		t.Errorf("record = %+v, %v", rec, ok)
	}

	// marking again replaces the record rather than appending
	out, err = store.MarkAttendance(ctx, church.ID, act.ID, models.AttendanceRecord{UserID: planned, Status: models.AttendancePresent, Notes: "arrived early"})
	if err != nil {
		t.Fatalf("re-mark failed: %v", err)
	}
	if len(out.Attendance) != 1 {
		t.Fatalf("attendance = %d records, want 1", len(out.Attendance))
	}
	if out.Attendance[0].Status != models.AttendancePresent || out.Attendance[0].Notes != "arrived early" {
		t.Errorf("record not replaced: %+v", out.Attendance[0])
	}

	// a walk-in becomes a planned participant
	out, err = store.MarkAttendance(ctx, church.ID, act.ID, models.AttendanceRecord{UserID: walkIn, Status: models.AttendancePresent})
	if err != nil {
		t.Fatalf("walk-in failed: %v", err)
	}
	if !out.IsPlanned(walkIn) || len(out.PlannedParticipants) != 2 {
		t.Errorf("walk-in not added to planned participants: %v", out.PlannedParticipants)
	}

	if _, err := store.MarkAttendance(ctx, church.ID, act.ID, models.AttendanceRecord{UserID: planned, Status: "asleep"}); !errors.Is(err, activitystore.ErrBadStatus) {
		t.Errorf("err = %v, want ErrBadStatus", err)
	}
	other := fixtures.CreateChurch(ctx, "Other")
	if _, err := store.MarkAttendance(ctx, other.ID, act.ID, models.AttendanceRecord{UserID: planned, Status: models.AttendancePresent}); !errors.Is(err, activitystore.ErrNotFound) {
		t.Errorf("cross-church err = %v, want ErrNotFound", err)
	}

	out, err = store.ClearAttendance(ctx, church.ID, act.ID, walkIn)
	if err != nil {
		t.Fatalf("ClearAttendance failed: %v", err)
	}
	if _, ok := out.RecordFor(walkIn); ok || !out.IsPlanned(walkIn) {
		t.Error("ClearAttendance should drop the record and keep the participant")
	}
}

func TestStore_MarkAttendance_Concurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := activitystore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	group := fixtures.CreateGroup(ctx, "Youth", church.ID)
	user := primitive.NewObjectID()
	act := fixtures.CreateActivity(ctx, group.ID, church.ID, time.Now().UTC(), []primitive.ObjectID{user})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.MarkAttendance(ctx, church.ID, act.ID, models.AttendanceRecord{UserID: user, Status: models.AttendancePresent})
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, church.ID, act.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Attendance) != 1 {
		t.Errorf("attendance = %d records, want exactly 1", len(got.Attendance))
	}
}

func TestStore_CancelAndComplete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := activitystore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	group := fixtures.CreateGroup(ctx, "Youth", church.ID)
	user := primitive.NewObjectID()
	act := fixtures.CreateActivity(ctx, group.ID, church.ID, time.Now().UTC(), []primitive.ObjectID{user})

	out, err := store.SetCompleted(ctx, church.ID, act.ID, true)
	if err != nil || !out.Completed {
		t.Fatalf("SetCompleted = %v, %v", out.Completed, err)
	}
	out, err = store.SetCancelled(ctx, church.ID, act.ID, true)
	if err != nil || !out.Cancelled || out.Completed {
		t.Fatalf("SetCancelled = %+v, %v", out, err)
	}
	if _, err := store.SetCompleted(ctx, church.ID, act.ID, true); !errors.Is(err, activitystore.ErrCompleteCancel) {
		t.Errorf("complete cancelled err = %v, want ErrCompleteCancel", err)
	}
	if _, err := store.MarkAttendance(ctx, church.ID, act.ID, models.AttendanceRecord{UserID: user, Status: models.AttendancePresent}); !errors.Is(err, activitystore.ErrCancelled) {
		t.Errorf("mark cancelled err = %v, want ErrCancelled", err)
	}
}

func TestStore_ListByGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := activitystore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	group := fixtures.CreateGroup(ctx, "Youth", church.ID)
	otherGroup := fixtures.CreateGroup(ctx, "Choir", church.ID)
	base := time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)
	var ids []primitive.ObjectID
	for i := 0; i < 5; i++ {
		ids = append(ids, fixtures.CreateActivity(ctx, group.ID, church.ID, base.AddDate(0, 0, i*7), nil).ID)
	}
	fixtures.CreateActivity(ctx, otherGroup.ID, church.ID, base, nil)
	if _, err := store.SetCancelled(ctx, church.ID, ids[1], true); err != nil {
		t.Fatalf("SetCancelled failed: %v", err)
	}

	all, err := store.ListByGroup(ctx, group.ID, activitystore.ListFilter{})
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d activities, want 4 (cancelled excluded)", len(all))
	}
	if all[0].ID != ids[4] {
		t.Error("expected newest first")
	}

	withCancelled, _ := store.ListByGroup(ctx, group.ID, activitystore.ListFilter{IncludeCancelled: true})
	if len(withCancelled) != 5 {
		t.Errorf("IncludeCancelled = %d, want 5", len(withCancelled))
	}

	start := base.AddDate(0, 0, 14)
	end := base.AddDate(0, 0, 21)
	ranged, _ := store.ListByGroup(ctx, group.ID, activitystore.ListFilter{Start: &start, End: &end})
	if len(ranged) != 2 {
		t.Errorf("range = %d activities, want 2 (inclusive bounds)", len(ranged))
	}

	limited, _ := store.ListByGroup(ctx, group.ID, activitystore.ListFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit = %d activities, want 2", len(limited))
	}

	n, err := store.CountByChurch(ctx, church.ID, base)
	if err != nil || n != 5 {
		t.Errorf("CountByChurch = %d, %v; want 5", n, err)
	}
}

func TestStore_Update_DropsUnplannedAttendance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := activitystore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	group := fixtures.CreateGroup(ctx, "Youth", church.ID)
	keep, dropA, dropB := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	act := fixtures.CreateActivity(ctx, group.ID, church.ID, time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC),
		[]primitive.ObjectID{keep, dropA, dropB},
		models.AttendancePresent, models.AttendancePresent, models.AttendanceLate)

	planned := []primitive.ObjectID{keep}
	out, err := store.Update(ctx, church.ID, act.ID, activitystore.Update{PlannedParticipants: &planned})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(out.PlannedParticipants) != 1 {
		t.Errorf("planned = %d, want 1", len(out.PlannedParticipants))
	}
	if len(out.Attendance) != 1 || out.Attendance[0].UserID != keep {
		t.Errorf("attendance = %+v, want only the remaining planned user", out.Attendance)
	}

	title := "Renamed"
	out, err = store.Update(ctx, church.ID, act.ID, activitystore.Update{Title: &title})
	if err != nil {
		t.Fatalf("Update title failed: %v", err)
	}
	if len(out.Attendance) != 1 {
		t.Errorf("attendance = %d after title change, want 1", len(out.Attendance))
	}
}
