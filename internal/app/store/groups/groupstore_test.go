package groupstore_test

import (
	"errors"
	"testing"

	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	"github.com/dalemusser/flockhub/internal/app/system/paging"
	"github.com/dalemusser/flockhub/internal/domain/models"
	"github.com/dalemusser/flockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace Fellowship")

	created, err := store.Create(ctx, models.Group{
		ChurchID:    church.ID,
		Name:        "  Tuesday   Bible Study ",
		Description: "Book of Acts",
		MeetingDay:  "tuesday",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Name != "Tuesday Bible Study" {
		t.Errorf("Name = %q, want collapsed whitespace", created.Name)
	}
	if created.NameCI == "" {
		t.Error("expected NameCI to be set")
	}
	if created.Status != models.StatusActive {
		t.Errorf("Status = %q, want active", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	got, err := store.Get(ctx, church.ID, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Description != "Book of Acts" {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestStore_Create_DuplicateNamePerChurch(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fixtures.CreateChurch(ctx, "Church A")
	b := fixtures.CreateChurch(ctx, "Church B")

	if _, err := store.Create(ctx, models.Group{ChurchID: a.ID, Name: "Youth"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, models.Group{ChurchID: a.ID, Name: "YOUTH"}); !errors.Is(err, groupstore.ErrDuplicateGroupName) {
		t.Errorf("err = %v, want ErrDuplicateGroupName", err)
	}
	if _, err := store.Create(ctx, models.Group{ChurchID: b.ID, Name: "Youth"}); err != nil {
		t.Errorf("same name in another church should succeed: %v", err)
	}
}

func TestStore_Get_OtherChurch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fixtures.CreateChurch(ctx, "Church A")
	b := fixtures.CreateChurch(ctx, "Church B")
	g := fixtures.CreateGroup(ctx, "Choir", a.ID)

	if _, err := store.Get(ctx, b.ID, g.ID); !errors.Is(err, groupstore.ErrNotFound) {
		t.Errorf("cross-church Get err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetByID(ctx, g.ID); err != nil {
		t.Errorf("GetByID failed: %v", err)
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	g := fixtures.CreateGroup(ctx, "Men's Breakfast", church.ID)
	fixtures.CreateGroup(ctx, "Women's Circle", church.ID)

	name := "Men's Prayer Breakfast"
	status := models.StatusDisabled
	out, err := store.Update(ctx, church.ID, g.ID, groupstore.Update{Name: &name, Status: &status})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if out.Name != name || out.Status != models.StatusDisabled {
		t.Errorf("got %q/%q", out.Name, out.Status)
	}
	if !out.UpdatedAt.After(g.UpdatedAt) && !out.UpdatedAt.Equal(g.UpdatedAt) {
		t.Error("UpdatedAt went backwards")
	}

	dup := "women's circle"
	if _, err := store.Update(ctx, church.ID, g.ID, groupstore.Update{Name: &dup}); !errors.Is(err, groupstore.ErrDuplicateGroupName) {
		t.Errorf("err = %v, want ErrDuplicateGroupName", err)
	}
	if _, err := store.Update(ctx, church.ID, primitive.NewObjectID(), groupstore.Update{Name: &name}); !errors.Is(err, groupstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	other := fixtures.CreateChurch(ctx, "Other")
	g := fixtures.CreateGroup(ctx, "Choir", church.ID)

	n, err := store.Delete(ctx, other.ID, g.ID)
	if err != nil || n != 0 {
		t.Fatalf("cross-church Delete = %d, %v; want 0, nil", n, err)
	}
	n, err = store.Delete(ctx, church.ID, g.ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v; want 1, nil", n, err)
	}
	if _, err := store.Get(ctx, church.ID, g.ID); !errors.Is(err, groupstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	church := fixtures.CreateChurch(ctx, "Grace")
	other := fixtures.CreateChurch(ctx, "Other")
	alpha := fixtures.CreateGroup(ctx, "Alpha Course", church.ID)
	fixtures.CreateGroup(ctx, "Bible Study", church.ID)
	fixtures.CreateGroup(ctx, "Choir", church.ID)
	fixtures.CreateGroup(ctx, "Alpha Elsewhere", other.ID)

	groups, res, err := store.List(ctx, church.ID, groupstore.ListFilter{}, paging.Params{Size: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(groups) != 2 || !res.HasNext || res.HasPrev {
		t.Fatalf("first page: %d rows, %+v", len(groups), res)
	}
	if groups[0].Name != "Alpha Course" || groups[1].Name != "Bible Study" {
		t.Errorf("unexpected order: %q, %q", groups[0].Name, groups[1].Name)
	}

	groups, _, err = store.List(ctx, church.ID, groupstore.ListFilter{Search: "alp"}, paging.Params{Size: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != alpha.ID {
		t.Errorf("search returned %d groups", len(groups))
	}

	groups, _, err = store.List(ctx, church.ID, groupstore.ListFilter{IDs: []primitive.ObjectID{}}, paging.Params{Size: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("empty ID restriction returned %d groups", len(groups))
	}
}

func TestStore_ListActiveAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fixtures.CreateChurch(ctx, "A")
	b := fixtures.CreateChurch(ctx, "B")
	fixtures.CreateGroup(ctx, "One", a.ID)
	g := fixtures.CreateGroup(ctx, "Two", a.ID)
	fixtures.CreateGroup(ctx, "Three", b.ID)

	status := models.StatusDisabled
	if _, err := store.Update(ctx, a.ID, g.ID, groupstore.Update{Status: &status}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	all, err := store.ListActive(ctx, nil)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListActive(nil) = %d groups, want 2", len(all))
	}
	inA, err := store.ListActive(ctx, &a.ID)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(inA) != 1 {
		t.Errorf("ListActive(A) = %d groups, want 1", len(inA))
	}

	n, err := store.CountByChurch(ctx, a.ID, "")
	if err != nil || n != 2 {
		t.Errorf("CountByChurch = %d, %v; want 2", n, err)
	}
	n, err = store.CountByChurch(ctx, a.ID, models.StatusActive)
	if err != nil || n != 1 {
		t.Errorf("CountByChurch(active) = %d, %v; want 1", n, err)
	}
}
