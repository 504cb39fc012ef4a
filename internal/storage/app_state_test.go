package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestAppStateCreateDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := AppState{AppID: "crm", IsInstalled: true}
	if err := s.AppStates().Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.AppStates().Create(ctx, a); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("second Create error = %v, want ErrDuplicateKey", err)
	}
}

func TestAppStateFlagsStoredAsIntegers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AppStates().Put(ctx, AppState{AppID: "billing", IsFavorite: true}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var fav, inst any
	if err := s.db.QueryRow(`SELECT is_favorite, is_installed FROM app_state WHERE app_id = 'billing'`).Scan(&fav, &inst); err != nil {
		t.Fatalf("raw select: %v", err)
	}
	if fav != int64(1) || inst != int64(0) {
		t.Errorf("stored flags = %v/%v, want 1/0", fav, inst)
	}
}

func TestAppStateToggles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.AppStates()

	installed, err := repo.ToggleInstalled(ctx, "crm")
	if err != nil || !installed {
		t.Fatalf("ToggleInstalled = %v, %v, want true", installed, err)
	}
	fav, err := repo.ToggleFavorite(ctx, "crm")
	if err != nil || !fav {
		t.Fatalf("ToggleFavorite = %v, %v, want true", fav, err)
	}

	got, _, _ := repo.Get(ctx, "crm")
	want := AppState{AppID: "crm", IsFavorite: true, IsInstalled: true}
	if got != want {
		t.Errorf("after toggles = %+v, want %+v", got, want)
	}

	// The flag not being changed is carried through.
	if err := repo.SetInstalled(ctx, "crm", false); err != nil {
		t.Fatalf("SetInstalled: %v", err)
	}
	got, _, _ = repo.Get(ctx, "crm")
	if !got.IsFavorite || got.IsInstalled {
		t.Errorf("after SetInstalled(false) = %+v", got)
	}

	if err := repo.SetFavorite(ctx, "analytics", true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}
	got, ok, _ := repo.Get(ctx, "analytics")
	if !ok || !got.IsFavorite || got.IsInstalled {
		t.Errorf("SetFavorite on missing row = %+v, %v", got, ok)
	}
}

func TestAppStatePatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.AppStates()

	if err := repo.Put(ctx, AppState{AppID: "catalog", IsFavorite: true, IsInstalled: true}); err != nil {
		t.Fatal(err)
	}
	no := false
	ok, err := repo.Patch(ctx, "catalog", AppStatePatch{IsFavorite: &no})
	if err != nil || !ok {
		t.Fatalf("Patch = %v, %v", ok, err)
	}
	got, _, _ := repo.Get(ctx, "catalog")
	if got.IsFavorite || !got.IsInstalled {
		t.Errorf("after Patch = %+v, want installed only", got)
	}

	ok, err = repo.Patch(ctx, "missing", AppStatePatch{IsFavorite: &no})
	if err != nil || ok {
		t.Errorf("Patch(missing) = %v, %v, want false, nil", ok, err)
	}
}

func TestAppStateQueryAndLists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SeedSampleData(ctx); err != nil {
		t.Fatalf("SeedSampleData: %v", err)
	}
	repo := s.AppStates()

	favs, err := repo.Favorites(ctx)
	if err != nil {
		t.Fatalf("Favorites: %v", err)
	}
	if want := []string{"catalog", "crm", "inventory"}; !reflect.DeepEqual(favs, want) {
		t.Errorf("Favorites = %v, want %v", favs, want)
	}

	inst, err := repo.Installed(ctx)
	if err != nil {
		t.Fatalf("Installed: %v", err)
	}
	if want := []string{"analytics", "catalog", "inventory"}; !reflect.DeepEqual(inst, want) {
		t.Errorf("Installed = %v, want %v", inst, want)
	}

	notInstalled, err := repo.Query(ctx, FlagInstalled, false)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(notInstalled) != 2 || notInstalled[0].AppID != "billing" || notInstalled[1].AppID != "crm" {
		t.Errorf("Query(installed=false) = %+v", notInstalled)
	}

	if _, err := repo.Query(ctx, Flag("app_id"), true); err == nil {
		t.Error("Query with unknown flag should fail")
	}

	both, err := repo.Where(ctx, func(a AppState) bool { return a.IsFavorite && a.IsInstalled })
	if err != nil {
		t.Fatalf("Where: %v", err)
	}
	if len(both) != 2 {
		t.Errorf("Where(both) = %+v", both)
	}
}

func TestAppStateEmptyListsAreNotNil(t *testing.T) {
	s := openTestStore(t)

	favs, err := s.AppStates().Favorites(context.Background())
	if err != nil {
		t.Fatalf("Favorites: %v", err)
	}
	if favs == nil || len(favs) != 0 {
		t.Errorf("Favorites = %#v, want empty non-nil slice", favs)
	}
}

func TestAppStateBulk(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.AppStates()

	if err := repo.PutMany(ctx, SampleAppStates); err != nil {
		t.Fatalf("PutMany: %v", err)
	}
	if err := repo.DeleteMany(ctx, []string{"billing", "crm"}); err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
	if err := repo.Delete(ctx, "billing"); err != nil {
		t.Errorf("Delete(missing) = %v", err)
	}
	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 0 {
		t.Errorf("Count after Clear = %d", n)
	}
}
