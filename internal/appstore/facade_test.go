package appstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kalambet/ambridge/internal/legacy"
	"github.com/kalambet/ambridge/internal/storage"
)

const testIterations = 1000

func newTestFacade(t *testing.T, seed map[string]string) (*Facade, *storage.Store, *legacy.MemoryStore) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	l := legacy.NewMemory(seed)
	return New(s.Config(), s.AppStates(), l, WithHashing(testIterations, 8)), s, l
}

func strPtr(s string) *string { return &s }

func mustFavorites(t *testing.T, f *Facade) []string {
	t.Helper()
	favs, err := f.ReadFavorites(context.Background())
	if err != nil {
		t.Fatalf("ReadFavorites: %v", err)
	}
	return favs
}

func mustInstalled(t *testing.T, f *Facade) []string {
	t.Helper()
	inst, err := f.ReadInstalled(context.Background())
	if err != nil {
		t.Fatalf("ReadInstalled: %v", err)
	}
	return inst
}

func TestThemeRoundTrip(t *testing.T) {
	f, _, _ := newTestFacade(t, nil)
	ctx := context.Background()

	got, err := f.ReadTheme(ctx)
	if err != nil {
		t.Fatalf("ReadTheme: %v", err)
	}
	if got != nil {
		t.Fatalf("ReadTheme on empty store = %+v, want nil", got)
	}

	want := storage.Theme{Mode: "dark", PaletteID: "violet", FontID: "sarabun"}
	if err := f.WriteTheme(ctx, want); err != nil {
		t.Fatalf("WriteTheme: %v", err)
	}
	got, err = f.ReadTheme(ctx)
	if err != nil {
		t.Fatalf("ReadTheme: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("ReadTheme = %+v, want %+v", got, want)
	}
}

func TestWriteThemeRejectsUnknownValues(t *testing.T) {
	f, _, _ := newTestFacade(t, nil)

	tests := []storage.Theme{
		{Mode: "sepia", PaletteID: "ocean", FontID: "space"},
		{Mode: "light", PaletteID: "teal", FontID: "space"},
		{Mode: "light", PaletteID: "ocean", FontID: "comic"},
		{},
	}
	for _, th := range tests {
		if err := f.WriteTheme(context.Background(), th); !errors.Is(err, ErrInvalidTheme) {
			t.Errorf("WriteTheme(%+v) error = %v, want ErrInvalidTheme", th, err)
		}
	}
}

func TestUninstallRemovesRowAndFavorite(t *testing.T) {
	f, s, _ := newTestFacade(t, nil)
	ctx := context.Background()

	if err := f.WriteInstalled(ctx, []string{"billing"}); err != nil {
		t.Fatalf("WriteInstalled: %v", err)
	}
	if err := f.WriteFavorites(ctx, []string{"billing"}); err != nil {
		t.Fatalf("WriteFavorites: %v", err)
	}
	if favs := mustFavorites(t, f); !reflect.DeepEqual(favs, []string{"billing"}) {
		t.Fatalf("favorites = %v, want [billing]", favs)
	}

	if err := f.WriteInstalled(ctx, []string{}); err != nil {
		t.Fatalf("WriteInstalled([]): %v", err)
	}
	if _, ok, _ := s.AppStates().Get(ctx, "billing"); ok {
		t.Error("billing row still exists after uninstall")
	}
	if favs := mustFavorites(t, f); len(favs) != 0 {
		t.Errorf("favorites = %v, want empty", favs)
	}
}

func TestToggleFavoriteRequiresInstalled(t *testing.T) {
	f, s, _ := newTestFacade(t, nil)
	ctx := context.Background()

	fav, err := f.ToggleFavorite(ctx, "crm")
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if fav {
		t.Error("ToggleFavorite on uninstalled app returned true")
	}
	if favs := mustFavorites(t, f); len(favs) != 0 {
		t.Errorf("favorites = %v, want empty", favs)
	}
	if n, _ := s.AppStates().Count(ctx); n != 0 {
		t.Errorf("app_state rows = %d, want 0", n)
	}

	if _, err := f.ToggleInstalled(ctx, "crm"); err != nil {
		t.Fatal(err)
	}
	fav, err = f.ToggleFavorite(ctx, "crm")
	if err != nil || !fav {
		t.Fatalf("ToggleFavorite after install = %v, %v", fav, err)
	}
}

func TestWriteFavoritesGatesOnInstalled(t *testing.T) {
	f, s, _ := newTestFacade(t, nil)
	ctx := context.Background()

	if err := f.WriteInstalled(ctx, []string{"inventory"}); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteFavorites(ctx, []string{"inventory", "crm"}); err != nil {
		t.Fatalf("WriteFavorites: %v", err)
	}
	if favs := mustFavorites(t, f); !reflect.DeepEqual(favs, []string{"inventory"}) {
		t.Errorf("favorites = %v, want [inventory]", favs)
	}
	if _, ok, _ := s.AppStates().Get(ctx, "crm"); ok {
		t.Error("WriteFavorites created a row for an uninstalled app")
	}

	if err := f.WriteFavorites(ctx, nil); err != nil {
		t.Fatal(err)
	}
	a, ok, _ := s.AppStates().Get(ctx, "inventory")
	if !ok || a.IsFavorite || !a.IsInstalled {
		t.Errorf("inventory = %+v, %v, want installed only", a, ok)
	}
}

func TestWriteFavoritesDeletesEmptyRows(t *testing.T) {
	f, s, _ := newTestFacade(t, nil)
	ctx := context.Background()

	if err := s.AppStates().Put(ctx, storage.AppState{AppID: "billing"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppStates().Put(ctx, storage.AppState{AppID: "crm", IsFavorite: true}); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteFavorites(ctx, []string{"crm"}); err != nil {
		t.Fatalf("WriteFavorites: %v", err)
	}
	if n, _ := s.AppStates().Count(ctx); n != 0 {
		rows, _ := s.AppStates().List(ctx)
		t.Errorf("rows after WriteFavorites = %+v, want none", rows)
	}
}

func TestToggleInstalledUninstallClearsFavorite(t *testing.T) {
	f, s, _ := newTestFacade(t, nil)
	ctx := context.Background()

	if inst, err := f.ToggleInstalled(ctx, "catalog"); err != nil || !inst {
		t.Fatalf("ToggleInstalled = %v, %v", inst, err)
	}
	if _, err := f.ToggleFavorite(ctx, "catalog"); err != nil {
		t.Fatal(err)
	}
	inst, err := f.ToggleInstalled(ctx, "catalog")
	if err != nil || inst {
		t.Fatalf("second ToggleInstalled = %v, %v", inst, err)
	}
	if _, ok, _ := s.AppStates().Get(ctx, "catalog"); ok {
		t.Error("row survived uninstall")
	}
	if favs := mustFavorites(t, f); len(favs) != 0 {
		t.Errorf("favorites = %v", favs)
	}
	if inst := mustInstalled(t, f); len(inst) != 0 {
		t.Errorf("installed = %v", inst)
	}
}

func TestLauncherSelection(t *testing.T) {
	f, _, _ := newTestFacade(t, nil)
	ctx := context.Background()

	sel, err := f.ReadLauncherSelection(ctx)
	if err != nil || sel != nil {
		t.Fatalf("ReadLauncherSelection = %v, %v, want nil", sel, err)
	}

	if err := f.WriteInstalled(ctx, []string{"crm", "inventory"}); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteFavorites(ctx, []string{"crm", "inventory"}); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteLauncherSelection(ctx, strPtr("crm")); err != nil {
		t.Fatal(err)
	}
	sel, _ = f.ReadLauncherSelection(ctx)
	if sel == nil || *sel != "crm" {
		t.Fatalf("ReadLauncherSelection = %v, want crm", sel)
	}

	// Still a favorite: selection kept.
	if err := f.WriteInstalled(ctx, []string{"crm"}); err != nil {
		t.Fatal(err)
	}
	if sel, _ = f.ReadLauncherSelection(ctx); sel == nil {
		t.Fatal("selection reset while app is still a favorite")
	}

	if _, err := f.ToggleFavorite(ctx, "crm"); err != nil {
		t.Fatal(err)
	}
	if sel, _ = f.ReadLauncherSelection(ctx); sel != nil {
		t.Errorf("selection = %q after unfavoriting, want nil", *sel)
	}
}
