package storage

import (
	"context"
	"errors"
	"testing"
)

func TestInspectKnownTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SeedSampleData(ctx); err != nil {
		t.Fatalf("SeedSampleData: %v", err)
	}
	if err := s.Config().PutJSON(ctx, KeyTheme, Theme{Mode: "light", PaletteID: "ocean", FontID: "space"}); err != nil {
		t.Fatal(err)
	}

	infos, err := s.TableInfos(ctx)
	if err != nil {
		t.Fatalf("TableInfos: %v", err)
	}
	want := []TableInfo{{Name: TableConfig, Count: 1}, {Name: TableAppState, Count: len(SampleAppStates)}}
	if len(infos) != len(want) {
		t.Fatalf("TableInfos = %+v, want %+v", infos, want)
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("TableInfos[%d] = %+v, want %+v", i, infos[i], want[i])
		}
	}

	rows, err := s.TableRows(ctx, TableConfig)
	if err != nil {
		t.Fatalf("TableRows(config): %v", err)
	}
	value, ok := rows[0]["value"].(map[string]any)
	if !ok || value["paletteId"] != "ocean" {
		t.Errorf("config row = %+v", rows[0])
	}

	rows, err = s.TableRows(ctx, TableAppState)
	if err != nil {
		t.Fatalf("TableRows(app_state): %v", err)
	}
	if rows[0]["appId"] != "analytics" || rows[0]["isInstalled"] != true {
		t.Errorf("first app_state row = %+v", rows[0])
	}

	if err := s.ClearTable(ctx, TableAppState); err != nil {
		t.Fatalf("ClearTable: %v", err)
	}
	if n, _ := s.TableCount(ctx, TableAppState); n != 0 {
		t.Errorf("TableCount after clear = %d", n)
	}
}

func TestInspectUnknownTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"schema_version", "app_tags", "sqlite_master"} {
		if _, err := s.TableCount(ctx, name); !errors.Is(err, ErrTableNotFound) {
			t.Errorf("TableCount(%q) error = %v, want ErrTableNotFound", name, err)
		}
		if _, err := s.TableRows(ctx, name); !errors.Is(err, ErrTableNotFound) {
			t.Errorf("TableRows(%q) error = %v, want ErrTableNotFound", name, err)
		}
		if err := s.ClearTable(ctx, name); !errors.Is(err, ErrTableNotFound) {
			t.Errorf("ClearTable(%q) error = %v, want ErrTableNotFound", name, err)
		}
	}
}

// The viewer fixture is written straight to the table, so it may hold flag
// combinations the app store layer never writes.
func TestSampleAppStatesCoverEveryFlagCombination(t *testing.T) {
	seen := make(map[[2]bool]bool)
	for _, a := range SampleAppStates {
		seen[[2]bool{a.IsFavorite, a.IsInstalled}] = true
	}
	for _, combo := range [][2]bool{{false, false}, {false, true}, {true, false}, {true, true}} {
		if !seen[combo] {
			t.Errorf("no sample row with favorite=%t installed=%t", combo[0], combo[1])
		}
	}
}
