package appstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kalambet/ambridge/internal/legacy"
	"github.com/kalambet/ambridge/internal/secure"
	"github.com/kalambet/ambridge/internal/storage"
)

// Flat keys of the legacy storage format.
const (
	PrimaryKey = "Ambridge"

	LegacyThemeKey     = "Theme"
	LegacyFavoritesKey = "favoriteApps:v1"
	LegacyInstalledKey = "installedApps:v1"
	LegacyLauncherKey  = "favoriteApps:launcher:v1"
	LegacyTagsKey      = "appTags:v1"
)

// PreviousKeys held the same blob as PrimaryKey under older product names.
var PreviousKeys = []string{"AMPLIFY"}

// StaleKeys are removed on every migration check.
var StaleKeys = []string{"theme-mode", "theme-font", "theme-palette"}

var individualKeys = []string{LegacyThemeKey, LegacyFavoritesKey, LegacyInstalledKey, LegacyLauncherKey, LegacyTagsKey}

// legacyKeys returns every flat key consumed by a successful migration.
func legacyKeys() []string {
	keys := []string{PrimaryKey}
	keys = append(keys, PreviousKeys...)
	return append(keys, individualKeys...)
}

// legacyState is the blob shape stored under PrimaryKey and PreviousKeys.
// Tags are accepted and discarded.
type legacyState struct {
	Theme          *storage.Theme             `json:"theme,omitempty"`
	Favorites      []string                   `json:"favorites,omitempty"`
	Installed      []string                   `json:"installed,omitempty"`
	Launcher       *storage.LauncherSelection `json:"launcher,omitempty"`
	FirstTimeSetup *storage.FirstTimeSetup    `json:"firstTimeSetup,omitempty"`
	Tags           json.RawMessage            `json:"tags,omitempty"`
}

func (s legacyState) empty() bool {
	return (s.Theme == nil || *s.Theme == storage.Theme{}) &&
		len(s.Favorites) == 0 &&
		len(s.Installed) == 0 &&
		(s.Launcher == nil || s.Launcher.SelectedID == nil) &&
		(s.FirstTimeSetup == nil || *s.FirstTimeSetup == storage.FirstTimeSetup{})
}

// migrationSource is one place legacy state may live. load reports found ==
// false when the source holds nothing usable, including unparsable data.
type migrationSource struct {
	name string
	load func(l legacy.Store, logger *slog.Logger) (st legacyState, found bool, err error)
}

var defaultSources = []migrationSource{
	{name: "primary-blob", load: loadPrimaryBlob},
	{name: "previous-blob", load: loadPreviousBlob},
	{name: "individual-keys", load: loadIndividualKeys},
}

func loadPrimaryBlob(l legacy.Store, logger *slog.Logger) (legacyState, bool, error) {
	var st legacyState
	found, err := readLegacyJSON(l, logger, PrimaryKey, &st)
	return st, found, err
}

func loadPreviousBlob(l legacy.Store, logger *slog.Logger) (legacyState, bool, error) {
	for _, key := range PreviousKeys {
		var st legacyState
		found, err := readLegacyJSON(l, logger, key, &st)
		if err != nil {
			return legacyState{}, false, err
		}
		if found {
			return st, true, nil
		}
	}
	return legacyState{}, false, nil
}

func loadIndividualKeys(l legacy.Store, logger *slog.Logger) (legacyState, bool, error) {
	var (
		st       legacyState
		theme    storage.Theme
		launcher storage.LauncherSelection
	)
	if ok, err := readLegacyJSON(l, logger, LegacyThemeKey, &theme); err != nil {
		return legacyState{}, false, err
	} else if ok {
		st.Theme = &theme
	}
	if _, err := readLegacyJSON(l, logger, LegacyFavoritesKey, &st.Favorites); err != nil {
		return legacyState{}, false, err
	}
	if _, err := readLegacyJSON(l, logger, LegacyInstalledKey, &st.Installed); err != nil {
		return legacyState{}, false, err
	}
	if ok, err := readLegacyJSON(l, logger, LegacyLauncherKey, &launcher); err != nil {
		return legacyState{}, false, err
	} else if ok {
		st.Launcher = &launcher
	}
	return st, !st.empty(), nil
}

// readLegacyJSON decodes the value under key into dst. Missing, empty and
// malformed values report false; only storage errors are returned.
func readLegacyJSON(l legacy.Store, logger *slog.Logger, key string, dst any) (bool, error) {
	raw, ok, err := l.Get(key)
	if err != nil {
		return false, fmt.Errorf("reading legacy key %q: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		logger.Warn("ignoring malformed legacy value", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Migrate moves legacy flat storage into the database. It runs at most once
// per Facade; concurrent callers share a single run. Every public operation
// calls it first.
func (f *Facade) Migrate(ctx context.Context) error {
	if f.migrated.Load() {
		return nil
	}
	_, err, _ := f.migration.Do("migrate", func() (any, error) {
		if f.migrated.Load() {
			return nil, nil
		}
		if err := f.migrate(ctx); err != nil {
			return nil, err
		}
		f.migrated.Store(true)
		return nil, nil
	})
	return err
}

func (f *Facade) migrate(ctx context.Context) error {
	for _, key := range StaleKeys {
		if err := f.legacy.Remove(key); err != nil {
			return fmt.Errorf("removing stale key %q: %w", key, err)
		}
	}
	if err := f.config.Delete(ctx, storage.KeyOnboarding); err != nil {
		return err
	}

	_, hasTheme, err := f.config.Get(ctx, storage.KeyTheme)
	if err != nil {
		return err
	}
	if hasTheme {
		// Already migrated; the blobs may have been rewritten by an old client.
		return f.removeLegacy(append([]string{PrimaryKey}, PreviousKeys...))
	}

	for _, src := range f.sources {
		st, found, err := src.load(f.legacy, f.logger)
		if err != nil {
			return fmt.Errorf("migration source %s: %w", src.name, err)
		}
		if !found {
			continue
		}
		rows, err := f.applyLegacy(ctx, st)
		if err != nil {
			return fmt.Errorf("migrating from %s: %w", src.name, err)
		}
		if err := f.removeLegacy(legacyKeys()); err != nil {
			return err
		}
		f.logger.Info("legacy state migrated", "source", src.name, "rows", rows)
		return nil
	}

	f.logger.Debug("no legacy state to migrate")
	return nil
}

// applyLegacy writes st into the database and returns the number of rows
// written. Every write is an upsert, so a repeated run converges.
func (f *Facade) applyLegacy(ctx context.Context, st legacyState) (int, error) {
	var entries []storage.ConfigEntry
	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		entries = append(entries, storage.ConfigEntry{Key: key, Value: raw})
		return nil
	}

	if st.Theme != nil && *st.Theme != (storage.Theme{}) {
		if err := put(storage.KeyTheme, completeTheme(*st.Theme)); err != nil {
			return 0, err
		}
	}
	if st.Launcher != nil {
		if err := put(storage.KeyLauncher, st.Launcher); err != nil {
			return 0, err
		}
	}
	if st.FirstTimeSetup != nil && *st.FirstTimeSetup != (storage.FirstTimeSetup{}) {
		rec := *st.FirstTimeSetup
		var err error
		if rec.SchoolPass, err = f.migrateSecret(rec.SchoolPass); err != nil {
			return 0, err
		}
		if rec.Password, err = f.migrateSecret(rec.Password); err != nil {
			return 0, err
		}
		if err := put(storage.KeyFirstTimeSetup, rec); err != nil {
			return 0, err
		}
	}

	states := legacyAppStates(st.Favorites, st.Installed)
	if err := f.config.PutMany(ctx, entries); err != nil {
		return 0, err
	}
	if err := f.apps.PutMany(ctx, states); err != nil {
		return 0, err
	}
	return len(entries) + len(states), nil
}

// legacyAppStates merges the legacy lists into rows. A favorite that is not
// also installed is dropped, matching the rule applied to live writes.
func legacyAppStates(favorites, installed []string) []storage.AppState {
	fav := toSet(favorites)
	var states []storage.AppState
	seen := make(map[string]bool, len(installed))
	for _, id := range installed {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		states = append(states, storage.AppState{AppID: id, IsInstalled: true, IsFavorite: fav[id]})
	}
	return states
}

func (f *Facade) migrateSecret(v string) (string, error) {
	if secure.LooksLegacyHashed(v) {
		return secure.UpgradeLegacy(v), nil
	}
	return f.hashSecret(v)
}

func (f *Facade) removeLegacy(keys []string) error {
	for _, key := range keys {
		if err := f.legacy.Remove(key); err != nil {
			return fmt.Errorf("removing legacy key %q: %w", key, err)
		}
	}
	return nil
}
