// Package appstore is the typed read/write API over the local database. It
// migrates legacy flat storage on first use and hashes setup secrets before
// they are persisted.
package appstore

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/ambridge/internal/legacy"
	"github.com/kalambet/ambridge/internal/secure"
	"github.com/kalambet/ambridge/internal/storage"
)

// Facade wraps the config and app state repositories.
type Facade struct {
	config  storage.ConfigRepository
	apps    storage.AppStateRepository
	legacy  legacy.Store
	sources []migrationSource

	iterations   int
	outputLength int
	logger       *slog.Logger

	migration singleflight.Group
	migrated  atomic.Bool
}

// Option configures a Facade.
type Option func(*Facade)

// WithHashing sets the PBKDF2 iteration count and stored hash length used for
// setup secrets.
func WithHashing(iterations, outputLength int) Option {
	return func(f *Facade) {
		f.iterations = iterations
		f.outputLength = outputLength
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Facade) { f.logger = l }
}

// New creates a Facade. A nil legacy store means there is nothing to migrate.
func New(config storage.ConfigRepository, apps storage.AppStateRepository, l legacy.Store, opts ...Option) *Facade {
	if l == nil {
		l = legacy.NewMemory(nil)
	}
	f := &Facade{
		config:       config,
		apps:         apps,
		legacy:       l,
		sources:      defaultSources,
		iterations:   secure.DefaultIterations,
		outputLength: secure.DefaultOutputLength,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ReadTheme returns the stored theme, or nil if none was saved.
func (f *Facade) ReadTheme(ctx context.Context) (*storage.Theme, error) {
	if err := f.Migrate(ctx); err != nil {
		return nil, err
	}
	var t storage.Theme
	ok, err := f.config.GetJSON(ctx, storage.KeyTheme, &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// WriteTheme replaces the stored theme with t.
func (f *Facade) WriteTheme(ctx context.Context, t storage.Theme) error {
	if err := ValidateTheme(t); err != nil {
		return err
	}
	if err := f.Migrate(ctx); err != nil {
		return err
	}
	return f.config.PutJSON(ctx, storage.KeyTheme, t)
}

// ReadFavorites returns favorited app ids in ascending order.
func (f *Facade) ReadFavorites(ctx context.Context) ([]string, error) {
	if err := f.Migrate(ctx); err != nil {
		return nil, err
	}
	return f.apps.Favorites(ctx)
}

// WriteFavorites makes ids the complete favorites set. Ids of apps that are
// not installed are ignored, and rows left with no flag are deleted.
func (f *Facade) WriteFavorites(ctx context.Context, ids []string) error {
	want := toSet(ids)
	return f.rewrite(ctx, ids, func(id string, cur storage.AppState) storage.AppState {
		cur.IsFavorite = want[id] && cur.IsInstalled
		return cur
	})
}

// ReadInstalled returns installed app ids in ascending order.
func (f *Facade) ReadInstalled(ctx context.Context) ([]string, error) {
	if err := f.Migrate(ctx); err != nil {
		return nil, err
	}
	return f.apps.Installed(ctx)
}

// WriteInstalled makes ids the complete installed set. Uninstalled apps lose
// their favorite flag and their rows are deleted.
func (f *Facade) WriteInstalled(ctx context.Context, ids []string) error {
	want := toSet(ids)
	return f.rewrite(ctx, ids, func(id string, cur storage.AppState) storage.AppState {
		cur.IsInstalled = want[id]
		cur.IsFavorite = cur.IsFavorite && cur.IsInstalled
		return cur
	})
}

// rewrite applies next to every app in ids or already stored, upserts rows
// with a flag set and then deletes the rest. The two passes are not atomic.
func (f *Facade) rewrite(ctx context.Context, ids []string, next func(id string, cur storage.AppState) storage.AppState) error {
	if err := f.Migrate(ctx); err != nil {
		return err
	}
	states, err := f.apps.List(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]storage.AppState, len(states))
	order := make([]string, 0, len(ids)+len(states))
	for _, s := range states {
		existing[s.AppID] = s
		order = append(order, s.AppID)
	}
	for _, id := range ids {
		if _, ok := existing[id]; !ok && id != "" && !slices.Contains(order, id) {
			order = append(order, id)
		}
	}

	var (
		upserts []storage.AppState
		deletes []string
	)
	for _, id := range order {
		cur, ok := existing[id]
		if !ok {
			cur = storage.AppState{AppID: id}
		}
		s := next(id, cur)
		switch {
		case s.IsFavorite || s.IsInstalled:
			if !ok || s != cur {
				upserts = append(upserts, s)
			}
		case ok:
			deletes = append(deletes, id)
		}
	}

	if err := f.apps.PutMany(ctx, upserts); err != nil {
		return err
	}
	if err := f.apps.DeleteMany(ctx, deletes); err != nil {
		return err
	}
	return f.invalidateLauncher(ctx)
}

// ToggleFavorite flips the favorite flag of an installed app and returns the
// new value. For an app that is not installed it does nothing and returns false.
func (f *Facade) ToggleFavorite(ctx context.Context, appID string) (bool, error) {
	if err := f.Migrate(ctx); err != nil {
		return false, err
	}
	cur, _, err := f.apps.Get(ctx, appID)
	if err != nil {
		return false, err
	}
	if !cur.IsInstalled {
		f.logger.Debug("favorite toggle ignored for app that is not installed", "app", appID)
		return false, nil
	}
	fav, err := f.apps.ToggleFavorite(ctx, appID)
	if err != nil {
		return false, err
	}
	return fav, f.invalidateLauncher(ctx)
}

// ToggleInstalled installs or uninstalls an app and returns the new installed
// flag. Uninstalling deletes the row, clearing the favorite with it.
func (f *Facade) ToggleInstalled(ctx context.Context, appID string) (bool, error) {
	if err := f.Migrate(ctx); err != nil {
		return false, err
	}
	cur, _, err := f.apps.Get(ctx, appID)
	if err != nil {
		return false, err
	}
	if cur.IsInstalled {
		if err := f.apps.Delete(ctx, appID); err != nil {
			return false, err
		}
		return false, f.invalidateLauncher(ctx)
	}
	if err := f.apps.SetInstalled(ctx, appID, true); err != nil {
		return false, err
	}
	return true, nil
}

// ReadLauncherSelection returns the highlighted app id, or nil.
func (f *Facade) ReadLauncherSelection(ctx context.Context) (*string, error) {
	if err := f.Migrate(ctx); err != nil {
		return nil, err
	}
	var sel storage.LauncherSelection
	if _, err := f.config.GetJSON(ctx, storage.KeyLauncher, &sel); err != nil {
		return nil, err
	}
	return sel.SelectedID, nil
}

// WriteLauncherSelection stores id; nil clears the selection.
func (f *Facade) WriteLauncherSelection(ctx context.Context, id *string) error {
	if err := f.Migrate(ctx); err != nil {
		return err
	}
	return f.config.PutJSON(ctx, storage.KeyLauncher, storage.LauncherSelection{SelectedID: id})
}

// invalidateLauncher resets the selection when its app is no longer a favorite.
func (f *Facade) invalidateLauncher(ctx context.Context) error {
	var sel storage.LauncherSelection
	ok, err := f.config.GetJSON(ctx, storage.KeyLauncher, &sel)
	if err != nil || !ok || sel.SelectedID == nil {
		return err
	}
	favs, err := f.apps.Favorites(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(favs, *sel.SelectedID) {
		return nil
	}
	f.logger.Debug("launcher selection reset", "app", *sel.SelectedID)
	return f.config.PutJSON(ctx, storage.KeyLauncher, storage.LauncherSelection{})
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
