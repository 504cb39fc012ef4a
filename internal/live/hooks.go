package live

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/ambridge/internal/storage"
)

// Hooks bundles the live projections the presentation layer reads from.
// Pointer-valued projections are nil when the config key is absent.
type Hooks struct {
	Theme             *Query[*storage.Theme]
	FavoriteApps      *Query[[]string]
	InstalledApps     *Query[[]string]
	AllAppStates      *Query[[]storage.AppState]
	LauncherSelection *Query[*storage.LauncherSelection]
	FirstTimeSetup    *Query[*storage.FirstTimeSetup]
	IsFirstTime       *Query[bool]
}

// NewHooks creates the projections over s. They start loading when Run is
// called.
func NewHooks(s *storage.Store, opts ...Option) *Hooks {
	h := &Hooks{}
	config := []string{storage.TableConfig}
	appState := []string{storage.TableAppState}

	bus := s.Bus()
	cfg := s.Config()
	apps := s.AppStates()

	h.Theme = NewQuery("theme", bus, configValue[storage.Theme](cfg, storage.KeyTheme), config, opts...)
	h.FavoriteApps = NewQuery("favoriteApps", bus, apps.Favorites, appState, opts...)
	h.InstalledApps = NewQuery("installedApps", bus, apps.Installed, appState, opts...)
	h.AllAppStates = NewQuery("allAppStates", bus, func(ctx context.Context) ([]storage.AppState, error) {
		states, err := apps.List(ctx)
		if states == nil && err == nil {
			states = []storage.AppState{}
		}
		return states, err
	}, appState, opts...)
	h.LauncherSelection = NewQuery("launcherSelection", bus,
		configValue[storage.LauncherSelection](cfg, storage.KeyLauncher), config, opts...)

	setup := configValue[storage.FirstTimeSetup](cfg, storage.KeyFirstTimeSetup)
	h.FirstTimeSetup = NewQuery("firstTimeSetup", bus, setup, config, opts...)
	h.IsFirstTime = NewQuery("isFirstTime", bus, func(ctx context.Context) (bool, error) {
		rec, err := setup(ctx)
		if err != nil {
			return false, err
		}
		return rec == nil || !rec.IsFirstTimeSetupDone, nil
	}, config, opts...)

	return h
}

// Run drives every projection until ctx is cancelled.
func (h *Hooks) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, run := range []func(context.Context) error{
		h.Theme.Run,
		h.FavoriteApps.Run,
		h.InstalledApps.Run,
		h.AllAppStates.Run,
		h.LauncherSelection.Run,
		h.FirstTimeSetup.Run,
		h.IsFirstTime.Run,
	} {
		g.Go(func() error { return run(ctx) })
	}
	return g.Wait()
}

func configValue[T any](cfg storage.ConfigRepository, key string) FetchFunc[*T] {
	return func(ctx context.Context) (*T, error) {
		var v T
		ok, err := cfg.GetJSON(ctx, key, &v)
		if err != nil || !ok {
			return nil, err
		}
		return &v, nil
	}
}
