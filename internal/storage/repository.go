package storage

import "context"

// ConfigRepository stores opaque JSON settings by key.
type ConfigRepository interface {
	Create(ctx context.Context, e ConfigEntry) error
	Get(ctx context.Context, key string) (ConfigEntry, bool, error)
	List(ctx context.Context) ([]ConfigEntry, error)
	Put(ctx context.Context, e ConfigEntry) error
	Patch(ctx context.Context, key string, fields map[string]any) (bool, error)
	Delete(ctx context.Context, key string) error
	PutMany(ctx context.Context, entries []ConfigEntry) error
	DeleteMany(ctx context.Context, keys []string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Query(ctx context.Context, field string, value any) ([]ConfigEntry, error)
	Where(ctx context.Context, keep func(ConfigEntry) bool) ([]ConfigEntry, error)

	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	PutJSON(ctx context.Context, key string, v any) error
}

// AppStateRepository stores per-app favorite and installed flags.
type AppStateRepository interface {
	Create(ctx context.Context, a AppState) error
	Get(ctx context.Context, appID string) (AppState, bool, error)
	List(ctx context.Context) ([]AppState, error)
	Put(ctx context.Context, a AppState) error
	Patch(ctx context.Context, appID string, p AppStatePatch) (bool, error)
	Delete(ctx context.Context, appID string) error
	PutMany(ctx context.Context, states []AppState) error
	DeleteMany(ctx context.Context, appIDs []string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Query(ctx context.Context, flag Flag, value bool) ([]AppState, error)
	Where(ctx context.Context, keep func(AppState) bool) ([]AppState, error)

	Favorites(ctx context.Context) ([]string, error)
	Installed(ctx context.Context) ([]string, error)
	ToggleFavorite(ctx context.Context, appID string) (bool, error)
	ToggleInstalled(ctx context.Context, appID string) (bool, error)
	SetFavorite(ctx context.Context, appID string, v bool) error
	SetInstalled(ctx context.Context, appID string, v bool) error
}
