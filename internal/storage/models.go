package storage

import "encoding/json"

// Table names as they appear in the schema and on the change bus.
const (
	TableConfig   = "config"
	TableAppState = "app_state"
)

// Well-known config keys.
const (
	KeyTheme          = "theme"
	KeyLauncher       = "launcher"
	KeyFirstTimeSetup = "firstTimeSetup"
	KeyOnboarding     = "onboarding"
)

// ConfigEntry is one row of the config table. Value holds a JSON document.
type ConfigEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// AppState records per-app user flags. A row with both flags false carries no
// information and is removed by the convergent write paths.
type AppState struct {
	AppID       string `json:"appId"`
	IsFavorite  bool   `json:"isFavorite"`
	IsInstalled bool   `json:"isInstalled"`
}

// AppStatePatch updates only the non-nil flags.
type AppStatePatch struct {
	IsFavorite  *bool
	IsInstalled *bool
}

// Flag names an indexed boolean column of app_state.
type Flag string

const (
	FlagFavorite  Flag = "is_favorite"
	FlagInstalled Flag = "is_installed"
)

func (f Flag) valid() bool {
	return f == FlagFavorite || f == FlagInstalled
}

// Theme is the value stored under KeyTheme.
type Theme struct {
	Mode      string `json:"mode"`
	PaletteID string `json:"paletteId"`
	FontID    string `json:"fontId"`
}

// LauncherSelection is the value stored under KeyLauncher. A nil SelectedID
// means no app is selected.
type LauncherSelection struct {
	SelectedID *string `json:"selectedId"`
}

// FirstTimeSetup is the value stored under KeyFirstTimeSetup. SchoolPass and
// Password hold hashes once written through the config façade.
type FirstTimeSetup struct {
	SchoolID             string `json:"SchoolID"`
	SchoolPass           string `json:"SchoolPass"`
	Username             string `json:"Username"`
	Password             string `json:"Password"`
	IsFirstTimeSetupDone bool   `json:"isFirstTimeSetupDone"`
}
