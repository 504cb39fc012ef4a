package appstore

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kalambet/ambridge/internal/storage"
)

var ErrInvalidTheme = errors.New("invalid theme")

var (
	Modes    = []string{"light", "dark"}
	Palettes = []string{"ocean", "mint", "sunset", "violet", "emerald", "amber", "rose", "indigo", "slate", "lime", "coral", "plum"}
	Fonts    = []string{"space", "sarabun"}
)

// CatalogApps lists the app ids shipped with the dashboard.
var CatalogApps = []string{"inventory", "analytics", "crm", "billing", "catalog", "sarabun"}

// DefaultTheme is used to complete partial themes found in legacy storage.
var DefaultTheme = storage.Theme{Mode: "light", PaletteID: "ocean", FontID: "space"}

// ValidateTheme checks every field of t against the known enumerations.
func ValidateTheme(t storage.Theme) error {
	if !slices.Contains(Modes, t.Mode) {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidTheme, t.Mode)
	}
	if !slices.Contains(Palettes, t.PaletteID) {
		return fmt.Errorf("%w: unknown palette %q", ErrInvalidTheme, t.PaletteID)
	}
	if !slices.Contains(Fonts, t.FontID) {
		return fmt.Errorf("%w: unknown font %q", ErrInvalidTheme, t.FontID)
	}
	return nil
}

func completeTheme(t storage.Theme) storage.Theme {
	if t.Mode == "" {
		t.Mode = DefaultTheme.Mode
	}
	if t.PaletteID == "" {
		t.PaletteID = DefaultTheme.PaletteID
	}
	if t.FontID == "" {
		t.FontID = DefaultTheme.FontID
	}
	return t
}
