package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/ambridge/internal/appstore"
	"github.com/kalambet/ambridge/internal/config"
	"github.com/kalambet/ambridge/internal/storage"
)

// --- theme ---

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Show or change the dashboard theme",
}

var themeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored theme",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		t, err := s.facade.ReadTheme(cmd.Context())
		if err != nil {
			return err
		}
		if t == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "(none)")
			return nil
		}
		w := cmd.OutOrStdout()
		printStatus(w, "mode", "%s", t.Mode)
		printStatus(w, "palette", "%s", t.PaletteID)
		printStatus(w, "font", "%s", t.FontID)
		return nil
	}),
}

var themeSetCmd = &cobra.Command{
	Use:   "set <mode> <palette> <font>",
	Short: "Replace the stored theme",
	Long: `Replace the stored theme.

Examples:
  ambridge theme set dark violet sarabun
  ambridge theme set light ocean space`,
	Args: cobra.ExactArgs(3),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		t := storage.Theme{Mode: args[0], PaletteID: args[1], FontID: args[2]}
		if err := s.facade.WriteTheme(cmd.Context(), t); err != nil {
			return err
		}
		printSuccess(cmd, "Theme set to %s/%s/%s", t.Mode, t.PaletteID, t.FontID)
		return nil
	}),
}

var themeOptionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List valid modes, palettes and fonts",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		printStatus(w, "modes", "%s", strings.Join(appstore.Modes, ", "))
		printStatus(w, "palettes", "%s", strings.Join(appstore.Palettes, ", "))
		printStatus(w, "fonts", "%s", strings.Join(appstore.Fonts, ", "))
		return nil
	},
}

func init() {
	themeCmd.AddCommand(themeShowCmd, themeSetCmd, themeOptionsCmd)
	rootCmd.AddCommand(themeCmd)
}

// --- apps ---

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage favorite and installed apps",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every app with its flags",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		ctx := cmd.Context()
		if err := s.facade.Migrate(ctx); err != nil {
			return err
		}
		states, err := s.store.AppStates().List(ctx)
		if err != nil {
			return err
		}
		known := make(map[string]storage.AppState, len(states))
		for _, st := range states {
			known[st.AppID] = st
		}
		ids := slices.Clone(appstore.CatalogApps)
		for _, st := range states {
			if !slices.Contains(ids, st.AppID) {
				ids = append(ids, st.AppID)
			}
		}

		w := cmd.OutOrStdout()
		for _, id := range ids {
			st := known[id]
			fmt.Fprintf(w, "%-12s installed=%-5t favorite=%t\n", id, st.IsInstalled, st.IsFavorite)
		}
		return nil
	}),
}

var appsFavoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List favorite apps",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		ids, err := s.facade.ReadFavorites(cmd.Context())
		if err != nil {
			return err
		}
		printIDs(cmd.OutOrStdout(), ids)
		return nil
	}),
}

var appsInstalledCmd = &cobra.Command{
	Use:   "installed",
	Short: "List installed apps",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		ids, err := s.facade.ReadInstalled(cmd.Context())
		if err != nil {
			return err
		}
		printIDs(cmd.OutOrStdout(), ids)
		return nil
	}),
}

var appsSetFavoritesCmd = &cobra.Command{
	Use:   "set-favorites [app-id...]",
	Short: "Replace the favorites set (apps that are not installed are skipped)",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		warnUnknownApps(cmd, args)
		if err := s.facade.WriteFavorites(cmd.Context(), args); err != nil {
			return err
		}
		printSuccess(cmd, "Favorites updated")
		return nil
	}),
}

var appsSetInstalledCmd = &cobra.Command{
	Use:   "set-installed [app-id...]",
	Short: "Replace the installed set",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		warnUnknownApps(cmd, args)
		if err := s.facade.WriteInstalled(cmd.Context(), args); err != nil {
			return err
		}
		printSuccess(cmd, "Installed apps updated")
		return nil
	}),
}

var appsFavoriteCmd = &cobra.Command{
	Use:   "favorite <app-id>",
	Short: "Toggle the favorite flag of an installed app",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		id := args[0]
		fav, err := s.facade.ToggleFavorite(cmd.Context(), id)
		if err != nil {
			return err
		}
		st, _, err := s.store.AppStates().Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !st.IsInstalled {
			printWarning(cmd, "%s is not installed; install it first", id)
			return nil
		}
		printSuccess(cmd, "%s favorite=%t", id, fav)
		return nil
	}),
}

var appsInstallCmd = &cobra.Command{
	Use:   "install <app-id>",
	Short: "Toggle the installed flag of an app (uninstalling also unfavorites)",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		warnUnknownApps(cmd, args)
		inst, err := s.facade.ToggleInstalled(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printSuccess(cmd, "%s installed=%t", args[0], inst)
		return nil
	}),
}

func warnUnknownApps(cmd *cobra.Command, ids []string) {
	for _, id := range ids {
		if !slices.Contains(appstore.CatalogApps, id) {
			printWarning(cmd, "%q is not a catalog app (known: %s)", id, strings.Join(appstore.CatalogApps, ", "))
		}
	}
}

func init() {
	appsCmd.AddCommand(appsListCmd, appsFavoritesCmd, appsInstalledCmd,
		appsSetFavoritesCmd, appsSetInstalledCmd, appsFavoriteCmd, appsInstallCmd)
	rootCmd.AddCommand(appsCmd)
}

// --- launcher ---

var launcherCmd = &cobra.Command{
	Use:   "launcher",
	Short: "Show or change the quick-launcher selection",
}

var launcherShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the selected app",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		sel, err := s.facade.ReadLauncherSelection(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), orNone(sel))
		return nil
	}),
}

var launcherSetCmd = &cobra.Command{
	Use:   "set <app-id>",
	Short: "Select a favorite app in the launcher",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		id := args[0]
		favs, err := s.facade.ReadFavorites(cmd.Context())
		if err != nil {
			return err
		}
		if !slices.Contains(favs, id) {
			return fmt.Errorf("%s is not a favorite", id)
		}
		if err := s.facade.WriteLauncherSelection(cmd.Context(), &id); err != nil {
			return err
		}
		printSuccess(cmd, "Launcher set to %s", id)
		return nil
	}),
}

var launcherClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the launcher selection",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		if err := s.facade.WriteLauncherSelection(cmd.Context(), nil); err != nil {
			return err
		}
		printSuccess(cmd, "Launcher cleared")
		return nil
	}),
}

func init() {
	launcherCmd.AddCommand(launcherShowCmd, launcherSetCmd, launcherClearCmd)
	rootCmd.AddCommand(launcherCmd)
}

// --- setup ---

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Inspect or drive the first-time setup record",
}

var setupShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored setup record (secrets are shown hashed)",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		rec, err := s.facade.ReadFirstTimeSetup(cmd.Context())
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "(none)")
			return nil
		}
		return printJSON(cmd.OutOrStdout(), rec)
	}),
}

var setupStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the setup wizard still needs to run",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		needed, err := s.facade.IsFirstTimeSetupNeeded(cmd.Context())
		if err != nil {
			return err
		}
		if needed {
			fmt.Fprintln(cmd.OutOrStdout(), "needed")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "done")
		}
		return nil
	}),
}

func setupRecordFromFlags(cmd *cobra.Command, base *storage.FirstTimeSetup) storage.FirstTimeSetup {
	var rec storage.FirstTimeSetup
	if base != nil {
		rec = *base
	}
	if cmd.Flags().Changed("school-id") {
		rec.SchoolID, _ = cmd.Flags().GetString("school-id")
	}
	if cmd.Flags().Changed("school-pass") {
		rec.SchoolPass, _ = cmd.Flags().GetString("school-pass")
	}
	if cmd.Flags().Changed("username") {
		rec.Username, _ = cmd.Flags().GetString("username")
	}
	if cmd.Flags().Changed("password") {
		rec.Password, _ = cmd.Flags().GetString("password")
	}
	return rec
}

var setupWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Update fields of the setup record; secrets are hashed before storage",
	Long: `Update fields of the setup record. Fields not given keep their stored value.

Examples:
  ambridge setup write --school-id S-42 --school-pass secret
  ambridge setup write --username admin --password hunter2`,
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		stored, err := s.facade.ReadFirstTimeSetup(cmd.Context())
		if err != nil {
			return err
		}
		if err := s.facade.WriteFirstTimeSetup(cmd.Context(), setupRecordFromFlags(cmd, stored)); err != nil {
			return err
		}
		printSuccess(cmd, "Setup record saved")
		return nil
	}),
}

var setupCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Mark the setup wizard as done",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		stored, err := s.facade.ReadFirstTimeSetup(cmd.Context())
		if err != nil {
			return err
		}
		rec := setupRecordFromFlags(cmd, stored)
		if err := s.facade.CompleteFirstTimeSetup(cmd.Context(), &rec); err != nil {
			return err
		}
		printSuccess(cmd, "Setup complete")
		return nil
	}),
}

var setupToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Flip the setup-done flag (developer shortcut)",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		done, err := s.facade.ToggleFirstTimeSetupDone(cmd.Context())
		if err != nil {
			return err
		}
		printSuccess(cmd, "isFirstTimeSetupDone=%t", done)
		return nil
	}),
}

var setupVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check credentials against the stored hashes",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		ctx := cmd.Context()
		var (
			ok  bool
			err error
		)
		switch {
		case cmd.Flags().Changed("username"):
			user, _ := cmd.Flags().GetString("username")
			pass, _ := cmd.Flags().GetString("password")
			ok, err = s.facade.VerifyFirstTimeSetup(ctx, user, pass)
		case cmd.Flags().Changed("school-id"):
			id, _ := cmd.Flags().GetString("school-id")
			pass, _ := cmd.Flags().GetString("school-pass")
			ok, err = s.facade.VerifySchoolPass(ctx, id, pass)
		default:
			return fmt.Errorf("one of --username or --school-id is required")
		}
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("credentials do not match")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "verified")
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{setupWriteCmd, setupCompleteCmd, setupVerifyCmd} {
		c.Flags().String("school-id", "", "school id")
		c.Flags().String("school-pass", "", "school pass (plaintext)")
		c.Flags().String("username", "", "admin username")
		c.Flags().String("password", "", "admin password (plaintext)")
	}
	setupCmd.AddCommand(setupShowCmd, setupStatusCmd, setupWriteCmd, setupCompleteCmd, setupToggleCmd, setupVerifyCmd)
	rootCmd.AddCommand(setupCmd)
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move legacy flat storage into the database",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		printStep(cmd, "Checking %s", s.legacy.Path())
		if err := s.facade.Migrate(cmd.Context()); err != nil {
			return err
		}
		printSuccess(cmd, "Migration complete")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		printStatus(w, "config file", "%s", config.FilePath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess(cmd, "Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess(cmd, "Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}
