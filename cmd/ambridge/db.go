package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalambet/ambridge/internal/legacy"
	"github.com/kalambet/ambridge/internal/storage"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the local database",
}

var dbTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables with their row counts",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		infos, err := s.store.TableInfos(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, ti := range infos {
			fmt.Fprintf(w, "%-10s %d\n", ti.Name, ti.Count)
		}
		return nil
	}),
}

var dbDumpCmd = &cobra.Command{
	Use:   "dump <table>",
	Short: "Print every row of a table as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		rows, err := s.store.TableRows(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rows)
	}),
}

var dbClearCmd = &cobra.Command{
	Use:   "clear <table>",
	Short: "Delete every row of a table",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		if ok, _ := cmd.Flags().GetBool("confirm"); !ok {
			return fmt.Errorf("refusing to clear %s without --confirm", args[0])
		}
		if err := s.store.ClearTable(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess(cmd, "Cleared %s", args[0])
		return nil
	}),
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample app states for development",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		if err := s.store.SeedSampleData(cmd.Context()); err != nil {
			return err
		}
		printSuccess(cmd, "Seeded %d app states", len(storage.SampleAppStates))
		return nil
	}),
}

var dbVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the schema version and applied migrations",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		v, err := s.store.SchemaVersion()
		if err != nil {
			return err
		}
		applied, err := s.store.AppliedMigrations()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		printStatus(w, "schema version", "%d", v)
		printStatus(w, "applied", "%v", applied)
		printStatus(w, "path", "%s", s.cfg.Storage.DataDir)
		return nil
	}),
}

func init() {
	dbClearCmd.Flags().Bool("confirm", false, "confirm the deletion")
	dbCmd.AddCommand(dbTablesCmd, dbDumpCmd, dbClearCmd, dbSeedCmd, dbVersionCmd)
	rootCmd.AddCommand(dbCmd)
}

// --- legacy ---

var legacyCmd = &cobra.Command{
	Use:   "legacy",
	Short: "Read or write the legacy flat storage file",
}

var legacyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List legacy keys and values",
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		keys, err := s.legacy.Keys()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(keys) == 0 {
			fmt.Fprintln(w, "(none)")
			return nil
		}
		for _, k := range keys {
			v, _, err := s.legacy.Get(k)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s = %s\n", k, v)
		}
		return nil
	}),
}

var legacySetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a raw legacy key (for exercising migration)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		leg, err := legacy.OpenFile(cfg.LegacyPath())
		if err != nil {
			return err
		}
		if err := leg.Set(args[0], args[1]); err != nil {
			return err
		}
		printSuccess(cmd, "Set legacy %s", args[0])
		return nil
	},
}

func init() {
	legacyCmd.AddCommand(legacyListCmd, legacySetCmd)
	rootCmd.AddCommand(legacyCmd)
}
