package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor    bool
	debug      bool
	dataDir    string
	legacyFile string
)

var rootCmd = &cobra.Command{
	Use:   "ambridge",
	Short: "Inspect and edit the ambridge dashboard's local state",
	Long: `ambridge reads and writes the dashboard's local database: theme,
favorite and installed apps, launcher selection and the first-time setup
record. Legacy flat storage is migrated on first use.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data-dir", "", "database directory (overrides storage.data_dir)")
	pf.StringVar(&legacyFile, "legacy-file", "", "legacy flat storage file (overrides storage.legacy_file)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd, "%v", err)
		os.Exit(1)
	}
}
