// Package cli implements the docchat CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/store"
)

var (
	cfgPath     string
	dbPath      string
	formatFlag  string
	verboseFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Ask questions over your documents",
	Long:  "Retrieval-augmented Q&A over a private document corpus. SQLite-backed, single binary.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config path (default: ./docchat.yaml or ~/.config/docchat/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: from config or ~/.docchat/docchat.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose logging to stderr")
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	cfg, path, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}
	logger.Debug("config: %s", path)
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	path := dbPath
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		path = config.DefaultDBPath()
	}
	return store.NewSQLiteStore(path)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
