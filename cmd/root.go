package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taru-edu/taru/internal/config"
	"github.com/taru-edu/taru/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "taru",
	Short: "Diagnostic assessments for learners",
	Long:  "Taru serves adaptive assessments over HTTP and lets learners take them in the terminal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		return config.LoadDotEnv(envFile)
	},
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTake(cmd, takeFlags{})
	},
}

// ExecuteContext runs the command line with ctx, which commands use to
// stop serving or quit the TUI.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides TARU_CONFIG)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides TARU_DB)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Load environment variables from this file if it exists")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Path = p
	}
	return cfg, nil
}

// resolveDBPath returns the SQLite path from config, else the default XDG
// path, creating its directory.
func resolveDBPath(cfg *config.Config) (string, error) {
	if cfg.Store.Path != "" {
		return cfg.Store.Path, store.EnsureDir(cfg.Store.Path)
	}
	return store.DefaultDBPath()
}

var stderr io.Writer = os.Stderr

// newLogger writes to stderr, or nowhere when w is nil.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	return cfg.Log.Logger(w)
}
