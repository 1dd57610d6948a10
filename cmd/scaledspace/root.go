package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"

	"github.com/aretw0/scaledspace/internal/platform"
	"github.com/aretw0/scaledspace/pkg/store"
)

var (
	verbose  bool
	dataDir  string
	readOnly bool
	noSafety bool

	cfg platform.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scaledspace",
	Short: "Offline-first notes, voice notes and reminders",
	Long: `scaledspace keeps notes, voice notes and reminders in an embedded database
and serves the application shell from a versioned offline cache.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = platform.LoadConfig()
		if err != nil {
			fatal("Failed to load configuration", err)
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Verbose = verbose
		}
		if cmd.Flags().Changed("read-only") {
			cfg.ReadOnly = readOnly
		}
		if noSafety {
			cfg.DevSafety = false
		}

		level := slog.LevelInfo
		if cfg.Verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (default: SCALEDSPACE_DATA_DIR under the project root)")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "read-only", false, "Open the database read-only")
	rootCmd.PersistentFlags().BoolVar(&noSafety, "unsafe", false, "Disable the dev sandbox under go run")
}

// resolveDataDir picks the data directory: the flag, an absolute configured
// path, or the configured path under the nearest project root.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if filepath.IsAbs(cfg.DataDir) {
		return cfg.DataDir
	}
	wd, err := os.Getwd()
	if err != nil {
		fatal("Failed to get CWD", err)
	}
	if root, err := platform.FindRoot(wd); err == nil {
		return filepath.Join(root, cfg.DataDir)
	}
	return filepath.Join(wd, cfg.DataDir)
}

func storageOptions() []platform.Option {
	return append(cfg.Options(), platform.WithLogger(slog.Default()))
}

func openStore(ctx context.Context) *store.Store {
	s, err := platform.New(ctx, resolveDataDir(), storageOptions()...)
	if err != nil {
		fatal("Failed to open storage", err)
	}
	return s
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Error encoding JSON", err)
	}
}

func printState(intro introspection.Introspectable) {
	label := "component"
	if comp, ok := intro.(introspection.Component); ok {
		label = comp.ComponentType()
	}
	fmt.Printf("== %s ==\n", label)
	printJSON(intro.State())
}
