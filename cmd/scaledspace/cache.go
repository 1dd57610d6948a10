package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/scaledspace/internal/platform"
	"github.com/aretw0/scaledspace/pkg/offline"
)

var (
	cacheManifest string
	cacheAssets   string
	cacheUpstream string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the offline cache of the application shell",
}

// applyAssetFlags lets flags override the configured asset settings.
func applyAssetFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("manifest") {
		cfg.Manifest = cacheManifest
	}
	if cmd.Flags().Changed("assets") {
		cfg.Assets = cacheAssets
	}
	if cmd.Flags().Changed("upstream") {
		cfg.Upstream = cacheUpstream
	}
}

var cacheInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Fetch the manifest's assets into a new cache generation",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		applyAssetFlags(cmd)
		ctx := context.Background()
		manifest := loadManifest()
		m, cleanup := openManager(ctx)
		defer cleanup()

		if err := m.Install(ctx, manifest); err != nil {
			fatal("Cache install failed", err)
		}
		fmt.Printf("Installed %s. Run 'scaledspace cache activate' to switch to it.\n", manifest.Generation())
	},
}

var cacheActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Make the installed generation active and evict older ones",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		applyAssetFlags(cmd)
		ctx := context.Background()
		manifest := loadManifest()
		m, cleanup := openManager(ctx)
		defer cleanup()

		found, err := m.Stage(ctx, manifest)
		if err != nil {
			fatal("Failed to read cache", err)
		}
		if !found {
			fatal("Cache activate failed", fmt.Errorf("%w: %s", offline.ErrNoInstalledGeneration, manifest.Generation()))
		}
		if err := m.Activate(ctx); err != nil {
			fatal("Cache activate failed", err)
		}
		fmt.Printf("Active generation: %s\n", manifest.Generation())
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored cache generations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		applyAssetFlags(cmd)
		ctx := context.Background()
		m, cleanup := openManager(ctx)
		defer cleanup()

		if manifest, err := offline.LoadManifest(cfg.Manifest); err == nil {
			if _, err := m.Resume(ctx, manifest); err != nil {
				fatal("Failed to read cache", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("manifest unreadable", "path", cfg.Manifest, "error", err)
		}

		generations, err := m.Storage().Generations(ctx)
		if err != nil {
			fatal("Failed to list generations", err)
		}
		printState(m)
		fmt.Println("== stored ==")
		for _, g := range generations {
			keys, err := m.Storage().Keys(ctx, g)
			if err != nil {
				fatal("Failed to list generation", err)
			}
			fmt.Printf("%s (%d assets)\n", g, len(keys))
		}
	},
}

func loadManifest() *offline.Manifest {
	manifest, err := offline.LoadManifest(cfg.Manifest)
	if err != nil {
		fatal("Failed to load manifest", err)
	}
	return manifest
}

// openManager opens the cache storage and a manager fetching from the
// configured origin. cleanup closes both.
func openManager(ctx context.Context) (*offline.Manager, func()) {
	storage, err := platform.OpenCache(resolveDataDir(), storageOptions()...)
	if err != nil {
		fatal("Failed to open cache", err)
	}
	origin, stopOrigin, err := assetOrigin(ctx)
	if err != nil {
		_ = storage.Close()
		fatal("Failed to start asset origin", err)
	}

	m, err := offline.NewManager(storage, origin,
		offline.WithAssets(os.DirFS(cfg.Assets)),
		offline.WithLogger(slog.Default()),
	)
	if err != nil {
		stopOrigin()
		_ = storage.Close()
		fatal("Failed to create cache manager", err)
	}
	return m, func() {
		stopOrigin()
		_ = storage.Close()
	}
}

// assetOrigin returns the upstream application URL. Without an upstream it
// serves the asset directory on a loopback port.
func assetOrigin(ctx context.Context) (string, func(), error) {
	if cfg.Upstream != "" {
		return cfg.Upstream, func() {}, nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{
		Handler:           http.FileServer(http.Dir(cfg.Assets)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("asset origin stopped", "error", err)
		}
	}()
	slog.Debug("serving assets", "dir", cfg.Assets, "addr", ln.Addr().String())

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInstallCmd, cacheActivateCmd, cacheStatusCmd)

	cacheCmd.PersistentFlags().StringVar(&cacheManifest, "manifest", platform.ManifestFile, "Asset manifest")
	cacheCmd.PersistentFlags().StringVar(&cacheAssets, "assets", ".", "Deployed asset directory")
	cacheCmd.PersistentFlags().StringVar(&cacheUpstream, "upstream", "", "Application origin (default: serve --assets locally)")
}
