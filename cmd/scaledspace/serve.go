package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	lcadapter "github.com/aretw0/scaledspace/pkg/adapters/lifecycle"
	"github.com/aretw0/scaledspace/pkg/api"
	"github.com/aretw0/scaledspace/pkg/metrics"
	"github.com/aretw0/scaledspace/pkg/notify"
	"github.com/aretw0/scaledspace/pkg/offline"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the API and the offline-cached application shell",
	Long: `Serve mounts the JSON API under /api and metrics under /metrics, and proxies
every other request to the application origin through the offline cache.
It also runs the reminder scheduler and reloads the manifest when it changes.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		applyAssetFlags(cmd)
		if cmd.Flags().Changed("addr") {
			cfg.Addr = serveAddr
		}
		logger := slog.Default()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := openStore(ctx)
		defer s.Close()

		m, cleanup := openManager(ctx)
		defer cleanup()

		if manifest, err := offline.LoadManifest(cfg.Manifest); err == nil {
			resumed, err := m.Resume(ctx, manifest)
			if err != nil {
				logger.Warn("failed to resume cache", "error", err)
			}
			if !resumed {
				if err := m.Update(ctx, manifest); err != nil {
					logger.Warn("cache not installed, serving from network", "error", err)
				}
			}
		} else {
			logger.Warn("no manifest, offline cache disabled", "path", cfg.Manifest, "error", err)
		}

		events := lcadapter.NewSource(m.Events())
		if err := events.Start(ctx); err != nil {
			fatal("Failed to start event source", err)
		}
		go logEvents(events.Events(), logger)

		sup := supervisor.New("scaledspace", supervisor.StrategyOneForOne,
			supervisor.Spec{
				Name: "reminder-scheduler",
				Type: string(worker.TypeGoroutine),
				Factory: func() (worker.Worker, error) {
					scheduler := notify.NewScheduler(s, notify.LogNotifier{Logger: logger},
						notify.WithInterval(cfg.NotifyInterval),
						notify.WithWindow(cfg.NotifyWindow),
						notify.WithLogger(logger),
					)
					delivered := lcadapter.NewSource(scheduler.Events())
					if err := delivered.Start(ctx); err != nil {
						return nil, err
					}
					go logEvents(delivered.Events(), logger)
					return scheduler, nil
				},
				Backoff:       restartBackoff(),
				RestartPolicy: supervisor.RestartOnFailure,
			},
			supervisor.Spec{
				Name: "manifest-watcher",
				Type: string(worker.TypeGoroutine),
				Factory: func() (worker.Worker, error) {
					return offline.NewManifestWatcher(m, cfg.Manifest, logger), nil
				},
				Backoff:       restartBackoff(),
				RestartPolicy: supervisor.RestartOnFailure,
			},
		)
		if err := sup.Start(ctx); err != nil {
			fatal("Failed to start workers", err)
		}

		handler, err := newServeHandler(m, api.New(s, api.WithLogger(logger)))
		if err != nil {
			fatal("Failed to build handler", err)
		}
		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", cfg.Addr, "origin", m.Origin().String())
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal("Server failed", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
		if err := sup.Stop(shutdownCtx); err != nil {
			logger.Warn("worker shutdown", "error", err)
		}
		fmt.Println("Stopped.")
	},
}

// newServeHandler routes /api and /metrics locally and proxies the rest to
// the manager's origin through the offline router.
func newServeHandler(m *offline.Manager, h *api.Handler) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	target, err := url.Parse(m.Origin().String())
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = offline.NewRouter(m, slog.Default())

	router := mux.NewRouter()
	h.Register(router)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	router.PathPrefix("/").Handler(proxy)
	return router, nil
}

func restartBackoff() supervisor.Backoff {
	return supervisor.Backoff{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		ResetDuration:   time.Minute,
		MaxRestarts:     5,
		MaxDuration:     10 * time.Minute,
	}
}

func logEvents(events <-chan lifecycle.Event, logger *slog.Logger) {
	for e := range events {
		logger.Debug("event", "event", e.String())
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "Listen address")
	serveCmd.Flags().StringVar(&cacheManifest, "manifest", "scaledspace.yaml", "Asset manifest")
	serveCmd.Flags().StringVar(&cacheAssets, "assets", ".", "Deployed asset directory")
	serveCmd.Flags().StringVar(&cacheUpstream, "upstream", "", "Application origin (default: serve --assets locally)")
}
