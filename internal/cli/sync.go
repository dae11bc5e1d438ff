package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"mangashelf/internal/catalog"
	"mangashelf/internal/config"
	"mangashelf/internal/logging"
	"mangashelf/internal/memory"
	"mangashelf/internal/progress"
	"mangashelf/internal/scanner"
	"mangashelf/internal/thumbs"
)

var syncWatch bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the catalog against the configured scan roots",
	Long: `Runs an incremental scan over every configured scan root: new archives
are added, changed ones updated and vanished ones removed, then missing
thumbnails are generated. With --watch the reconcile repeats on the
configured interval and a metrics endpoint is served.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "keep running, re-syncing on the configured interval")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	startup := currentSettings()
	if len(startup.ScanRoots) == 0 {
		return fmt.Errorf("no scan roots configured (set scan_roots in the config file)")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	// The roots closure snapshots on every call so a reload between scans
	// takes effect; a scan in flight keeps the set it started with.
	sc := scanner.New(store, func() []string { return currentSettings().ScanRoots })
	cache := thumbs.NewDisplayCache(startup.CacheCapacity)
	pipeline := thumbs.NewPipeline(store, cache)

	if !syncWatch {
		return syncOnce(ctx, store, sc, pipeline)
	}

	pipeline.Start()
	defer pipeline.Stop()

	monitor := memory.NewMonitor(memory.Config{
		LimitBytes:    int64(startup.CacheCeilingMB) << 20,
		HighWaterMark: 0.7,
		CheckInterval: 5 * time.Second,
	}, cache)
	monitor.Start()
	defer monitor.Stop()

	// SIGHUP re-reads the config file; interval changes take effect on the
	// next tick.
	token := notifier.Subscribe(func(s config.Settings) {
		logging.Info("Settings reloaded; sync interval now %s", s.SyncInterval)
	})
	defer notifier.Unsubscribe(token)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if err := loadSettings(); err != nil {
				logging.Error("Config reload failed: %v", err)
			}
		}
	}()

	if startup.MetricsPort > 0 {
		go serveMetrics(ctx, startup.MetricsPort)
	}

	logging.Info("Watching %d roots, syncing every %s", len(startup.ScanRoots), startup.SyncInterval)
	for {
		if err := syncOnce(ctx, store, sc, pipeline); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Error("Sync failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(currentSettings().SyncInterval):
		}
	}
}

func syncOnce(ctx context.Context, store *catalog.Store, sc *scanner.Scanner, pipeline *thumbs.Pipeline) error {
	reporter := progress.NewReporter(consoleProgress())

	diff, err := sc.IncrementalScan(ctx, reporter.Send)
	if err != nil {
		return err
	}
	reporter.Flush()
	printSummaryLine()
	color.Green("Sync complete: %d added, %d updated, %d removed", diff.Added, diff.Updated, diff.Removed)

	entries, err := store.GetAllLight(ctx)
	if err != nil {
		return err
	}
	thumbReporter := progress.NewReporter(consoleProgress())
	res, err := pipeline.Run(ctx, entries, thumbs.OnlyMissing, thumbReporter.Send)
	if err != nil {
		return err
	}
	thumbReporter.Flush()
	printSummaryLine()
	if res.Generated+res.Placeholders > 0 {
		color.Green("Thumbnails: %d generated, %d placeholders", res.Generated, res.Placeholders)
	}
	return nil
}

// serveMetrics exposes /metrics and /healthz while watch mode runs.
func serveMetrics(ctx context.Context, port int) {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("Metrics listening on :%d", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("Metrics server: %v", err)
	}
}
