// Package cli implements the mangashelf command tree. It is one front end
// over the core packages; everything it does goes through the same
// operations any other presentation layer would drive.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mangashelf/internal/catalog"
	"mangashelf/internal/config"
	"mangashelf/internal/logging"
	"mangashelf/internal/progress"
)

var (
	cfgFile string
	dbPath  string

	// settings is replaced wholesale by loadSettings and read through
	// currentSettings; the SIGHUP reload goroutine in watch mode writes
	// it concurrently with the sync loop.
	settingsMu sync.RWMutex
	settings   config.Settings

	notifier = config.NewNotifier()
)

// currentSettings returns a snapshot of the active settings. Slice fields
// are never mutated in place after load, so sharing their backing arrays
// across snapshots is safe.
func currentSettings() config.Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings
}

var rootCmd = &cobra.Command{
	Use:   "mangashelf",
	Short: "Catalog, thumbnail and relocate manga volume archives",
	Long: `mangashelf maintains a persistent catalog of manga volume archives
mirrored from a set of scan roots, generates thumbnails for them, and
relocates files while keeping the catalog consistent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings()
	},
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default mangashelf.yaml in cwd or $HOME/.mangashelf)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "catalog database file (overrides config)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(thumbsCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(optimizeCmd)
}

func loadSettings() error {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("mangashelf")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.mangashelf")
		}
	}
	v.SetEnvPrefix("MANGASHELF")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logging.Warn("Config file unreadable: %v", err)
		}
	} else {
		logging.Debug("Config file: %s", v.ConfigFileUsed())
	}

	loaded, errs := config.Load(v)
	for _, err := range errs {
		logging.Warn("%v (default substituted)", err)
	}

	if dbPath != "" {
		loaded.DatabasePath = dbPath
	}

	settingsMu.Lock()
	settings = loaded
	settingsMu.Unlock()

	// Settings changed relative to whatever was loaded before: tell the
	// components that registered an interest.
	notifier.Publish(loaded)

	return nil
}

// openStore opens the configured catalog.
func openStore(ctx context.Context) (*catalog.Store, error) {
	return catalog.Open(ctx, currentSettings().DatabasePath)
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// consoleProgress prints coalesced progress updates on one line.
func consoleProgress() progress.Func {
	return func(r progress.Report) {
		if r.Total > 0 {
			fmt.Printf("\r%-60s [%d/%d] %s", truncate(r.Name, 60), r.Current, r.Total, r.Status)
		} else {
			fmt.Printf("\r%s", r.Status)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printSummaryLine() {
	fmt.Println()
}
