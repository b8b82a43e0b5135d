package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/keyword-bid-charts/internal/config"
	"github.com/dvloznov/keyword-bid-charts/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	overrides  flagOverrides

	cfg *config.Config
	log zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bidcharts",
	Short: "Reconcile ads reports and chart bid changes per keyword",
	Long: `bidcharts joins a bid-change history with daily targeting and
search-term impression-share reports, then renders one chart per keyword
for every ad group whose bids changed inside the reported date range.

Inputs may be local paths, globs or gs:// URIs. Charts are written under
<output>/<YYYY.MM.DD_YYYY.MM.DD>/<ad group>/<keyword>.<ext>.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		overrides.apply(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		log = logger.NewWithOptions(logger.Options{
			Level: cfg.Log.Level,
			JSON:  cfg.Log.JSON,
			Out:   os.Stderr,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file (optional)")
	overrides.register(rootCmd)

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runContext returns a context carrying the logger and a fresh run ID. It
// is cancelled by the configured timeout or by SIGINT/SIGTERM.
func runContext(cmd *cobra.Command) (context.Context, string, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetTimeout())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	runID := uuid.NewString()
	runLog := logger.WithFields(log, map[string]interface{}{
		"run_id":  runID,
		"command": cmd.Name(),
	})
	ctx = logger.WithContext(ctx, runLog)

	return ctx, runID, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
