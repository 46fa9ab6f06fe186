package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ghascaler/internal/app"
)

// serveConfigPath overrides the default configuration file location.
var serveConfigPath string

// serveDebug forces debug-level logging regardless of the configured level.
var serveDebug bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the autoscaler",
	Long: `Starts the reconciliation loop and the HTTP server.

The loop reconciles on a fixed interval and on demand: webhook
deliveries and POST /api/v1/reconcile trigger an immediate cycle. The
HTTP server exposes health, Prometheus metrics, fleet status, and the
operator API.

Configuration is read from --config, or from
$XDG_CONFIG_HOME/ghascaler/config.yaml when the flag is not given.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(app.Options{
		ConfigPath: serveConfigPath,
		Debug:      serveDebug,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to the configuration file")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}
