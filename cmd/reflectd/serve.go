package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quietpage/reflectd/bootstrap"
	"github.com/quietpage/reflectd/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the reflectd API server.

The server will:
  - Load configuration from reflectd.yaml (or --config)
  - Or load configuration from REFLECTD_* environment variables
  - Connect to the database and run migrations
  - Serve entitlement, journal, and billing endpoints
  - Ingest provider webhooks into the snapshot cache

Environment variables (for Docker deployments):
  REFLECTD_DATABASE_DSN      - Database path (default: reflectd.db)
  REFLECTD_SERVER_PORT       - Server port (default: 8080)
  REFLECTD_AUTH_JWT_SECRET   - Shared secret for token verification
  REFLECTD_BILLING_MODE      - Billing mode: none or stripe
  REFLECTD_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  reflectd serve
  reflectd serve --config /etc/reflectd/config.yaml
  reflectd serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}

		app, err = bootstrap.New(cfg)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
