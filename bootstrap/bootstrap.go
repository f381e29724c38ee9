// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/adapters/auth"
	"github.com/quietpage/reflectd/adapters/clock"
	"github.com/quietpage/reflectd/adapters/directory"
	"github.com/quietpage/reflectd/adapters/idgen"
	"github.com/quietpage/reflectd/adapters/memory"
	"github.com/quietpage/reflectd/adapters/metrics"
	"github.com/quietpage/reflectd/adapters/payment"
	"github.com/quietpage/reflectd/adapters/sqlite"
	"github.com/quietpage/reflectd/adapters/titles"
	"github.com/quietpage/reflectd/app"
	"github.com/quietpage/reflectd/config"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
	"github.com/quietpage/reflectd/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Holder     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Prices     *billing.Prices

	// Services, exposed for the CLI subcommands.
	Entitlements *app.EntitlementService
	Journals     *app.JournalService
	Billing      *app.BillingService
	Webhooks     *app.WebhookService
	Sync         *app.SyncService
	Backfill     *app.BackfillService

	provider ports.BillingProvider
}

// New creates and initializes the application from a loaded config.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing reflectd")

	a := &App{
		Logger: logger,
		Config: cfg,
	}

	snapshots, journals, profiles, err := a.initStores(cfg)
	if err != nil {
		return nil, fmt.Errorf("init stores: %w", err)
	}

	a.Metrics = metrics.New()

	provider, err := payment.NewProvider(cfg.Billing)
	if err != nil {
		return nil, fmt.Errorf("init billing provider: %w", err)
	}
	a.provider = provider
	logger.Info().Str("provider", provider.Name()).Msg("billing provider configured")

	generator, err := titles.NewGenerator(cfg.Titles)
	if err != nil {
		return nil, fmt.Errorf("init title generator: %w", err)
	}

	dir, err := directory.NewDirectory(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("init user directory: %w", err)
	}

	a.Prices = billing.NewPrices(priceTable(cfg.Plans))
	clk := clock.Real{}
	ids := idgen.UUID{}

	a.Entitlements = app.NewEntitlementService(snapshots, journals, provider, a.Prices, clk, a.Metrics, logger)
	a.Journals = app.NewJournalService(journals, a.Entitlements, generator, ids, clk, a.Metrics, logger)
	a.Billing = app.NewBillingService(a.Entitlements, provider, a.Prices, clk, cfg.Billing.PortalReturnURL, logger)
	a.Webhooks = app.NewWebhookService(snapshots, profiles, dir, provider, a.Prices, clk, a.Metrics, logger)
	a.Sync = app.NewSyncService(snapshots, profiles, dir, provider, a.Prices, clk, cfg.Sync.Delay, a.Metrics, logger)
	a.Backfill = app.NewBackfillService(journals, generator, clk, a.Metrics, logger)

	a.initHTTPServer(cfg)
	return a, nil
}

// NewWithHotReload creates the application with config file watching. Only
// fields listed by config.ReloadableFields take effect without restart.
func NewWithHotReload(path string) (*App, error) {
	bootLogger := setupLogger(config.LoggingConfig{Level: "info", Format: "console"})

	holder, err := config.NewHolder(path, bootLogger)
	if err != nil {
		return nil, err
	}

	a, err := New(holder.Get())
	if err != nil {
		holder.Stop()
		return nil, err
	}
	a.Holder = holder

	holder.OnChange(func(cfg *config.Config) {
		a.Prices.Replace(priceTable(cfg.Plans))
		a.Metrics.ConfigReloads.Inc()
	})
	holder.OnReloadError(func(error) {
		a.Metrics.ConfigReloadErrors.Inc()
	})
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watching disabled")
	}
	holder.WatchSignals()

	return a, nil
}

func (a *App) initStores(cfg *config.Config) (ports.SnapshotStore, ports.JournalStore, ports.ProfileStore, error) {
	switch cfg.Database.Driver {
	case "memory":
		a.Logger.Warn().Msg("using in-memory stores, data will not survive restarts")
		return memory.NewSnapshotStore(), memory.NewJournalStore(), memory.NewProfileStore(), nil

	case "sqlite":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database ready")
		return sqlite.NewSnapshotStore(db), sqlite.NewJournalStore(db), sqlite.NewProfileStore(db), nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
}

func (a *App) initHTTPServer(cfg *config.Config) {
	// Trust mode decodes tokens without checking the signature; the
	// resolver treats an empty secret as exactly that.
	secret := cfg.Auth.JWTSecret
	if cfg.Auth.Mode == "trust" {
		secret = ""
	}
	resolver := auth.NewResolver(secret)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	handler := web.NewHandler(web.Deps{
		Resolver:     resolver,
		Entitlements: a.Entitlements,
		Journals:     a.Journals,
		Billing:      a.Billing,
		Webhooks:     a.Webhooks,
		Sync:         a.Sync,
		Backfill:     a.Backfill,
		Provider:     a.provider,
		Metrics:      a.Metrics,
		MetricsPath:  metricsPath,
		AdminToken:   cfg.Admin.Token,
		Logger:       a.Logger,
	})

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("http server listening")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http server shutdown failed")
	}

	a.Close()
	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.Holder != nil {
		a.Holder.Stop()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close failed")
		}
	}
}

func priceTable(plans []config.PlanConfig) billing.PriceTable {
	table := make(billing.PriceTable, len(plans))
	for _, p := range plans {
		table[p.PriceID] = p.Name
	}
	return table
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
	} else {
		logger = zerolog.New(os.Stderr).Level(level)
	}
	return logger.With().Timestamp().Logger()
}
