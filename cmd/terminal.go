package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"example.com/tavolo/possync/config"
	"example.com/tavolo/possync/internal/api"
	"example.com/tavolo/possync/internal/cache"
	"example.com/tavolo/possync/internal/catalog"
	"example.com/tavolo/possync/internal/lifecycle"
	"example.com/tavolo/possync/internal/messaging"
	"example.com/tavolo/possync/internal/metrics"
	"example.com/tavolo/possync/internal/models"
	"example.com/tavolo/possync/internal/notify"
	"example.com/tavolo/possync/internal/remote"
	"example.com/tavolo/possync/internal/search"
	possync "example.com/tavolo/possync/internal/sync"
	"example.com/tavolo/possync/internal/tracing"
)

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Start a terminal",
	Long: `Start a terminal process: the HTTP API for the terminal UI plus the
push and poll sync triggers that keep local snapshots consistent`,
	RunE: runTerminal,
}

func init() {
	rootCmd.AddCommand(terminalCmd)
}

func runTerminal(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if cfg.Terminal.TenantID == "" {
		return errors.New("terminal.tenant_id must be configured")
	}
	dept := models.Department(cfg.Terminal.Department)
	if !dept.Valid() {
		return errors.Errorf("unknown terminal department %q", cfg.Terminal.Department)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, readOnlyDB, err := initDatabases(cfg)
	if err != nil {
		return err
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, keeping snapshots in memory only")
		redisCache, _ = cache.NewRedisCache(config.RedisConfig{Enabled: false})
	}
	defer redisCache.Close()

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	var history *search.ElasticClient
	if cfg.Elastic.Enabled {
		history, err = search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without order history")
			history = nil
		}
	}

	var pushBus messaging.ServiceBusClient
	if cfg.Azure.QueueConnStr != "" {
		pushBus, err = messaging.NewServiceBusClient(cfg.Azure)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Service Bus client, falling back to polling only")
			pushBus = nil
		} else {
			defer pushBus.Close()
		}
	} else {
		log.Warn().Msg("No Service Bus connection string, falling back to polling only")
	}

	metricsCollector := metrics.NewMetrics()
	bus := notify.NewBus()
	defer bus.Close()

	store := cache.NewStore(redisCache, cfg.Terminal.TenantID)
	remoteClient := remote.NewClient(db, readOnlyDB)

	managerOpts := []lifecycle.Option{lifecycle.WithMetrics(metricsCollector)}
	if history != nil {
		managerOpts = append(managerOpts, lifecycle.WithHistory(history))
	}
	if pushBus != nil {
		managerOpts = append(managerOpts, lifecycle.WithAnnouncer(pushBus))
	}
	manager := lifecycle.NewManager(store, remoteClient, bus, cfg.Terminal.TenantID, managerOpts...)
	admin := catalog.NewManager(store, remoteClient, bus, pushBus, cfg.Terminal.TenantID)

	reconciler := possync.NewReconciler(
		store, remoteClient, bus, cfg.Terminal.TenantID, dept, cfg.Sync.FreshnessWindow,
		possync.WithMetrics(metricsCollector),
		possync.WithTracer(tracer),
	)
	session, err := possync.NewSession(reconciler, pushBus, cfg.Terminal.TenantID, cfg.Sync.PollInterval)
	if err != nil {
		return err
	}
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Error().Err(err).Msg("Session shutdown error")
		}
	}()

	server := api.NewServer(cfg, manager, admin, store, metricsCollector, tracer, bus, history)
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down terminal")
	return nil
}

func initDatabases(cfg config.Config) (*gorm.DB, *gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}

	readOnlyDB, err := gorm.Open(postgres.Open(cfg.DB.ReadOnlyDSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	for _, g := range []*gorm.DB{db, readOnlyDB} {
		sqlDB, err := g.DB()
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to access underlying connection pool")
		}
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	// Migrations run against the write database only.
	if err := models.SetupModels(db); err != nil {
		return nil, nil, errors.Wrap(err, "failed to run migrations")
	}

	return db, readOnlyDB, nil
}
