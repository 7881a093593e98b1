package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/pf-mines/internal/api"
	"github.com/MJE43/pf-mines/internal/config"
	"github.com/MJE43/pf-mines/internal/events"
	"github.com/MJE43/pf-mines/internal/ledger"
	"github.com/MJE43/pf-mines/internal/logging"
	"github.com/MJE43/pf-mines/internal/play"
	"github.com/MJE43/pf-mines/internal/registry"
	"github.com/MJE43/pf-mines/internal/scan"
	"github.com/MJE43/pf-mines/internal/store"
	"github.com/MJE43/pf-mines/internal/ws"
)

// ServeCmd flags override the config file. Empty or zero means "use the file".
type ServeCmd struct {
	Config        string `short:"c" default:"pf-mines.hcl" env:"PF_MINES_CONFIG" help:"Path to HCL configuration file"`
	Addr          string `short:"a" env:"PF_MINES_ADDR" help:"Address to bind to (overrides config)"`
	Port          int    `short:"p" env:"PF_MINES_PORT" help:"Port to listen on (overrides config)"`
	LogLevel      string `short:"l" env:"PF_MINES_LOG_LEVEL" help:"Log level (overrides config)"`
	LogFormat     string `env:"PF_MINES_LOG_FORMAT" help:"Log format (overrides config)"`
	Archive       string `env:"PF_MINES_ARCHIVE" help:"SQLite archive path (overrides config)"`
	Ledger        string `env:"PF_MINES_LEDGER" help:"Ledger backend (overrides config)"`
	BoltPath      string `env:"PF_MINES_BOLT_PATH" help:"bbolt ledger file (overrides config)"`
	RedisAddr     string `env:"PF_MINES_REDIS_ADDR" help:"Redis address for the ledger (overrides config)"`
	RedisPassword string `env:"PF_MINES_REDIS_PASSWORD" help:"Redis password for the ledger (overrides config)"`
}

func (c *ServeCmd) apply(cfg *config.Config) {
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Server.LogFormat = c.LogFormat
	}
	if c.Archive != "" {
		cfg.Archive.Path = c.Archive
	}
	if c.Ledger != "" {
		cfg.Ledger.Backend = c.Ledger
	}
	if c.BoltPath != "" {
		cfg.Ledger.BoltPath = c.BoltPath
	}
	if c.RedisAddr != "" {
		cfg.Ledger.RedisAddr = c.RedisAddr
	}
	if c.RedisPassword != "" {
		cfg.Ledger.RedisPassword = c.RedisPassword
	}
}

func (c *ServeCmd) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *ServeCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	clock := quartz.NewReal()

	var archive store.DB
	if cfg.Archive.Path != "" {
		db, err := store.NewSQLiteDB(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrating archive: %w", err)
		}
		archive = db
	}

	led, err := ledger.Open(ctx, cfg.LedgerConfig(), clock)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer led.Close()

	hub := ws.NewHub(logger)

	bus := events.NewBus(events.DefaultBufferSize, logger)
	defer bus.Close()
	bus.Subscribe(&events.LedgerObserver{Ledger: led, Logger: logger.WithPrefix("ledger"), Timeout: cfg.LedgerTimeout()})
	if archive != nil {
		bus.Subscribe(&events.ArchiveObserver{Store: archive, Logger: logger.WithPrefix("archive"), EngineVersion: api.EngineVersion})
	}
	bus.Subscribe(hub)

	reg := registry.New(clock)
	svc := play.New(reg, play.Options{
		DefaultGridSize:  cfg.Game.DefaultGridSize,
		DefaultMineCount: cfg.Game.DefaultMineCount,
		Clock:            clock,
		Publisher:        bus,
		Logger:           logger,
	})

	server := api.NewServer(api.Options{
		Play:    svc,
		Scanner: scan.NewScanner(api.EngineVersion),
		Archive: archive,
		Ledger:  led,
		Events:  hub,
		Logger:  logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting pf-mines",
		"addr", httpServer.Addr,
		"ledger", led.Info().Backend,
		"archive", cfg.Archive.Path,
		"idle_timeout", cfg.IdleTimeout())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		reg.Run(gctx, cfg.SweepInterval(), cfg.IdleTimeout(), func(n int) {
			if n > 0 {
				logger.Info("evicted idle games", "count", n, "active", reg.Len())
			}
		})
		return nil
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if dropped := bus.Dropped(); dropped > 0 {
		logger.Warn("events dropped", "count", dropped)
	}
	return err
}
