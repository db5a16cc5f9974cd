// Package cli defines the cm-console subcommands: serve, render, doctor and
// config. Commands load the layered configuration, wire the internal
// packages together and supervise their lifecycles.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/diptoe/collective-memory-sub000/internal/api"
	"github.com/diptoe/collective-memory-sub000/internal/config"
	"github.com/diptoe/collective-memory-sub000/internal/docs"
	"github.com/diptoe/collective-memory-sub000/internal/session"
	"github.com/diptoe/collective-memory-sub000/internal/webui"
)

// sessionSweepInterval is how often expired in-memory sessions are removed.
// Redis sessions expire on their own via key TTLs.
const sessionSweepInterval = 10 * time.Minute

// ServeCommand returns the CLI command definition for the 'serve' subcommand.
// This command starts the console web server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the console web server",
		Description: `Starts the Collective Memory console: the HTML pages, the JSON API
behind them, and the WebSocket that streams activity updates. All data
comes from the configured REST backend; the console itself stores
nothing but browser sessions.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (searches ./config.yaml and ./configs/config.yaml when unset)",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Override the configured listen address (host:port)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: runServe,
	}
}

// runServe is the action handler for the serve command. It wires together
// all components: backend client, session store, docs library, and the web
// server.
func runServe(cliCtx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.Bool("verbose") {
		cfg.Logger.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logger.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	// One registry backs the backend-client metrics, the console's own
	// gauges, and the /metrics endpoint.
	registry := prometheus.NewRegistry()

	apiClient, err := api.NewClient(api.Config{
		BaseURL:          cfg.Backend.URL,
		Timeout:          cfg.Backend.Timeout,
		RateLimit:        cfg.Backend.RateLimit,
		RateBurst:        cfg.Backend.RateBurst,
		BreakerThreshold: cfg.Backend.BreakerThreshold,
		BreakerCooldown:  cfg.Backend.BreakerCooldown,
	}, logger, api.NewMetrics(registry))
	if err != nil {
		return err
	}

	store, closeStore, err := newSessionStore(cliCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions := session.NewManager(store, apiClient.Auth, logger, session.Options{
		TTL: cfg.Session.TTL,
	})

	library, err := docs.New(logger, cfg.Docs.Dir)
	if err != nil {
		return err
	}
	if err := library.Start(); err != nil {
		return err
	}
	defer library.Stop()

	srv, err := webui.New(webui.Options{
		Client:        apiClient,
		Sessions:      sessions,
		Docs:          library,
		Logger:        logger,
		Metrics:       webui.NewMetrics(registry),
		Registry:      registry,
		CookieName:    cfg.Session.CookieName,
		SecureCookies: cfg.Server.SecureCookies,
		CSRFKey:       []byte(cfg.Server.CSRFKey),
		PollInterval:  cfg.Timeline.PollInterval,
		RecentLimit:   cfg.Timeline.RecentLimit,
		Location:      location,
	})
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr()
	if listen := cmd.String("listen"); listen != "" {
		addr = listen
	}

	ctx, stop := signal.NotifyContext(cliCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("console starting",
		zap.String("addr", addr),
		zap.String("backend", cfg.Backend.URL),
		zap.String("session_store", cfg.Session.Store))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	})
	if mem, ok := store.(*session.MemoryStore); ok {
		g.Go(func() error {
			sweepSessions(gctx, mem, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("console server error: %w", err)
	}
	logger.Info("console stopped")
	return nil
}

// newSessionStore builds the configured session store. The returned close
// function releases the store's connections, if any.
func newSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Store, func(), error) {
	if cfg.Session.Store != "redis" {
		return session.NewMemoryStore(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis at %s: %w", cfg.Redis.Addr, err)
	}

	logger.Info("using redis session store", zap.String("addr", cfg.Redis.Addr))
	return session.NewRedisStore(rdb, ""), func() { rdb.Close() }, nil
}

// sweepSessions drops expired in-memory sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, store *session.MemoryStore, logger *zap.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug("swept expired sessions", zap.Int("count", n))
			}
		}
	}
}
