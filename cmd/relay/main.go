package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/internal/invoker"
	"github.com/rendis/relay/internal/logging"
	"github.com/rendis/relay/internal/scheduler"
	"github.com/rendis/relay/internal/users"
	"github.com/rendis/relay/pkg/schema"
)

func main() {
	configPath := flag.String("config", "relay.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectors := connector.NewRegistry()
	defer connectors.Close()
	if err := openConnectors(ctx, connectors, cfg.Connectors); err != nil {
		return err
	}

	directory := users.NewStaticDirectory()
	for _, u := range cfg.Users {
		directory.Add(schema.User{
			ID:         u.ID,
			ChatID:     u.ChatID,
			Username:   u.Username,
			Name:       u.Name,
			Attributes: u.Attributes,
		})
	}

	routing := invoker.RouteNewest
	if cfg.Engine.RejectAmbiguous {
		routing = invoker.RouteReject
	}
	engine, err := invoker.New(invoker.Config{
		InactivityTimeout: cfg.Engine.InactivityTimeout,
		MaxRetries:        cfg.Engine.MaxRetries,
		PageSize:          cfg.Engine.PageSize,
		ReplyRouting:      routing,
	}, invoker.Deps{
		Connectors: connectors,
		Transport:  invoker.NewMemoryTransport(),
		Users:      directory,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	engine.Start(ctx)
	defer engine.Stop()

	sched := scheduler.NewScheduler(engine, directory, cfg.SendRate, logger)
	if cfg.JobsFile != "" {
		jobs, err := scheduler.LoadJobs(cfg.JobsFile)
		if err != nil {
			return err
		}
		if err := sched.AddJobs(jobs); err != nil {
			return err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	logger.Info("relay engine running",
		slog.Int("connectors", len(cfg.Connectors)),
		slog.Int("users", len(cfg.Users)))

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func openConnectors(ctx context.Context, registry *connector.Registry, configs []ConnectorConfig) error {
	for _, c := range configs {
		var (
			conn connector.Connector
			err  error
		)
		switch c.Driver {
		case "sqlite":
			conn, err = connector.NewSQLiteConnector(c.Name, c.DSN)
		case "postgres":
			conn, err = connector.NewPostgresConnector(ctx, c.Name, c.DSN)
		default:
			return schema.NewErrorf(schema.ErrCodeRegistration,
				"unknown connector driver %q", c.Driver)
		}
		if err != nil {
			return err
		}
		if err := registry.Register(conn); err != nil {
			return err
		}
	}
	return nil
}
