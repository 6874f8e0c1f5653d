package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/planwerk/planwerk/check"
	"github.com/planwerk/planwerk/confidence"
	"github.com/planwerk/planwerk/config"
	"github.com/planwerk/planwerk/coordination"
	"github.com/planwerk/planwerk/events"
	"github.com/planwerk/planwerk/httpapi"
	"github.com/planwerk/planwerk/metrics"
	"github.com/planwerk/planwerk/rules"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Rules.Watch {
		watcher, err := rules.NewWatcher(rules.WatcherConfig{
			Path:   cfg.Rules.Path,
			Logger: logger,
		}, registry)
		if err != nil {
			return fmt.Errorf("create rules watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start rules watcher: %w", err)
		}
		defer watcher.Close()
	}

	publisher := events.Publisher(events.NopPublisher{})
	if cfg.NATS.URL != "" {
		natsPub, closeConn, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer closeConn()
		publisher = natsPub
	}

	m := metrics.New()
	conf := confidence.Model{
		CorroborationBonus: cfg.Check.CorroborationBonus,
		InsufficientData:   cfg.Check.InsufficientDataConfidence,
	}
	coordinator := check.New(registry, coordination.NewRegistry(coordination.DefaultRules()...),
		check.WithLogger(logger),
		check.WithConfidenceModel(conf),
		check.WithEvaluatorTimeout(cfg.Check.EvaluatorTimeout),
		check.WithPublisher(publisher),
		check.WithMetrics(m),
	)

	handler := httpapi.NewHandler(coordinator, registry, logger)
	router := httpapi.NewRouter(handler, logger)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.HTTP.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.HTTP.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if metricsServer != nil {
		go func() {
			logger.Info("Metrics server listening", slog.String("addr", cfg.HTTP.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return server.Shutdown(shutdownCtx)
}

// buildRegistry loads the rule catalog, preferring a configured rules
// file over the built-in set.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*rules.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Rules.Path == "" {
		return rules.NewRegistry(rules.DefaultRules()...)
	}
	file, err := rules.LoadFile(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("load rules file: %w", err)
	}
	logger.Info("Loaded rules file",
		slog.String("path", cfg.Rules.Path),
		slog.Int("rules", len(file.Rules)))
	return rules.NewRegistry(file.Rules...)
}
