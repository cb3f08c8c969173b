package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/herdwise/pkg/config"
	"github.com/ekaya-inc/herdwise/pkg/handlers"
	"github.com/ekaya-inc/herdwise/pkg/mcp"
	"github.com/ekaya-inc/herdwise/pkg/middleware"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and the MCP endpoint",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Strings("backends", cfg.Store.BackendNames()),
		zap.String("default_backend", cfg.Store.Default),
		zap.String("chart_specifier", cfg.Chart.Specifier),
		zap.Bool("moderation", !cfg.Safety.Moderation.Disabled),
		zap.Bool("jailbreak_detection", !cfg.Safety.Jailbreak.Disabled))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close stores", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting herdwise",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))

		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newRouter mounts the API, health and MCP routes behind request logging and CORS.
func newRouter(a *app) http.Handler {
	mux := http.NewServeMux()

	handlers.NewAskHandler(a.pipeline, a.local, a.cfg.Chart.SpecServiceURLs(), a.logger).RegisterRoutes(mux)
	handlers.NewHealthHandler(a.cfg, a.stores, a.logger).RegisterRoutes(mux)

	mcpServer := mcp.NewServer("herdwise", a.cfg.Version, a.logger)
	mcpServer.RegisterPipelineTools(a.pipeline, a.cfg.Version, a.stores)
	mux.Handle("/mcp", middleware.MCPRequestLogger(a.logger)(mcpServer.NewStreamableHTTPServer()))

	handler := middleware.RequestLogger(a.logger)(mux)
	return middleware.CORS(a.cfg.Origins())(handler)
}
