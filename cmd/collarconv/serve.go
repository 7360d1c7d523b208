package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/collarconv/internal/core"
	"github.com/JonMunkholm/collarconv/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP conversion API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr()
			}
			return serve(cmd.Context(), a, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from SERVER_HOST and SERVER_PORT)")
	return cmd
}

// serve runs the API until ctx is cancelled, then drains running
// conversions and shuts the server down.
func serve(ctx context.Context, a *app, addr string) error {
	cfg := a.cfg
	core.ConvertTimeout = cfg.Convert.Timeout

	slog.Info("configuration loaded",
		"addr", addr,
		"convert_max_concurrent", cfg.Convert.MaxConcurrent,
		"session_max", cfg.Session.MaxSessions,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"profile_dir", cfg.Profile.Dir,
	)

	service := core.NewService(cfg.ServiceConfig())
	server := web.NewServer(service, a.profiles, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go service.StartSessionSweeper(jobCtx, core.SweepConfig{
		IdleTTL:       cfg.Session.IdleTTL,
		CheckInterval: cfg.Session.SweepInterval,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := service.Limiter().Status(); status.Active > 0 {
		slog.Info("waiting for conversions to complete", "active", status.Active)
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("conversions did not complete in time", "error", err)
		} else {
			slog.Info("all conversions completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
