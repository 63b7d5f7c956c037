package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/VISHAAL-1/ai-interview-platform/internal/room"
	"github.com/VISHAAL-1/ai-interview-platform/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket gateway",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := room.NewHub()

	// Runs outlive their connection; they are only cancelled when shutdown
	// gives up waiting for them.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	initCtx, initCancel := context.WithTimeout(ctx, 15*time.Second)
	comps, err := buildComponents(initCtx, cfg, hub)
	initCancel()
	if err != nil {
		return err
	}
	defer comps.Close()

	handler := ws.NewHandler(ws.HandlerConfig{
		Hub:            hub,
		Runner:         comps.pipeline,
		BaseContext:    runCtx,
		MaxConcurrent:  cfg.maxConcurrentRuns,
		SendBuffer:     cfg.sendBuffer,
		AllowedOrigins: cfg.allowedOrigins,
	})

	tools := collaborators(cfg)
	logCollaborators(ctx, tools)

	mux := http.NewServeMux()
	d := deps{wsHandler: handler, hub: hub, tools: tools}
	if comps.store != nil {
		d.evals = comps.store
		d.traces = comps.store
		d.db = comps.store
	}
	registerRoutes(mux, d)

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: withCORS(cfg.allowedOrigins, mux), ReadHeaderTimeout: 10 * time.Second}
	// Shutdown ignores hijacked connections; close them ourselves.
	srv.RegisterOnShutdown(handler.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("gateway starting", "addr", addr, "max_concurrent_runs", cfg.maxConcurrentRuns)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		handler.Close()
		drainRuns(shutdownCtx, handler, cancelRuns)
		return err
	})

	if err = g.Wait(); err != nil {
		slog.Error("server failed", "error", err)
		return err
	}
	slog.Info("gateway stopped")
	return nil
}

// drainRuns waits for in-flight runs, cancelling them once ctx expires.
func drainRuns(ctx context.Context, h *ws.Handler, cancelRuns context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown timeout, cancelling in-flight runs")
		cancelRuns()
		<-done
	}
}
