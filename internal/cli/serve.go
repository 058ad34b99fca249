package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	apphttp "budget/internal/http"
	"budget/internal/log"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx, cancel := GracefulShutdown(cmd.Context(), a.Logger)
			defer cancel()
			return Serve(ctx, a)
		},
	}
	return cmd
}

// Serve runs the HTTP API until ctx is cancelled and drains in-flight
// requests. Weeks are only closed by explicit requests.
func Serve(ctx context.Context, a *App) error {
	logger := a.Logger.WithComponent(log.ComponentHTTP)

	srv := apphttp.NewServer(":"+a.Config.Port, a.Ledger, apphttp.Options{
		MetricsEnabled: a.Config.MetricsEnabled,
		Logger:         logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "Starting budget server", "port", a.Config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "Server shutdown error", log.FieldError, err)
			return err
		}
		logger.InfoContext(shutdownCtx, "Server stopped gracefully")
		return nil
	})
	return g.Wait()
}
