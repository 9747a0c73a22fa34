package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"medmodeld/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr string
		cors string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = addr
			}
			if cmd.Flags().Changed("cors-origins") {
				a.cfg.CORSOrigins = splitCSV(cors)
			}
			mgr, err := a.manager()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpapi.SetLogger(a.log)
			httpapi.SetRequestLogLevel(a.cfg.RequestLog)
			httpapi.SetBaseContext(ctx)
			httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
			httpapi.SetCORSOrigins(a.cfg.CORSOrigins...)
			httpapi.SetAuthSecret(a.cfg.JWTSecret)
			if a.cfg.JWTSecret == "" {
				a.log.Warn().Msg("jwt_secret unset: /local and /providers are unauthenticated")
			}

			if err := mgr.Sync(ctx); err != nil {
				a.log.Warn().Err(err).Str("endpoint", mgr.Endpoint()).Msg("initial sync failed; runtime may be down")
			}

			srv := &http.Server{
				Addr:              a.cfg.Addr,
				Handler:           httpapi.NewMux(service{Manager: mgr, Prober: a.prober()}),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.log.Info().Str("addr", a.cfg.Addr).Str("runtime", mgr.Endpoint()).Msg("medmodeld listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			// Graceful shutdown (Ctrl+C / SIGTERM)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Error().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&cors, "cors-origins", "", "Comma-separated allowed CORS origins")
	return cmd
}
