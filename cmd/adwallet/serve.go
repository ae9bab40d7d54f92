package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpHandler "adwallet/internal/adapter/http/handler"
	"adwallet/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var withGuard bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.log

		log.Info().
			Str("mode", a.cfg.Server.Mode).
			Int("port", a.cfg.Server.Port).
			Msg("Starting adwallet API")

		if a.cfg.Server.WebhookSecret == "" {
			log.Warn().Msg("server.webhook_secret is empty, payment callbacks will be rejected")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics.MustRegister(reg)

		router := httpHandler.SetupRouter(httpHandler.RouterDeps{
			WalletSvc:      a.walletSvc,
			Guard:          a.guard,
			TokenSvc:       a.tokenSvc,
			SigSvc:         a.sigSvc,
			NonceStore:     a.nonceStore,
			WebhookSecret:  a.cfg.Server.WebhookSecret,
			RateLimitStore: a.rateLimits,
			IdemCache:      a.idemCache,
			AuditSvc:       a.auditSvc,
			HealthCheckers: a.health,
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Mode:           a.cfg.Server.Mode,
			Logger:         log,
		})

		addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		guardDone := make(chan struct{})
		if withGuard {
			go func() {
				defer close(guardDone)
				_ = a.guard.Run(ctx)
			}()
		} else {
			close(guardDone)
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", addr).Msg("HTTP server listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down server...")
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server failed")
				stop()
				<-guardDone
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		<-guardDone

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withGuard, "with-guard", false, "also run the budget guard loop in this process")
}
