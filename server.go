package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"settlement-service/controllers"
	"settlement-service/middleware"
	"settlement-service/routes"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	var withWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook and payout API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if withWorker {
				go func() {
					if err := a.runWorker(ctx); err != nil {
						a.logger.Error("Worker stopped", zap.Error(err))
					}
				}()
			}
			return a.serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the job scheduler in this process")
	return cmd
}

func (a *app) router(limiter *middleware.RateLimiter) *gin.Engine {
	if a.cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := routes.Handlers{
		Webhook:    controllers.NewWebhookController(a.settlement, a.logger),
		Payouts:    controllers.NewPayoutController(a.revenue),
		Checkout:   controllers.NewCheckoutController(a.checkout),
		EmailQueue: controllers.NewEmailQueueController(a.emailQueue),
	}
	return routes.NewRouter(h, routes.Options{
		ServiceName:    a.cfg.ServiceName,
		Logger:         a.logger,
		Metrics:        a.metrics,
		CloudWatch:     a.cw,
		Tokens:              middleware.NewTokenParser(a.cfg.JWTSecret),
		TrustGatewayHeaders: a.cfg.TrustGatewayHeaders,
		WebhookLimiter:      limiter,
		AllowedOrigins:      a.cfg.AllowedOrigins,
		Ready:               a.ready,
	})
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func (a *app) serve(ctx context.Context) error {
	limiter := middleware.NewRateLimiter(rate.Limit(a.cfg.WebhookRatePerSecond), a.cfg.WebhookBurst, 10*time.Minute)
	go limiter.RunCleanup(ctx)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.router(limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.logger.Info("Settlement service started", zap.String("port", a.cfg.Port))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down settlement service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}
	a.logger.Info("Server exited cleanly")
	return nil
}
