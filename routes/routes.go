package routes

import (
	"context"
	"net/http"
	"time"

	"settlement-service/controllers"
	"settlement-service/logger"
	"settlement-service/metrics"
	"settlement-service/middleware"
	aws_pkg "settlement-service/pkg/aws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups the controllers mounted on the router.
type Handlers struct {
	Webhook    *controllers.WebhookController
	Payouts    *controllers.PayoutController
	Checkout   *controllers.CheckoutController
	EmailQueue *controllers.EmailQueueController
}

// Options carries the cross-cutting pieces of the HTTP stack.
type Options struct {
	ServiceName    string
	Logger         *zap.Logger
	Metrics        *metrics.Collectors
	CloudWatch     *aws_pkg.MetricsClient
	Tokens         *middleware.TokenParser
	WebhookLimiter *middleware.RateLimiter
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Ready reports whether dependencies (the database) are reachable.
	Ready func(ctx context.Context) error
	// TrustGatewayHeaders lets api-gateway identity headers stand in for a token.
	TrustGatewayHeaders bool
}

// NewRouter builds the gin engine for the settlement API.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(opts.Logger))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.GinMiddleware())
	}
	r.Use(middleware.MetricsMiddleware(opts.CloudWatch, opts.ServiceName))
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.GET("/health", func(c *gin.Context) {
		if opts.Ready != nil {
			if err := opts.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "service": opts.ServiceName, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": opts.ServiceName})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// The gateway posts form bodies without auth; the signature authenticates it.
	webhooks := r.Group("/webhooks")
	if opts.WebhookLimiter != nil {
		webhooks.Use(middleware.RateLimitMiddleware(opts.WebhookLimiter))
	}
	webhooks.Any("/payfast", h.Webhook.PayFastNotify)

	api := r.Group("/")
	api.Use(middleware.SecurityHeaders())
	api.Use(middleware.AuthMiddleware(opts.Tokens, opts.TrustGatewayHeaders))

	api.POST("/payments/checkout", h.Checkout.CreateCheckout)
	api.GET("/payouts", h.Payouts.PayoutHistory)

	admin := api.Group("/admin")
	admin.POST("/payouts/control", h.Payouts.ControlPayout)
	admin.POST("/email-queue/retry", h.EmailQueue.RetryFailed)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
