// Package metrics holds the prometheus collectors scraped from /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcome labels.
const (
	OutcomeSettled          = "settled"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeFailedRecorded   = "failed_recorded"
	OutcomeIgnored          = "ignored"
	OutcomeRejected         = "rejected"
	OutcomeError            = "error"
)

// Collectors bundles every collector the service exports.
type Collectors struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	WebhookOutcomes  *prometheus.CounterVec
	PayoutsReleased  *prometheus.CounterVec
	PayoutNetAmount  prometheus.Counter
	JobRuns          *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	OutboxPublished  prometheus.Counter
	OutboxFailures   prometheus.Counter
	NotificationErrs *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settlement_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		WebhookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_webhook_outcomes_total",
			Help: "Payment callbacks by outcome.",
		}, []string{"outcome"}),
		PayoutsReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_payouts_released_total",
			Help: "Payout records created by release type.",
		}, []string{"release_type"}),
		PayoutNetAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_payout_net_amount_total",
			Help: "Sum of net amounts released to creators.",
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_job_runs_total",
			Help: "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settlement_job_duration_seconds",
			Help:    "Scheduled job run time.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"job"}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_outbox_published_total",
			Help: "Outbox messages published.",
		}),
		OutboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_outbox_failures_total",
			Help: "Outbox publish attempts that failed.",
		}),
		NotificationErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_notification_errors_total",
			Help: "Notification enqueue failures by channel.",
		}, []string{"channel"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests, c.HTTPDuration, c.WebhookOutcomes,
		c.PayoutsReleased, c.PayoutNetAmount,
		c.JobRuns, c.JobDuration,
		c.OutboxPublished, c.OutboxFailures,
		c.NotificationErrs,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per matched route.
func (c *Collectors) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// ObserveJob records one scheduler run.
func (c *Collectors) ObserveJob(job string, d time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.JobRuns.WithLabelValues(job, result).Inc()
	c.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// ObserveWebhook records one callback outcome.
func (c *Collectors) ObserveWebhook(outcome string) {
	if c == nil {
		return
	}
	c.WebhookOutcomes.WithLabelValues(outcome).Inc()
}

// ObservePayout records one payout creation.
func (c *Collectors) ObservePayout(releaseType string, net float64) {
	if c == nil {
		return
	}
	c.PayoutsReleased.WithLabelValues(releaseType).Inc()
	c.PayoutNetAmount.Add(net)
}

// ObserveNotificationError records a failed notification channel write.
func (c *Collectors) ObserveNotificationError(channel string) {
	if c == nil {
		return
	}
	c.NotificationErrs.WithLabelValues(channel).Inc()
}

// ObserveOutbox records the result of a relay pass.
func (c *Collectors) ObserveOutbox(published, failed int) {
	if c == nil {
		return
	}
	c.OutboxPublished.Add(float64(published))
	c.OutboxFailures.Add(float64(failed))
}
