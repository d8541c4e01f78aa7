package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := New()

	r := gin.New()
	r.Use(c.GinMiddleware())
	r.GET("/health", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/health", "GET", "200")))
}

func TestObserveHelpers(t *testing.T) {
	c := New()

	c.ObserveWebhook(OutcomeSettled)
	c.ObserveJob("revenue-release", time.Second, nil)
	c.ObserveJob("revenue-release", time.Second, errors.New("boom"))
	c.ObservePayout("automatic", 2904)
	c.ObserveOutbox(2, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.WebhookOutcomes.WithLabelValues(OutcomeSettled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.JobRuns.WithLabelValues("revenue-release", "error")))
	assert.Equal(t, 2904.0, testutil.ToFloat64(c.PayoutNetAmount))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.OutboxPublished))
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveWebhook(OutcomeError)
		c.ObserveJob("x", 0, nil)
		c.ObservePayout("manual", 1)
		c.ObserveOutbox(1, 1)
		c.ObserveNotificationError("email")
	})
}

func TestHandler_ServesExposition(t *testing.T) {
	c := New()
	c.ObserveWebhook(OutcomeIgnored)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "settlement_webhook_outcomes_total")
}
