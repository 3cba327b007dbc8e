package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *HTTPMetrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := NewHTTPMetrics()
	metrics.MustRegister(prometheus.NewRegistry())

	router := gin.New()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.GET("/api/check-status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "pending"})
	})
	router.POST("/api/request-deposit", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	})
	return router, metrics
}

func serveTest(router *gin.Engine, method, target string) int {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w.Code
}

func TestHTTPMetricsMiddleware_LabelsByRoute(t *testing.T) {
	router, metrics := newTestRouter(t)

	for _, id := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusOK, serveTest(router, http.MethodGet, "/api/check-status?depositId="+id))
	}
	require.Equal(t, http.StatusBadRequest, serveTest(router, http.MethodPost, "/api/request-deposit"))

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "/api/check-status", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues("POST", "/api/request-deposit", "400")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.requestDuration))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.inFlight))
}

func TestHTTPMetricsMiddleware_UnmatchedRoutesShareALabel(t *testing.T) {
	router, metrics := newTestRouter(t)

	serveTest(router, http.MethodGet, "/wp-login.php")
	serveTest(router, http.MethodGet, "/.env")

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.requests.WithLabelValues("GET", unmatchedRoute, "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.requests))
}

func TestHTTPMetricsMiddleware_InFlight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := NewHTTPMetrics()

	var during float64
	router := gin.New()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.GET("/slow", func(c *gin.Context) {
		during = testutil.ToFloat64(metrics.inFlight)
		c.Status(http.StatusOK)
	})

	serveTest(router, http.MethodGet, "/slow")
	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.inFlight))
}

func TestHTTPMetrics_RecordRateLimited(t *testing.T) {
	metrics := NewHTTPMetrics()
	metrics.RecordRateLimited("/api/request-deposit")
	metrics.RecordRateLimited("")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rateLimited.WithLabelValues("/api/request-deposit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rateLimited.WithLabelValues(unmatchedRoute)))

	var nilMetrics *HTTPMetrics
	assert.NotPanics(t, func() { nilMetrics.RecordRateLimited("/api/check-status") })
}

func TestBusinessMetricsRecorder(t *testing.T) {
	metrics := NewHTTPMetrics()
	recorder := NewBusinessMetricsRecorder(metrics)

	recorder.RecordDepositRequest("BTC", "success", 0.2)
	recorder.RecordDepositRequest("BTC", "success", 0.1)
	recorder.RecordStatusCheck("api", "confirmed", 0.05)
	recorder.RecordAdminOperation("retry_failed_rewards", "error", 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.operations.WithLabelValues("request_deposit", "BTC", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues("check_status", "api", "confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues("admin", "retry_failed_rewards", "error")))
	// zero durations are counted but not observed
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.operationDuration))
}

func TestBusinessMetricsRecorder_NilSafe(t *testing.T) {
	var recorder *BusinessMetricsRecorder
	assert.NotPanics(t, func() {
		recorder.RecordDepositRequest("ETH", "error", 1)
		recorder.RecordStatusCheck("api", "error", 1)
		recorder.RecordAdminOperation("reward_info", "success", 1)
	})

	assert.NotPanics(t, func() {
		NewBusinessMetricsRecorder(nil).RecordDepositRequest("ETH", "success", 1)
	})
}
