package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AI 호출 결과
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeOffline  = "offline"
)

var (
	// HTTP 요청 총 수
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP 요청 처리 시간 (히스토그램)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// 현재 처리 중인 HTTP 요청 수
	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// 접수된 오류 보고 수
	reportsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "error_reports_submitted_total",
			Help: "Total number of submitted error reports",
		},
		[]string{"system"},
	)

	// AI 호출 수 (작업, 결과별)
	aiCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "Total number of AI assistant calls",
		},
		[]string{"operation", "outcome"},
	)

	// AI 응답 시간
	aiCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_call_duration_seconds",
			Help:    "AI model call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// 요청 제한으로 거부된 수
	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

// MetricsMiddleware는 HTTP 요청에 대한 Prometheus 메트릭을 수집합니다.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		// 라우트 패턴을 사용해 /api/errors/:id 같은 경로를 하나로 묶습니다.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		c.Next()

		httpRequestsInFlight.Dec()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// RecordReportSubmitted는 오류 보고 접수 메트릭을 기록합니다.
func RecordReportSubmitted(system string) {
	if system == "" {
		system = "unknown"
	}
	reportsSubmittedTotal.WithLabelValues(system).Inc()
}

// RecordAICall은 AI 호출 메트릭을 기록합니다. duration이 0이면 모델을 호출하지 않은 경우입니다.
func RecordAICall(operation, outcome string, duration time.Duration) {
	aiCallsTotal.WithLabelValues(operation, outcome).Inc()
	if duration > 0 {
		aiCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

func recordRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(route).Inc()
}
