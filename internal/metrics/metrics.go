package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harborline_payments",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		},
		[]string{"method", "status"},
	)

	refundsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harborline_payments",
			Name:      "refunds_issued_total",
			Help:      "Gateway refunds issued by refund type.",
		},
		[]string{"type"},
	)

	refundsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harborline_payments",
			Name:      "refunds_settled_total",
			Help:      "Refunds settled by the gateway, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers all collectors. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, refundsIssued, refundsSettled)
	})
}

// IncHTTP increments the request counter.
func IncHTTP(method, status string) {
	httpRequests.WithLabelValues(method, status).Inc()
}

// IncRefundIssued increments the issued-refund counter.
// refundType is "cancellation" or "downgrade".
func IncRefundIssued(refundType string) {
	refundsIssued.WithLabelValues(refundType).Inc()
}

// IncRefundSettled increments the settled-refund counter.
// outcome is "refunded" or "failed".
func IncRefundSettled(outcome string) {
	refundsSettled.WithLabelValues(outcome).Inc()
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
