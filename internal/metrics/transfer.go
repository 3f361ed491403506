package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transferTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_requests_total",
			Help: "Total credit transfer requests by result and kind",
		},
		[]string{"result", "kind"},
	)

	transferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transfer_request_duration_ms",
			Help:    "Credit transfer duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "kind"},
	)
)

// RecordTransfer 记录转账业务指标
// kind: "dealer_credit" | "admin_credit" | "user_debit"
func RecordTransfer(result, kind string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	transferTotal.WithLabelValues(res, kind).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	transferDuration.WithLabelValues(res, kind).Observe(durMs)
}
