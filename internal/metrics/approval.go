package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	approvalTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_requests_total",
			Help: "Total approval decisions by result and kind",
		},
		[]string{"result", "kind"},
	)

	approvalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "approval_request_duration_ms",
			Help:    "Approval processing duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "kind"},
	)
)

// RecordApproval 记录审批业务指标
// kind: "prize" | "commission" | "topup" | "topup_reject"
func RecordApproval(result, kind string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	approvalTotal.WithLabelValues(res, kind).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	approvalDuration.WithLabelValues(res, kind).Observe(durMs)
}
