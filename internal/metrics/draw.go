package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	drawTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draw_declare_total",
			Help: "Total draw declarations by result and component",
		},
		[]string{"result", "component"},
	)

	drawDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draw_declare_duration_ms",
			Help:    "Draw declaration processing duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "component"},
	)

	drawSettledBets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draw_settled_bets_total",
			Help: "Settled wagers by outcome (won/lost)",
		},
		[]string{"outcome"},
	)
)

// RecordDraw 记录开奖声明的业务指标
// result: "success" | "success_idempotent" | "fail"
// component: "two_digit" | "open" | "close"
func RecordDraw(result, component string, started time.Time) {
	res := result
	if res != "success" && res != "success_idempotent" {
		res = "fail"
	}
	cp := strings.ToLower(strings.TrimSpace(component))
	if cp == "" {
		cp = "unknown"
	}
	drawTotal.WithLabelValues(res, cp).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	drawDuration.WithLabelValues(res, cp).Observe(durMs)
}

// RecordSettledBets 记录结算注单数（按输赢）
func RecordSettledBets(outcome string, n int) {
	if n <= 0 {
		return
	}
	drawSettledBets.WithLabelValues(outcome).Add(float64(n))
}
