package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_requests_total",
			Help: "Total bet requests by result and game_kind",
		},
		[]string{"result", "game_kind"},
	)

	betDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bet_request_duration_ms",
			Help:    "Bet request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "game_kind"},
	)

	betStakeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_stake_amount_total",
			Help: "Accumulated stake amount by game_kind",
		},
		[]string{"game_kind"},
	)
)

// RecordBet records business metrics for a bet call.
// result should be "success" or "fail"; gameKind is normalized to lower-case.
func RecordBet(result, gameKind string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	gk := strings.ToLower(gameKind)
	betTotal.WithLabelValues(res, gk).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	betDuration.WithLabelValues(res, gk).Observe(durMs)
}

// RecordBetStake 累计成功注金（按玩法）
func RecordBetStake(gameKind string, stake float64) {
	if stake <= 0 {
		return
	}
	betStakeTotal.WithLabelValues(strings.ToLower(gameKind)).Add(stake)
}
