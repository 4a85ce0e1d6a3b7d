package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HashRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bleminer",
		Name:      "hash_rate",
		Help:      "Hashrate of the last mining session in H/s.",
	})

	SessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bleminer",
		Name:      "sessions_total",
		Help:      "Total mining sessions started.",
	})

	StaleSessions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bleminer",
		Name:      "stale_sessions_total",
		Help:      "Sessions abandoned because the chain tip moved.",
	})

	BlocksFound = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bleminer",
		Name:      "blocks_found_total",
		Help:      "Total blocks found.",
	})

	BlockSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bleminer",
		Name:      "block_submissions_total",
		Help:      "Block submission attempts by result.",
	}, []string{"result"})

	UptimeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bleminer",
		Name:      "uptime_seconds",
		Help:      "Miner uptime in seconds.",
	})
)

func init() {
	prometheus.MustRegister(
		HashRate,
		SessionsTotal,
		StaleSessions,
		BlocksFound,
		BlockSubmissions,
		UptimeSeconds,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
