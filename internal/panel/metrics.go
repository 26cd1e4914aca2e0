package panel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authExchanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panelsync_auth_exchanges_total",
		Help: "Basic-auth exchanges performed against panel servers.",
	})
	reauthRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panelsync_reauth_retries_total",
		Help: "401-triggered reauthentication retries.",
	})
	endpointFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panelsync_endpoint_failures_total",
		Help: "Per-endpoint fetch failures tolerated during aggregation.",
	}, []string{"endpoint"})
	logoutFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panelsync_logout_failures_total",
		Help: "Best-effort session logouts that failed.",
	})
)
