package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/yawdotio/totalbeginers-Suitters/salt"
)

type server struct {
	authority *salt.Authority
	strict    bool
	log       zerolog.Logger

	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

func newServer(opts Options) *server {
	factory := promauto.With(opts.Registry)
	return &server{
		authority: opts.Authority,
		strict:    len(opts.VerifyKeys) > 0,
		log:       opts.Logger,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zklogin",
			Subsystem: "salt",
			Name:      "requests_total",
			Help:      "Salt requests by outcome.",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zklogin",
			Subsystem: "salt",
			Name:      "derive_duration_seconds",
			Help:      "Time spent deriving a salt.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}
}
