package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treeline_publishes_total",
		Help: "Completed publish operations.",
	})
	metricRouterRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treeline_router_rebuilds_total",
		Help: "Apphook routing table rebuilds.",
	})
	metricApphookConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treeline_apphook_path_conflicts_total",
		Help: "Duplicate apphook mount paths skipped during rebuild.",
	})
)
