package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cerebro",
			Subsystem: "manifest",
			Name:      "refresh_total",
			Help:      "Manifest refresh cycles by outcome",
		},
		[]string{"status"},
	)

	routesPublished = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cerebro",
			Subsystem: "routes",
			Name:      "published",
			Help:      "Number of routes in the live table",
		},
	)

	routeGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cerebro",
			Subsystem: "routes",
			Name:      "generation",
			Help:      "Generation number of the live table",
		},
	)
)

func init() {
	prometheus.MustRegister(refreshTotal, routesPublished, routeGeneration)
}
