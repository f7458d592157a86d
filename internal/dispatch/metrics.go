package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	assignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Ambulance assignment attempts by outcome.",
		},
		[]string{"outcome"},
	)

	releasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_releases_total",
			Help: "Ambulance releases by mode (manual or auto).",
		},
		[]string{"mode"},
	)

	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_events_dropped_total",
			Help: "Mutation events dropped because a subscriber buffer was full.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		assignmentsTotal,
		releasesTotal,
		eventsDroppedTotal,
	)
}

// ObserveAssignment records an assignment attempt. Successful calls pass
// "ok"; failures pass the error kind.
func ObserveAssignment(outcome string) {
	assignmentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRelease records a completed release by mode.
func ObserveRelease(mode string) {
	releasesTotal.WithLabelValues(mode).Inc()
}

// ObserveDroppedEvent records a mutation event lost to a full subscriber.
func ObserveDroppedEvent(kind Kind) {
	eventsDroppedTotal.WithLabelValues(string(kind)).Inc()
}
