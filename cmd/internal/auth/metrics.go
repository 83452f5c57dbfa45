package auth

import "github.com/prometheus/client_golang/prometheus"

// DecisionsTotal counts auth outcomes by component (bearer, dev, owner).
var DecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bugtrack_auth_decisions_total",
		Help: "Authentication and authorization decisions by component and outcome.",
	},
	[]string{"component", "outcome"},
)

func init() {
	prometheus.MustRegister(DecisionsTotal)
}

func recordDecision(component, outcome string) {
	DecisionsTotal.WithLabelValues(component, outcome).Inc()
}
