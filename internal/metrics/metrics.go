// Package metrics exposes Prometheus counters for the intake flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	malformedAmounts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pobot_ledger_malformed_amounts_total",
			Help: "Ledger cells that failed numeric parsing and were counted as zero",
		},
		[]string{"tab"},
	)
	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pobot_flow_transitions_total",
			Help: "State machine transitions by originating state and outcome",
		},
		[]string{"state", "outcome"},
	)
	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pobot_notifications_total",
			Help: "Procurement notification deliveries by trigger and result",
		},
		[]string{"trigger", "result"},
	)
)

// IncMalformedAmount records a ledger cell skipped during numeric parsing.
func IncMalformedAmount(tab string) {
	malformedAmounts.WithLabelValues(tab).Inc()
}

// Transition outcomes.
const (
	OutcomeAdvanced    = "advanced"
	OutcomeReprompt    = "reprompt"
	OutcomeFallback    = "fallback"
	OutcomeLedgerError = "ledger_error"
)

func IncTransition(state, outcome string) {
	transitions.WithLabelValues(state, outcome).Inc()
}

func IncNotification(trigger, result string) {
	notifications.WithLabelValues(trigger, result).Inc()
}
