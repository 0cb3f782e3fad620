// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KeepalivesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bgpsim_keepalives_sent_total",
		Help: "Keepalive messages emitted by sessions, per interface",
	}, []string{"interface"})

	KeepaliveEmitErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bgpsim_keepalive_emit_errors_total",
		Help: "Keepalive messages the transport sink refused, per interface",
	}, []string{"interface"})

	HoldDownExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bgpsim_holddown_expired_total",
		Help: "Hold-down timer expiries (session invalidations), per interface",
	}, []string{"interface"})

	SessionValid = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bgpsim_session_valid",
		Help: "Whether the session on an interface is valid (1) or not (0)",
	}, []string{"interface"})

	RoutesWithdrawnTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bgpsim_routes_withdrawn_total",
		Help: "Routes withdrawn from the routing table after session invalidation, per interface",
	}, []string{"interface"})

	SupervisorCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bgpsim_supervisor_cycles_total",
		Help: "Supervisor wake cycles that scanned session validity",
	})

	InboundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bgpsim_inbound_messages_total",
		Help: "Inbound peer notifications handled by the supervisor, by outcome",
	}, []string{"outcome"}) // outcome=reset|invalid|unknown_peer
)

func ifaceLabel(iface int) string {
	return strconv.Itoa(iface)
}

// IncKeepalivesSent records one emitted keepalive.
func IncKeepalivesSent(iface int) {
	KeepalivesSentTotal.WithLabelValues(ifaceLabel(iface)).Inc()
}

// IncKeepaliveEmitError records a keepalive the sink rejected.
func IncKeepaliveEmitError(iface int) {
	KeepaliveEmitErrorsTotal.WithLabelValues(ifaceLabel(iface)).Inc()
}

// IncHoldDownExpired records a Valid -> Invalid transition.
func IncHoldDownExpired(iface int) {
	HoldDownExpiredTotal.WithLabelValues(ifaceLabel(iface)).Inc()
}

// SetSessionValid publishes the validity flag of a session.
func SetSessionValid(iface int, valid bool) {
	v := 0.0
	if valid {
		v = 1
	}
	SessionValid.WithLabelValues(ifaceLabel(iface)).Set(v)
}

// AddRoutesWithdrawn records routes removed for an interface.
func AddRoutesWithdrawn(iface int, n int) {
	if n <= 0 {
		return
	}
	RoutesWithdrawnTotal.WithLabelValues(ifaceLabel(iface)).Add(float64(n))
}

// IncSupervisorCycles records one validity scan.
func IncSupervisorCycles() {
	SupervisorCyclesTotal.Inc()
}

// IncInbound records an inbound notification outcome.
func IncInbound(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	InboundTotal.WithLabelValues(outcome).Inc()
}
