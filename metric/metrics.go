// Package metric holds the prometheus collectors of the pub/sub core.
//
// All methods are safe on a nil *Metrics, so components can take an optional
// metrics handle without guarding every call site.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ghost"

// Metrics contains the pub/sub counters and gauges.
type Metrics struct {
	MessagesPublished *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	WriteFailures     *prometheus.CounterVec
	DispatchErrors    *prometheus.CounterVec
	Connections       *prometheus.GaugeVec
}

// NewMetrics creates the collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "published_total",
				Help:      "Total number of messages written by publishers",
			},
			[]string{"channel", "type"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Total number of messages received by subscribers",
			},
			[]string{"channel", "type"},
		),

		WriteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "write_failures_total",
				Help:      "Total number of failed writes by reason (disconnected, serialization)",
			},
			[]string{"channel", "reason"},
		),

		DispatchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "dispatch_errors_total",
				Help:      "Total number of received messages whose dispatch failed",
			},
			[]string{"channel", "type"},
		),

		Connections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "connections",
				Name:      "current",
				Help:      "Number of connections per role and state",
			},
			[]string{"role", "state"},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.MessagesPublished,
		m.MessagesReceived,
		m.WriteFailures,
		m.DispatchErrors,
		m.Connections,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Published(channel, msgType string) {
	if m == nil {
		return
	}
	m.MessagesPublished.WithLabelValues(channel, msgType).Inc()
}

func (m *Metrics) Received(channel, msgType string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(channel, msgType).Inc()
}

func (m *Metrics) WriteFailed(channel, reason string) {
	if m == nil {
		return
	}
	m.WriteFailures.WithLabelValues(channel, reason).Inc()
}

func (m *Metrics) DispatchFailed(channel, msgType string) {
	if m == nil {
		return
	}
	m.DispatchErrors.WithLabelValues(channel, msgType).Inc()
}

// Transition moves one connection of role from state from to state to.
// An empty from only increments to.
func (m *Metrics) Transition(role, from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.Connections.WithLabelValues(role, from).Dec()
	}
	m.Connections.WithLabelValues(role, to).Inc()
}
