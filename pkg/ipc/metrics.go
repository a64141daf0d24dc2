/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipc

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "polyipc"

type metrics struct {
	accepted     prometheus.Counter
	active       prometheus.Gauge
	messages     prometheus.Counter
	bytes        prometheus.Counter
	closed       *prometheus.CounterVec
	truncated    prometheus.Counter
	acceptErrors prometheus.Counter
}

// Reasons a connection ended, used as the "reason" label.
const (
	reasonEOF      = "eof"
	reasonProtocol = "protocol"
	reasonRead     = "read"
	reasonShutdown = "shutdown"
)

func newMetrics() *metrics {
	return &metrics{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "server", Name: "connections_accepted_total",
			Help: "IPC connections accepted.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "server", Name: "connections_active",
			Help: "IPC connections currently open.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "server", Name: "messages_total",
			Help: "Complete IPC messages dispatched.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "server", Name: "received_bytes_total",
			Help: "Bytes read from IPC connections.",
		}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "server", Name: "connections_closed_total",
			Help: "IPC connections closed, by reason.",
		}, []string{"reason"}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "server", Name: "truncated_messages_total",
			Help: "Connections that ended in the middle of a message.",
		}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "server", Name: "accept_errors_total",
			Help: "Errors reported by the listening socket.",
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.accepted, m.active, m.messages, m.bytes, m.closed, m.truncated, m.acceptErrors}
}

// register adds every collector to reg.
func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("ipc: register metrics: %w", err)
		}
	}
	return nil
}
