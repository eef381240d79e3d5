// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts control channel traffic. Metrics are registered in a
// dedicated registry so they do not interfere with the default global
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	unknownCommands  prometheus.Counter
	bytesReceived    prometheus.Counter
	bytesSent        prometheus.Counter
	forwardsRelayed  prometheus.Counter
}

// NewMetrics creates the control channel metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	messagesReceived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "termshare",
		Subsystem: "control",
		Name:      "messages_received_total",
		Help:      "Inbound control messages by command.",
	}, []string{"command"})

	messagesSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "termshare",
		Subsystem: "control",
		Name:      "messages_sent_total",
		Help:      "Outbound control messages by command.",
	}, []string{"command"})

	unknownCommands := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "termshare",
		Subsystem: "control",
		Name:      "unknown_commands_total",
		Help:      "Inbound messages dropped for an unrecognized command tag.",
	})

	bytesReceived := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "termshare",
		Subsystem: "control",
		Name:      "received_bytes_total",
		Help:      "Bytes read from the control connection.",
	})

	bytesSent := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "termshare",
		Subsystem: "control",
		Name:      "sent_bytes_total",
		Help:      "Bytes written to the control connection.",
	})

	forwardsRelayed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "termshare",
		Subsystem: "control",
		Name:      "forwards_relayed_total",
		Help:      "Daemon forward messages relayed to local clients.",
	})

	registry.MustRegister(messagesReceived, messagesSent, unknownCommands,
		bytesReceived, bytesSent, forwardsRelayed)

	return &Metrics{
		registry:         registry,
		messagesReceived: messagesReceived,
		messagesSent:     messagesSent,
		unknownCommands:  unknownCommands,
		bytesReceived:    bytesReceived,
		bytesSent:        bytesSent,
		forwardsRelayed:  forwardsRelayed,
	}
}

// Registry returns the Prometheus registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) messageReceived(command InboundCommand) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(command.String()).Inc()
}

func (m *Metrics) messageSent(command OutboundCommand) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(command.String()).Inc()
}

func (m *Metrics) unknownCommand() {
	if m == nil {
		return
	}
	m.unknownCommands.Inc()
}

func (m *Metrics) received(count int) {
	if m == nil {
		return
	}
	m.bytesReceived.Add(float64(count))
}

func (m *Metrics) sent(count int) {
	if m == nil {
		return
	}
	m.bytesSent.Add(float64(count))
}

func (m *Metrics) forwardRelayed() {
	if m == nil {
		return
	}
	m.forwardsRelayed.Inc()
}
