// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "chainrpc"
	metricsSubsystem = "client"
)

// Call outcomes.
const (
	outcomeOK        = "ok"
	outcomeRemote    = "remote_error"
	outcomeTimeout   = "timeout"
	outcomeClosed    = "closed"
	outcomeCanceled  = "canceled"
	outcomeTransport = "transport_error"
	outcomeProtocol  = "protocol_error"
)

// Protocol anomaly reasons.
const (
	anomalyMalformed    = "malformed"
	anomalyBadID        = "bad_id"
	anomalyUnclassified = "unclassified"
	anomalyUnknownSub   = "unknown_subscription"
	anomalyBadHandle    = "bad_handle"
)

var (
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "calls_total",
			Help:      "Total number of calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	callLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "call_latency_seconds",
			Help:      "Call latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	pendingCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "pending_calls",
			Help:      "Calls awaiting a reply",
		},
	)

	lateReplies = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "late_replies_total",
			Help:      "Replies discarded because no call was waiting for them",
		},
	)

	protocolAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "protocol_anomalies_total",
			Help:      "Inbound frames dropped as unroutable or malformed",
		},
		[]string{"reason"},
	)

	notificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "notifications_total",
			Help:      "Notifications delivered to subscription channels",
		},
		[]string{"method"},
	)

	notificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped by a subscription overflow policy",
		},
		[]string{"method", "policy"},
	)

	activeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "subscriptions",
			Help:      "Subscriptions that are not closed",
		},
	)

	reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "reconnects_total",
			Help:      "Duplex connection attempts after the first, by result",
		},
		[]string{"result"},
	)
)
