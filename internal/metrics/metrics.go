// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

// Package metrics exposes Prometheus instrumentation for the decoder, the
// store client, the dump-request channel, and the ingestion consumer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Decoder metrics.
	EventsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sca_events_decoded_total",
			Help: "Total number of SCA events decoded, by event kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Store client metrics.
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sca_store_query_duration_seconds",
			Help:    "Duration of store queries in seconds, by protocol verb",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sca_store_query_errors_total",
			Help: "Total number of failed store queries, by protocol verb",
		},
		[]string{"verb"},
	)

	StoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sca_store_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Dump-request channel metrics.
	DumpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sca_dump_requests_total",
			Help: "Total number of dump requests, by result (sent, dropped, suppressed)",
		},
		[]string{"result"},
	)

	// Ingestion consumer metrics.
	ConsumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sca_consumer_messages_total",
			Help: "Total number of messages consumed, by result (decoded, flagged, dead_lettered)",
		},
		[]string{"result"},
	)

	DLQEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sca_dlq_entries",
			Help: "Current number of entries in the dead-letter store",
		},
	)
)
