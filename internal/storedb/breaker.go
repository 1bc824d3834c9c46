// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package storedb

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/confwatch/confwatch/internal/logging"
	"github.com/confwatch/confwatch/internal/metrics"
	"github.com/confwatch/confwatch/internal/sca"
)

// BreakerClient wraps a store client with a circuit breaker so a dead or
// drowning store backend sheds queries quickly instead of stalling every
// decoder invocation on dial timeouts.
//
// The circuit opens after a 60% failure rate with at least 10 requests in
// a one-minute window and probes again after 30 seconds. While open,
// queries fail immediately; the reconciliation engine treats those failures
// like any other store error (logged, guarded writes skipped).
type BreakerClient struct {
	client sca.StoreClient
	cb     *gobreaker.CircuitBreaker[sca.StoreResult]
}

// NewBreakerClient wraps client with circuit breaker protection.
func NewBreakerClient(client sca.StoreClient) *BreakerClient {
	metrics.StoreBreakerState.Set(0)

	cb := gobreaker.NewCircuitBreaker[sca.StoreResult](gobreaker.Settings{
		Name:        "sca-store",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Store circuit breaker state transition")
			metrics.StoreBreakerState.Set(stateToFloat(to))
		},
	})

	return &BreakerClient{client: client, cb: cb}
}

// Query runs one store query through the breaker.
func (b *BreakerClient) Query(ctx context.Context, query string) (sca.StoreResult, error) {
	return b.cb.Execute(func() (sca.StoreResult, error) {
		return b.client.Query(ctx, query)
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
