// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/confwatch/confwatch/internal/logging"
	"github.com/confwatch/confwatch/internal/metrics"
)

// SendStatus classifies the outcome of a dump-channel send.
type SendStatus int

const (
	// SendSuccess means the message left the channel.
	SendSuccess SendStatus = iota
	// SendMessageTooLong means the message exceeded the channel's datagram
	// size; the request is dropped.
	SendMessageTooLong
	// SendError is any other channel failure; the channel should be
	// disconnected so the next send attempts a fresh connection.
	SendError
)

// DumpChannel is the reconnect-on-demand side channel used to ask an
// external component to re-stream the full current state for a policy.
// Implementations are shared across decoder invocations and must tolerate
// repeated sequential use.
type DumpChannel interface {
	IsConnected() bool
	Connect() error
	Send(msg string) SendStatus
	Disconnect()
}

// dumpLimiter suppresses dump-request storms: at most one request per
// (agent, policy) key within the configured interval. A zero interval
// disables suppression entirely.
type dumpLimiter struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newDumpLimiter(interval time.Duration) *dumpLimiter {
	return &dumpLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// allow reports whether a dump request for the key may be sent now.
func (l *dumpLimiter) allow(key string) bool {
	if l == nil || l.interval <= 0 {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// pushDumpRequest asks the dump channel to re-stream the current state of a
// policy. firstScan marks a full resync of empty local state. The helper is
// strictly best-effort: connection failures drop the request, send failures
// are logged, and a generic channel error disconnects so the next call
// reconnects. It never returns an error to the calling handler: a resync
// request is an optimization, not a correctness requirement for the event.
func pushDumpRequest(dc *DecodeContext, policyID string, firstScan bool) {
	if !dc.limiter.allow(dc.AgentID + ":" + policyID) {
		metrics.DumpRequests.WithLabelValues("suppressed").Inc()
		logging.Debug().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA dump request suppressed by rate limit")
		return
	}

	if !dc.Dump.IsConnected() {
		if err := dc.Dump.Connect(); err != nil {
			metrics.DumpRequests.WithLabelValues("dropped").Inc()
			logging.Warn().Err(err).
				Str("agent_id", dc.AgentID).
				Msg("SCA dump channel connect failed")
			return
		}
	}

	flag := "0"
	if firstScan {
		flag = "1"
	}
	msg := fmt.Sprintf("%s:sca-dump:%s:%s", dc.AgentID, policyID, flag)

	switch dc.Dump.Send(msg) {
	case SendSuccess:
		metrics.DumpRequests.WithLabelValues("sent").Inc()
	case SendMessageTooLong:
		metrics.DumpRequests.WithLabelValues("dropped").Inc()
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("message", msg).
			Msg("SCA dump request dropped: message too long")
	case SendError:
		metrics.DumpRequests.WithLabelValues("dropped").Inc()
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA dump request failed, disconnecting channel")
		// Reconnect on the next request.
		dc.Dump.Disconnect()
	}
}
