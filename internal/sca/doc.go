// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

// Package sca decodes Security Configuration Assessment telemetry and
// reconciles it against a per-agent persistent store.
//
// Incoming events carry one of four kinds in their type field (check,
// summary, policies, dump_end) and the decoder runs the matching
// reconciliation handler: validate the event's shape, query the store over
// its textual protocol, insert or update state, and decide whether to
// normalize the event (write enriched fields for downstream alerting)
// and/or request an out-of-band resync dump when local and remote state
// diverge.
//
// The package separates three concerns:
//
//   - The event document (Event, PathTable, Field): JSON-pointer addressed
//     access to the raw payload and the normalized output sub-object.
//   - The store contract (StoreClient, SearchResult): line-oriented
//     "agent {id} sca {verb} {args}" queries with a three-valued search
//     outcome. Query text is assembled by typed per-verb builders so call
//     sites cannot mismatch positional argument orders.
//   - The reconciliation engine (Decoder plus the per-kind handlers):
//     validation rulesets, upsert logic, integrity checking, and the
//     best-effort dump-request trigger with per-policy storm suppression.
//
// Only validation failures and a missing source/agent-id field surface as
// a decode error; store and dump-channel failures are absorbed into logs so
// one bad sub-operation never blocks correctly-formed parts of the same
// event. The decoder writes a single boolean outcome field on every event
// and never drops one from the surrounding pipeline.
//
// Concurrency: a Decoder holds shared store and dump-channel handles that
// see sequential use only. Run at most one Decode per instance at a time;
// the consumer package gives each handler goroutine its own instance.
package sca
