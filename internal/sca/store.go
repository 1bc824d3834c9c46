// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"context"
	"strings"

	"github.com/confwatch/confwatch/internal/logging"
)

// StoreResult is the response to one store query: whether the store
// answered OK, and the textual payload that came with the answer.
type StoreResult struct {
	OK      bool
	Payload string
}

// StoreClient issues line-oriented queries against the per-agent persistent
// store. Implementations must tolerate repeated sequential use; they are
// shared across many decoder invocations. A returned error means the
// backend was unreachable or the response was unparseable; callers treat
// it the same as a non-OK result.
type StoreClient interface {
	Query(ctx context.Context, query string) (StoreResult, error)
}

// SearchResult is the three-valued outcome of a search-style store query.
// It drives every reconciliation branch and is matched exhaustively at each
// call site; Error is never folded into NotFound.
type SearchResult int

const (
	// Found means the store answered "found {payload}".
	Found SearchResult = iota
	// NotFound means the store answered "not found".
	NotFound
	// SearchError means the query failed or the response matched neither
	// convention. Short-circuits any write the query was guarding.
	SearchError
)

// String implements fmt.Stringer for log output.
func (r SearchResult) String() string {
	switch r {
	case Found:
		return "found"
	case NotFound:
		return "not-found"
	default:
		return "error"
	}
}

const foundPrefix = "found "

// search runs a query and classifies the response. When parse is true the
// "found " prefix is stripped from the payload; some callers only need the
// existence answer and pass parse=false to discard it.
func search(ctx context.Context, store StoreClient, query string, parse bool) (SearchResult, string) {
	res, err := store.Query(ctx, query)
	if err != nil {
		logging.Warn().Err(err).Str("query", query).Msg("SCA store query failed")
		return SearchError, ""
	}
	if !res.OK {
		return SearchError, ""
	}

	switch {
	case strings.HasPrefix(res.Payload, foundPrefix):
		if !parse {
			return Found, ""
		}
		return Found, res.Payload[len(foundPrefix):]
	case res.Payload == "found":
		// Found with an empty payload still counts as found.
		return Found, ""
	case strings.HasPrefix(res.Payload, "not found"):
		return NotFound, ""
	default:
		return SearchError, ""
	}
}
