// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"context"
	"errors"

	"github.com/confwatch/confwatch/internal/logging"
)

// ErrInvalidDumpEndEvent is returned when a DumpEnd event fails validation.
var ErrInvalidDumpEndEvent = errors.New("invalid dump end event")

// handleDumpEnd runs after an external component finishes re-streaming a
// policy's checks. It exists for its reconciliation side effects: clean up
// stale rows from older scans, then re-verify integrity and request another
// dump if the hashes still disagree. Once validation passes it always
// succeeds.
func handleDumpEnd(ctx context.Context, dc *DecodeContext) error {
	if !dc.isValid(dumpEndRules) {
		return ErrInvalidDumpEndEvent
	}

	policyID, _ := dc.SrcString(FieldPolicyID)
	scanID, _ := dc.SrcInt(FieldScanID)

	qb := queryBuilder{agentID: dc.AgentID}

	// Always clean up check rows left over from a previous, possibly
	// aborted dump (scan ids other than the current one). Best-effort.
	if res, err := dc.Store.Query(ctx, qb.deleteCheckDistinct(policyID, scanID)); err != nil || !res.OK {
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA error deleting stale check rows")
	}

	resultsOutcome, resultsHash := search(ctx, dc.Store, qb.queryResults(policyID), true)
	switch resultsOutcome {
	case Found:
		scanOutcome, scanHash := search(ctx, dc.Store, qb.queryScan(policyID), true)
		switch scanOutcome {
		case Found:
			if resultsHash != scanHash {
				pushDumpRequest(dc, policyID, false)
				logging.Debug().
					Str("agent_id", dc.AgentID).
					Str("policy_id", policyID).
					Str("results_hash", resultsHash).
					Str("scan_hash", scanHash).
					Msg("SCA scan result integrity failed after dump, requesting dump")
			}
		case NotFound:
			// Nothing to compare against.
		case SearchError:
			logging.Warn().
				Str("agent_id", dc.AgentID).
				Str("policy_id", policyID).
				Msg("SCA error querying scan summary")
		}
	case NotFound:
		// Nothing to compare against.
	case SearchError:
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA error querying check results")
	}

	return nil
}
