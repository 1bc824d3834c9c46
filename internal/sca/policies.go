// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"context"
	"errors"
	"strings"

	"github.com/confwatch/confwatch/internal/logging"
)

// ErrInvalidPoliciesEvent is returned when a Policies event lacks the
// mandatory policies array.
var ErrInvalidPoliciesEvent = errors.New("policies array not found")

// handlePoliciesInfo reconciles the set of policies the agent currently
// scans against the set the store knows: any stored policy id absent from
// the incoming array is deleted, cascading to its checks. Deletion is
// fail-safe: if the stored set cannot be retrieved, nothing is deleted.
func handlePoliciesInfo(ctx context.Context, dc *DecodeContext) error {
	if !dc.isValid(policiesRules) {
		return ErrInvalidPoliciesEvent
	}

	policies, _ := dc.SrcArray(FieldPolicies)
	if len(policies) == 0 {
		logging.Debug().Str("agent_id", dc.AgentID).Msg("SCA no policies in event")
		return nil
	}

	qb := queryBuilder{agentID: dc.AgentID}
	outcome, storedList := search(ctx, dc.Store, qb.queryPolicies(), true)
	if outcome == SearchError {
		// Never delete on uncertain state.
		logging.Warn().Str("agent_id", dc.AgentID).Msg("SCA error retrieving stored policies")
		return nil
	}
	if outcome == NotFound {
		return nil
	}

	for _, storedID := range strings.Split(storedList, ",") {
		if !containsPolicy(policies, storedID) {
			logging.Debug().
				Str("agent_id", dc.AgentID).
				Str("policy_id", storedID).
				Msg("SCA policy no longer scanned, deleting")
			deletePolicyAndChecks(ctx, dc, storedID)
		}
	}

	return nil
}

// containsPolicy tests membership by exact string equality against each
// array element; non-string elements never match.
func containsPolicy(policies []interface{}, id string) bool {
	for _, p := range policies {
		if s, ok := p.(string); ok && s == id {
			return true
		}
	}
	return false
}
